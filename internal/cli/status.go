package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/repo"
	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду status: сводка публикации поста.
func NewStatusCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status POST_ID",
		Short: "Show per-platform publishing status of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			postID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid post id %q: %w", args[0], err)
			}

			env, err := envFn(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			post, err := env.Posts.GetPost(ctx, postID)
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("post %s not found", postID)
			}
			if err != nil {
				return err
			}

			targets, err := env.Posts.ListTargets(ctx, postID)
			if err != nil {
				return err
			}

			PrintSummary(out, post, domain.Summarize(post, targets))
			return nil
		},
	}
}

// PrintSummary выводит сводку публикации.
func PrintSummary(out *Output, post *domain.Post, s *domain.PublishingSummary) {
	if out.IsJSON() {
		out.JSON(s)
		return
	}

	out.Infof("Post %s %q: %s (published %d, failed %d, pending %d of %d)",
		post.ID, post.Title, post.Status, s.Published, s.Failed, s.Pending, s.Total)

	headers := []string{"PLATFORM", "TYPE", "STATUS", "PUBLISHED_AT", "ERROR"}
	rows := make([][]string, len(s.Details))
	for i, d := range s.Details {
		rows[i] = []string{d.Platform, string(d.Type), string(d.Status), formatTime(d.PublishedAt), d.ErrorMessage}
	}
	out.Table(headers, rows)
}
