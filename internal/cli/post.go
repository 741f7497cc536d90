package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/repo"
	"github.com/spf13/cobra"
)

// NewPostCmd создаёт группу команд для постов.
func NewPostCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Manage posts",
	}

	cmd.AddCommand(
		newPostCreateCmd(envFn, outputFn),
		newPostRetargetCmd(envFn, outputFn),
	)

	return cmd
}

// PostInput — параметры создания поста.
type PostInput struct {
	Title     string
	Content   string
	ImageURL  string
	At        string
	Platforms []string
}

// BuildPost проверяет ввод и создаёт scheduled-пост.
// Пустой At — публикация при ближайшем запуске.
func BuildPost(in PostInput, now time.Time) (*domain.Post, []domain.PlatformType, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, nil, errors.New("--title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, nil, errors.New("--content is required")
	}
	if len(in.Platforms) == 0 {
		return nil, nil, errors.New("at least one --platform is required")
	}

	at := now
	if in.At != "" {
		parsed, err := time.Parse(time.RFC3339, in.At)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --at %q: expected RFC3339", in.At)
		}
		at = parsed
	}

	types, err := parsePlatformTypes(in.Platforms)
	if err != nil {
		return nil, nil, err
	}

	post := &domain.Post{
		ID:            uuid.New(),
		Title:         in.Title,
		Content:       in.Content,
		ImageURL:      in.ImageURL,
		Status:        domain.PostStatusScheduled,
		ScheduledTime: &at,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return post, types, nil
}

func newPostCreateCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	var in PostInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scheduled post",
		Example: `  crosspost post create --title "Launch" --content "We are live" \
    --at 2026-01-01T10:00:00Z --platform x --platform linkedin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			post, types, err := BuildPost(in, time.Now().UTC())
			if err != nil {
				return err
			}

			env, err := envFn(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			ids, err := resolvePlatforms(ctx, env.Platforms, types, post.Content)
			if err != nil {
				return err
			}

			if err := env.Posts.CreatePost(ctx, post, ids); err != nil {
				return err
			}

			out.Successf("Post created: %s", post.ID)
			out.Print(
				[]string{"ID", "TITLE", "STATUS", "SCHEDULED", "PLATFORMS"},
				[][]string{{post.ID.String(), post.Title, string(post.Status), formatTime(post.ScheduledTime), joinTypes(types)}},
				post,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Title, "title", "", "Post title (required)")
	cmd.Flags().StringVar(&in.Content, "content", "", "Post content (required)")
	cmd.Flags().StringVar(&in.ImageURL, "image-url", "", "Image URL")
	cmd.Flags().StringVar(&in.At, "at", "", "Scheduled time, RFC3339 (default: now)")
	cmd.Flags().StringArrayVar(&in.Platforms, "platform", nil, "Platform type: x, instagram, linkedin, facebook (repeatable)")

	return cmd
}

func joinTypes(types []domain.PlatformType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

// parsePlatformTypes проверяет типы платформ и убирает повторы.
func parsePlatformTypes(raw []string) ([]domain.PlatformType, error) {
	types := make([]domain.PlatformType, 0, len(raw))
	seen := make(map[domain.PlatformType]bool)
	for _, r := range raw {
		t := domain.PlatformType(strings.ToLower(strings.TrimSpace(r)))
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown platform %q", r)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return types, nil
}

// PlatformLookup — поиск платформы по типу (repo.PlatformRepo).
type PlatformLookup interface {
	GetByType(ctx context.Context, t domain.PlatformType) (*domain.Platform, error)
}

// resolvePlatforms находит ID платформ и проверяет лимит символов каждой.
func resolvePlatforms(ctx context.Context, platforms PlatformLookup, types []domain.PlatformType, content string) ([]uuid.UUID, error) {
	n := utf8.RuneCountInString(content)

	ids := make([]uuid.UUID, 0, len(types))
	for _, t := range types {
		p, err := platforms.GetByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w (run seed-platforms first)", t, err)
		}
		if p.CharacterLimit > 0 && n > p.CharacterLimit {
			return nil, fmt.Errorf("content is %d characters, %s allows %d", n, p.Name, p.CharacterLimit)
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func newPostRetargetCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	var rawTypes []string

	cmd := &cobra.Command{
		Use:   "retarget POST_ID",
		Short: "Replace the platforms of an unpublished post",
		Long: `Replaces the platform set of a post with fresh pending targets.
Previous outcomes are discarded. Published posts cannot be changed.`,
		Example: `  crosspost post retarget 3f1c... --platform x --platform facebook`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			postID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid post id %q: %w", args[0], err)
			}
			if len(rawTypes) == 0 {
				return errors.New("at least one --platform is required")
			}
			types, err := parsePlatformTypes(rawTypes)
			if err != nil {
				return err
			}

			env, err := envFn(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			post, err := env.Posts.GetPost(ctx, postID)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return fmt.Errorf("post %s not found", postID)
				}
				return err
			}

			ids, err := resolvePlatforms(ctx, env.Platforms, types, post.Content)
			if err != nil {
				return err
			}

			if err := env.Posts.ReplaceTargets(ctx, postID, ids); err != nil {
				if errors.Is(err, repo.ErrInvalidState) {
					return fmt.Errorf("post %s is already published", postID)
				}
				return err
			}

			out.Successf("Post %s now targets: %s", postID, joinTypes(types))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&rawTypes, "platform", nil, "Platform type: x, instagram, linkedin, facebook (repeatable)")

	return cmd
}
