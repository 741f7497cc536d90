package cli

import (
	"fmt"
	"strconv"

	"github.com/shaiso/Crosspost/internal/domain"
	"github.com/shaiso/Crosspost/internal/repo"
	"github.com/spf13/cobra"
)

// NewMigrateCmd создаёт команду migrate: применяет схему БД.
func NewMigrateCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := envFn(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := repo.Migrate(ctx, env.DB); err != nil {
				return err
			}

			outputFn().Successf("Schema applied")
			return nil
		},
	}
}

// NewSeedPlatformsCmd создаёт команду seed-platforms.
func NewSeedPlatformsCmd(envFn EnvFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-platforms",
		Short: "Create or update the default platforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := outputFn()

			env, err := envFn(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			platforms := domain.DefaultPlatforms()
			for i := range platforms {
				if err := env.Platforms.Upsert(ctx, &platforms[i]); err != nil {
					return fmt.Errorf("upsert platform %s: %w", platforms[i].Type, err)
				}
			}

			out.Successf("Seeded %d platform(s)", len(platforms))
			PrintPlatforms(out, platforms)
			return nil
		},
	}
}

// PrintPlatforms выводит список платформ.
func PrintPlatforms(out *Output, platforms []domain.Platform) {
	headers := []string{"ID", "NAME", "TYPE", "LIMIT", "ACTIVE"}
	rows := make([][]string, len(platforms))
	for i, p := range platforms {
		rows[i] = []string{
			p.ID.String(),
			p.Name,
			string(p.Type),
			strconv.Itoa(p.CharacterLimit),
			strconv.FormatBool(p.IsActive),
		}
	}
	out.Print(headers, rows, platforms)
}
