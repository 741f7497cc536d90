// Crosspost CLI — ручной запуск scheduler'а и служебные команды.
//
// Использование:
//
//	crosspost [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	publish-due     Отправить due-посты на публикацию
//	status          Статус публикации поста по платформам
//	migrate         Применить схему БД
//	seed-platforms  Создать платформы по умолчанию
//	post create     Создать scheduled-пост
//	post retarget   Заменить платформы неопубликованного поста
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Crosspost/internal/app"
	"github.com/shaiso/Crosspost/internal/cli"
	"github.com/shaiso/Crosspost/internal/config"
	"github.com/shaiso/Crosspost/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "crosspost",
		Short:         "Crosspost CLI — scheduled multi-platform publishing",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./crosspost.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	envFn := func(ctx context.Context) (*app.App, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		// Логи в stderr: stdout занят данными
		logger := telemetry.NewLogger(telemetry.LogOptions{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: os.Stderr,
		})
		return app.Open(ctx, cfg, logger)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPublishDueCmd(envFn, outputFn),
		cli.NewStatusCmd(envFn, outputFn),
		cli.NewMigrateCmd(envFn, outputFn),
		cli.NewSeedPlatformsCmd(envFn, outputFn),
		cli.NewPostCmd(envFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
