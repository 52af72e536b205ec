package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/othala/internal"
	pkgconfig "github.com/starford/othala/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func action(fn func(context.Context, ...internal.Option) error) func(context.Context, *cli.Command) error {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return fn(ctx, internal.WithConfig(cfg))
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "othala",
		Usage: "Vault librarian: LLM-assisted curation for a Markdown knowledge vault",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Scheduled pass: file approved proposals, then ingest new captures",
				Action: action(internal.RunCron),
			},
			{
				Name:   "ingest",
				Usage:  "Turn capture notes into review-queue proposals",
				Action: action(internal.RunIngest),
			},
			{
				Name:   "maintain",
				Usage:  "Scan managed folders and stage fix proposals for low-quality notes",
				Action: action(internal.RunMaintain),
			},
			{
				Name:   "audit",
				Usage:  "Report flagged notes without calling the model or writing anything",
				Action: action(internal.RunAudit),
			},
			{
				Name:   "file",
				Usage:  "Apply approved proposals from the review queue",
				Action: action(internal.RunFile),
			},
			{
				Name:   "registry",
				Usage:  "Regenerate the code-registry note",
				Action: action(internal.RunUpdateRegistry),
			},
			{
				Name:   "serve",
				Usage:  "Start the HTTP API and the vault watcher",
				Action: action(internal.Run),
			},
			{
				Name:   "mcp",
				Usage:  "Start the Model Context Protocol server on stdio",
				Action: action(internal.RunMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
