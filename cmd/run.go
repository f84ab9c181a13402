package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielolaszy/issuebot/internal/config"
	"github.com/danielolaszy/issuebot/internal/github"
	"github.com/danielolaszy/issuebot/internal/logging"
	"github.com/danielolaszy/issuebot/internal/poller"
	"github.com/danielolaszy/issuebot/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// statusReportInterval is how often the run command logs the tracker state.
const statusReportInterval = 15 * time.Minute

// runCmd starts the polling loop and blocks until SIGINT or SIGTERM.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll repositories and request assignment on eligible issues",
	Long: `Run the assignment-request loop.

Configuration is read from the file given with -c/--config (TOML, YAML or
JSON). Without a file only credentials are taken from the environment
(GITHUB_TOKEN, GITHUB_USERNAME, GITHUB_DOMAIN) and no repositories are
monitored. A .env file in the working directory is loaded first.

Example:
  issuebot run -c config.toml -d ~/.gh-issues-bot`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		dataDir, err := cmd.Flags().GetString("data-dir")
		if err != nil {
			return err
		}

		storeKind, err := cmd.Flags().GetString("store")
		if err != nil {
			return err
		}

		logToFile, err := cmd.Flags().GetBool("log-file")
		if err != nil {
			return err
		}

		if logToFile {
			f, err := logging.OpenLogFile(dataDir, appName, time.Now())
			if err != nil {
				return err
			}
			defer f.Close()
			logging.SetupLogger(io.MultiWriter(os.Stdout, f), logging.LevelFromEnv())
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		for _, warning := range cfg.Warnings() {
			logging.Warn("configuration warning", "detail", warning)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		githubClient, err := github.NewClient(github.Settings{
			Token:    cfg.AuthToken,
			Username: cfg.UserLogin,
			Domain:   cfg.GitHubDomain,
			MaxPages: cfg.MaxPages,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize github client: %w", err)
		}

		if err := githubClient.Verify(ctx); err != nil {
			return fmt.Errorf("failed to verify github credentials: %w", err)
		}

		st, err := store.Open(store.Kind(storeKind), dataDir)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer st.Close()

		p := poller.New(poller.Options{
			Repositories:     cfg.Repositories,
			PollInterval:     cfg.PollInterval(),
			MaxJitter:        cfg.MaxJitter(),
			Cooldown:         cfg.Cooldown(),
			RateLimitFloor:   cfg.RateLimitFloor,
			CommentTemplates: cfg.CommentTemplates,
		}, githubClient, st)

		if err := p.Initialize(ctx); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return p.Run(gctx)
		})
		g.Go(func() error {
			return reportStatus(gctx, p, statusReportInterval)
		})

		if err := g.Wait(); err != nil {
			return err
		}

		logging.Info("shutdown complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("config", "c", "", "Path to the configuration file")
	runCmd.Flags().Bool("log-file", false, "Also write logs to a dated file in the data directory")
}

// reportStatus logs the tracker state every interval until ctx is done.
func reportStatus(ctx context.Context, p *poller.Poller, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap, err := p.Snapshot(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			args := []any{"phase", snap.Phase, "processed_count", snap.Processed.Len()}
			if snap.Active != nil {
				args = append(args,
					"repository", snap.Active.Repository(),
					"issue_number", snap.Active.IssueNumber,
					"expires_at", snap.Active.ExpiresAt)
			}
			logging.Info("bot status", args...)
		}
	}
}
