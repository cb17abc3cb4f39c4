package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"replypilot/internal/birdcli"
	"replypilot/internal/config"
	"replypilot/internal/gemini"
	"replypilot/internal/generate"
	"replypilot/internal/handler"
	"replypilot/internal/ledger"
	"replypilot/internal/models"
	"replypilot/internal/notify"
	"replypilot/internal/pipeline"
	"replypilot/internal/report"
	"replypilot/internal/review"
	"replypilot/internal/store"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "replypilot",
		Short:         "replypilot — trend-triaged reply drafting for monitored accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./configs/config.yml", "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newReviewCmd())
	rootCmd.AddCommand(newPublishCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// bootstrap loads settings and builds the logger; every command starts
// here, and a failure at this stage is the only thing that aborts a
// whole invocation.
func bootstrap() (*config.Settings, *zap.Logger, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}

	settings, err := config.LoadSettings(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	return settings, logger, nil
}

func styleProfile(settings *config.Settings, logger *zap.Logger) string {
	if settings.Generation.StyleProfile == "" {
		return ""
	}
	data, err := os.ReadFile(settings.Generation.StyleProfile)
	if err != nil {
		logger.Warn("Style profile unreadable, generating without one",
			zap.String("path", settings.Generation.StyleProfile), zap.Error(err))
		return ""
	}
	return string(data)
}

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Check that the post source session is valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			bird := birdcli.New(settings.Bird.Binary, logger)
			if err := bird.CheckAuth(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "session ok")
			return nil
		},
	}
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Collect, deduplicate, score and draft replies for new posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			influencers, err := config.LoadInfluencers(settings.Influencers.Source, settings.DerivedInfluencersPath())
			if err != nil {
				return err
			}

			led, err := ledger.Open(settings.LedgerPath(), logger)
			if err != nil {
				return err
			}
			defer led.Close()

			st, err := store.Open(settings.CommentsDir(), logger)
			if err != nil {
				return err
			}

			genClient, err := gemini.NewClient(cmd.Context(), gemini.Config{
				APIKey:     settings.Generation.APIKey,
				ModelName:  settings.Generation.ModelName,
				MaxRetries: settings.Generation.MaxRetries,
				RetryDelay: settings.Generation.RetryDelay.Std(),
			}, logger)
			if err != nil {
				return err
			}
			defer genClient.Close()

			orch := generate.NewOrchestrator(genClient, st, led, generate.Options{
				MaxPerCycle:   settings.Scan.MaxPerCycle,
				MaxConcurrent: settings.Generation.MaxConcurrent,
				SlotDelay:     settings.Generation.SlotDelay.Std(),
				CallTimeout:   settings.Generation.Timeout.Std(),
				StyleProfile:  styleProfile(settings, logger),
			}, logger)

			notifier, err := notify.New(settings.Notify.TelegramBotToken, settings.Notify.TelegramChatID, logger)
			if err != nil {
				logger.Warn("Telegram notifier unavailable", zap.Error(err))
			}

			bird := birdcli.New(settings.Bird.Binary, logger)
			scan := pipeline.NewScan(bird, led, orch, settings, logger)

			// Per-influencer and per-post failures are logged inside
			// the cycle; the command still exits 0.
			res, err := scan.Run(cmd.Context(), influencers)
			if err != nil {
				return err
			}

			notifier.ScanCompleted(res)

			fmt.Fprintf(cmd.OutOrStdout(),
				"scan done: %d influencer(s) checked, %d post(s) seen, %d candidate(s), %d draft(s), %d failure(s)\n",
				res.InfluencersChecked, res.PostsSeen, res.Candidates, res.Generated, res.GenerationFailed)
			return nil
		},
	}
}

func newReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "Interactively approve, reject or refine pending drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := store.Open(settings.CommentsDir(), logger)
			if err != nil {
				return err
			}

			genClient, err := gemini.NewClient(cmd.Context(), gemini.Config{
				APIKey:     settings.Generation.APIKey,
				ModelName:  settings.Generation.ModelName,
				MaxRetries: settings.Generation.MaxRetries,
				RetryDelay: settings.Generation.RetryDelay.Std(),
			}, logger)
			if err != nil {
				return err
			}
			defer genClient.Close()

			bird := birdcli.New(settings.Bird.Binary, logger)

			reviewer := review.New(st, genClient, bird, styleProfile(settings, logger),
				cmd.InOrStdin(), cmd.OutOrStdout(), logger)
			return reviewer.Run(cmd.Context())
		},
	}
}

func newPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish every approved draft through the post source",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := store.Open(settings.CommentsDir(), logger)
			if err != nil {
				return err
			}

			approved, err := st.List(models.StatusApproved)
			if err != nil {
				return err
			}
			if len(approved) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing approved")
				return nil
			}

			bird := birdcli.New(settings.Bird.Binary, logger)

			published, failed := 0, 0
			for _, comment := range approved {
				if err := st.Publish(cmd.Context(), comment.ID, bird); err != nil {
					failed++
					logger.Error("Publish failed, comment keeps its status",
						zap.String("comment_id", comment.ID),
						zap.String("post_id", comment.PostID),
						zap.Error(err))
					continue
				}
				published++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published %d, failed %d\n", published, failed)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the lifecycle store",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := store.Open(settings.CommentsDir(), logger)
			if err != nil {
				return err
			}

			summary, err := report.Summarize(st, settings.RecentWindow(), time.Now().UTC(), logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "comments: %d\n", summary.Total)
			for _, status := range models.AllStatuses {
				fmt.Fprintf(out, "  %-10s %d\n", status, summary.ByStatus[status])
			}
			if summary.CorruptRecords > 0 {
				fmt.Fprintf(out, "  corrupt    %d (excluded)\n", summary.CorruptRecords)
			}
			fmt.Fprintf(out, "published in last %dh: %d\n",
				settings.Report.RecentWindowHours, summary.RecentPublishes)

			if len(summary.ByInfluencer) > 0 {
				handles := make([]string, 0, len(summary.ByInfluencer))
				for h := range summary.ByInfluencer {
					handles = append(handles, h)
				}
				sort.Strings(handles)
				fmt.Fprintln(out, "by influencer:")
				for _, h := range handles {
					fmt.Fprintf(out, "  @%-20s %d\n", h, summary.ByInfluencer[h])
				}
			}

			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only stats API",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			st, err := store.Open(settings.CommentsDir(), logger)
			if err != nil {
				return err
			}

			apiHandler := handler.NewHandler(st, settings.RecentWindow(), logger)

			gin.SetMode(gin.ReleaseMode)
			router := gin.Default()
			apiHandler.RegisterRoutes(router)

			srv := &http.Server{
				Addr:    ":" + settings.Server.Port,
				Handler: router,
			}

			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()

			logger.Info("Stats API is running", zap.String("port", settings.Server.Port))

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			logger.Info("Shutting down server...")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return srv.Shutdown(ctx)
		},
	}
}
