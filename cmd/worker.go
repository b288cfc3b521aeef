package main

import (
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/jobs"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the async batch job worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		runner := jobs.NewRunner(env.JobStore, env.Orchestrator, jobs.NewWebhookNotifier(), env.Stats)

		srv := asynq.NewServer(
			asynq.RedisClientOpt{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			asynq.Config{Concurrency: workerConcurrency},
		)

		mux := asynq.NewServeMux()
		jobs.RegisterHandlers(mux, runner)

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down worker")
			srv.Shutdown()
		}()

		zap.L().Info("starting worker", zap.Int("concurrency", workerConcurrency))
		if err := srv.Run(mux); err != nil {
			return eris.Wrap(err, "worker run")
		}

		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 4, "concurrent jobs")
	rootCmd.AddCommand(workerCmd)
}
