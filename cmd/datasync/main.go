package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/datasync/internal/clock"
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/counter"
	"github.com/smallbiznis/datasync/internal/lock"
	"github.com/smallbiznis/datasync/internal/migration"
	"github.com/smallbiznis/datasync/internal/notify"
	"github.com/smallbiznis/datasync/internal/objectstore"
	"github.com/smallbiznis/datasync/internal/observability"
	"github.com/smallbiznis/datasync/internal/pipeline"
	"github.com/smallbiznis/datasync/internal/record"
	"github.com/smallbiznis/datasync/internal/server"
	"github.com/smallbiznis/datasync/internal/staging"
	"github.com/smallbiznis/datasync/internal/transform"
	"github.com/smallbiznis/datasync/internal/validation"
	"github.com/smallbiznis/datasync/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "datasync",
		Short:         "Move staged document pairs into the archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), watchCmd(), serveCmd())
	return root
}

func runCmd() *cobra.Command {
	var activityID string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the staging directory once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var sched *pipeline.Scheduler
			app := fx.New(append(pipelineOptions(), fx.Populate(&sched))...)
			if err := app.Start(ctx); err != nil {
				return err
			}

			summary, runErr := sched.RunOnce(ctx, activityID)

			stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
			defer cancel()
			if err := app.Stop(stopCtx); err != nil && runErr == nil {
				runErr = err
			}
			if runErr != nil {
				fmt.Fprintf(os.Stderr, "activity %s: %v\n", summary.ActivityID, runErr)
				return runErr
			}
			fmt.Fprintf(os.Stdout, "activity %s %s: %d passed, %d failed\n",
				summary.ActivityID, summary.Status, summary.PassedFiles, summary.FailedFiles)
			return nil
		},
	}
	cmd.Flags().StringVar(&activityID, "activity-id", "", "activity id (defaults to the start time)")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run activities on WATCH_INTERVAL and serve the read API",
		RunE: func(*cobra.Command, []string) error {
			opts := append(pipelineOptions(), pipeline.WatchModule, server.Module)
			fx.New(opts...).Run()
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API over the record store",
		RunE: func(*cobra.Command, []string) error {
			opts := append(baseOptions(), record.Module, server.Module)
			fx.New(opts...).Run()
			return nil
		},
	}
}

// baseOptions wires config, observability and the record store backend.
// The relational modules are only loaded when the store is SQL so a
// mongo deployment never opens a database connection.
func baseOptions() []fx.Option {
	opts := []fx.Option{
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
	}
	if config.Load().Store.Driver == config.StoreDriverSQL {
		opts = append(opts, db.Module, migration.Module)
	}
	return opts
}

func pipelineOptions() []fx.Option {
	return append(baseOptions(),
		counter.Module,
		staging.Module,
		validation.Module,
		transform.Module,
		objectstore.Module,
		record.Module,
		notify.Module,
		lock.Module,
		pipeline.Module,
	)
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
