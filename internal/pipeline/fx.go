package pipeline

import (
	"context"

	"github.com/smallbiznis/datasync/internal/staging"
	"github.com/smallbiznis/datasync/internal/transform"
	"github.com/smallbiznis/datasync/internal/validation"
	"go.uber.org/fx"
)

var Module = fx.Module("pipeline",
	fx.Provide(
		func(v *validation.Validator) Validator { return v },
		func(t *transform.Transformer) Transformer { return t },
		func(a *staging.Archiver) Archiver { return a },
	),
	fx.Provide(NewRunner),
	fx.Provide(NewScheduler),
)

// WatchModule keeps running activities on the configured interval for the
// lifetime of the application.
var WatchModule = fx.Module("pipeline.watch",
	fx.Invoke(StartWatcher),
)

func StartWatcher(lc fx.Lifecycle, sched *Scheduler) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
