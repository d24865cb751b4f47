// Package pluginkitd builds the demonstration daemon's *app.App,
// mirroring echoryn/internal/golem's role for cmd/golem: cmd/pluginkitd
// stays a one-line main(), all wiring lives here.
package pluginkitd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/kiosk404/pluginkit/internal/plugins/a"
	"github.com/kiosk404/pluginkit/internal/plugins/b"
	"github.com/kiosk404/pluginkit/pkg/app"
	"github.com/kiosk404/pluginkit/pkg/application"
	"github.com/kiosk404/pluginkit/pkg/log"
	"github.com/kiosk404/pluginkit/pkg/options"
	"github.com/kiosk404/pluginkit/pkg/plugin"
)

const AppName = "pluginkitd"

// NewApp builds the pluginkitd *app.App: it registers the illustrative
// A/B plugins against the process-wide registry and wires a signal
// handler that calls Application.Quit() on SIGINT/SIGTERM.
func NewApp(basename string) *app.App {
	registry := plugin.Default()
	_ = b.Register(registry, nil)
	_ = a.Register(registry, nil)

	agg := options.NewAggregator(registry)

	return app.NewApp(AppName, basename,
		app.WithOptions(agg),
		app.WithDescription("pluginkitd hosts a process-wide plugin registry behind a single-threaded reactor."),
		app.WithRunFunc(run(registry)),
		app.WithSilence(),
	)
}

func run(registry *plugin.Registry) app.RunFunc {
	return func(args []string) error {
		logger := log.Default()
		logger.WithField("app", AppName).Debug(app.Banner(AppName))
		ap := application.New(AppName, registry, logger)

		noOp, err := ap.Initialize(args)
		if err != nil {
			return err
		}
		if noOp {
			return nil
		}
		if err := ap.Startup(); err != nil {
			return err
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			logger.WithField("app", AppName).Warn("signal received, draining and shutting down")
			ap.Quit()
		}()

		if err := ap.Exec(); err != nil {
			logger.WithField("app", AppName).Error("exec error: ", err)
			return err
		}
		return nil
	}
}
