package cmd

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stockbook/internal/console"
	"github.com/felixgeelhaar/stockbook/internal/health"
	"github.com/felixgeelhaar/stockbook/internal/metrics"
	"github.com/felixgeelhaar/stockbook/internal/server"
	"github.com/felixgeelhaar/stockbook/internal/version"
)

func newServeCmd(a *App) *cobra.Command {
	var shutdownTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web console",
		Long: `Run the local web console. Pages behind the sign-in guard redirect to
/auth/login; the console shares its session with the CLI. Probes are served
at /health/live and /health/ready and Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd)

			probes := health.NewProbeManager(version.Version,
				health.NewStoreChecker(a.Store.Backend()),
				health.NewAPIChecker(a.Config.API.BaseURL, a.Config.API.Timeout),
			)
			c := console.New(console.Deps{
				Session:        a.Session,
				API:            a.API,
				Probes:         probes,
				Metrics:        a.Metrics,
				MetricsHandler: metrics.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
				Logger:         a.Logger,
			})
			a.setNavigator(console.SessionNavigator(a.Session, a.Logger))

			srv := server.New(server.Config{
				Addr:            a.Config.Console.Addr,
				ShutdownTimeout: shutdownTimeout,
			}, c.Router(), probes, a.Logger)
			if err := srv.Listen(); err != nil {
				return fmt.Errorf("listen on %s: %w", a.Config.Console.Addr, err)
			}

			fmt.Fprintf(a.opts.Out, "Console listening on %s\n", a.styles().Title.Render("http://"+srv.Addr()))
			c.Start(ctx)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8080)")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "how long to drain connections on exit")
	return annotate(cmd, annotationSession, sessionDeferred)
}
