package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/server"
	"sparqlbench/internal/worker"
	"sparqlbench/internal/worker/runner"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a benchmark worker controlled over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg := worker.Config{
				Target: benchapi.Target{
					QueryEndpoint:  viper.GetString("endpoint"),
					UpdateEndpoint: viper.GetString("update-endpoint"),
					Username:       viper.GetString("username"),
					Password:       viper.GetString("password"),
					TokenURL:       viper.GetString("token-url"),
				},
				BaseDir: configDir(),
				HTTP:    &http.Client{},
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			r := runner.New(cfg, log)
			done := make(chan struct{})
			go func() {
				defer close(done)
				r.Run(ctx)
			}()

			metrics := prometheus.NewRegistry()
			metrics.MustRegister(collectors.NewGoCollector())
			h := server.NewHandler(r, log)
			h.Metrics = metrics

			addr := viper.GetString("listen")
			srv := &http.Server{
				Addr:              addr,
				Handler:           server.NewRouter(h),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			log.Infof("Listening on %s", addr)
			defer log.Info("Goodbye!")
			err = srv.ListenAndServe()
			stop()
			<-done
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	addTargetFlags(cmd.Flags())
	cmd.Flags().String("listen", ":8080", "Address to listen on")
	return cmd
}
