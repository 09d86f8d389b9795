package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/canvas/core/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and preview websocket",
	Long: `Serve the chat, design and preview endpoints. Requests are attributed to
the user named in the configured user header, which an authenticating proxy
in front of this service is expected to set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := &http.Server{
		Addr: addr,
		Handler: httpapi.NewHandler(httpapi.Deps{
			Studio:        a.studio,
			Engine:        a.engine,
			Transpiler:    a.transpiler,
			Authenticator: httpapi.HeaderAuthenticator{Header: a.cfg.Server.UserHeader},
			Metrics:       a.metrics,
			Gatherer:      a.registry,
			UsagePath:     a.cfg.Server.UsageDoc,
			Logger:        a.logger,
		}),
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr, "store", a.cfg.Store.Backend, "default_provider", a.cfg.Providers.Default)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
