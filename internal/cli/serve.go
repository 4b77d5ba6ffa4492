package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/httpapi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	Seed bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Start the HTTP search API on the configured address.

Routes:
  GET  /healthz
  GET  /v1/entities
  GET  /v1/search/{entity}?filter=<json>&limit=&offset=
  POST /v1/search/{entity}
  POST /v1/compile/{entity}

The server stops gracefully on SIGINT or SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "install the demo shop tables and rows (sqlite only)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.settings()
	log := opts.logOrDiscard()
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}

	catalog, err := loadCatalog(cfg.Schema.Dir)
	if err != nil {
		return formatter.FailWith(ErrCodeSchema, ExitCommandError, err)
	}
	exec, err := openExecutor(ctx, cfg, opts.Seed)
	if err != nil {
		return formatter.FailWith(ErrCodeExecution, ExitCommandError, err)
	}
	defer exec.Close()

	svc, err := newService(cfg, catalog, exec, log)
	if err != nil {
		return formatter.FailWith(ErrCodeInput, ExitCommandError, err)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Service:      svc,
		Logger:       log,
		Tokens:       cfg.Auth.Tokens,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		MaxDepth:     cfg.Filter.MaxDepth,
	})

	log.Info().
		Strs("entities", catalog.Names()).
		Str("dialect", cfg.SQL.Dialect).
		Msg("schema loaded")
	if err := httpapi.Serve(ctx, cfg.HTTP.Addr, router, log); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	return nil
}
