package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wtask/netube/internal/config"
	"github.com/wtask/netube/internal/echo"
	"github.com/wtask/netube/internal/logging"
	"github.com/wtask/netube/pkg/semver"
)

// shutdownTimeout - how long to wait for sessions after shutdown has begun
const shutdownTimeout = 10 * time.Second

var (
	// BinaryName - name of run application binary
	BinaryName = strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))

	// Version - app version fingerprint
	Version = semver.V{Minor: 1, Patch: 0}.String()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s (v%s) error:\n\n\t%s\n", BinaryName, Version, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "netube",
		Short:         "Launch echo server over TCP",
		Long:          "Launch echo server over TCP. Clients may send ':quit' to end session or ':off' to stop server.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), c, cmd.OutOrStdout())
		},
	}
	registerFlags(cmd.Flags())
	cmd.AddCommand(dumpConfigCmd(), versionCmd())
	return cmd
}

func dumpConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dumpconfig [config_file]",
		Short: "write default config as TOML into file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return config.Dump(config.Default(), args[0])
			}
			b, err := config.Marshal(config.Default())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", BinaryName, Version)
		},
	}
}

// run - serves until the server is stopped by client command or ctx is done.
func run(ctx context.Context, c config.Configuration, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, closer, err := logging.New(c.Log, out)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger = logger.With().Str("app", BinaryName).Str("version", Version).Logger()

	fmt.Fprintf(out, "%s\n", c)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	server, err := echo.NewServer(
		echo.WithLogger(logger),
		echo.WithRegisterer(registry),
		echo.WithAcceptRate(c.Accept.Rate, c.Accept.Burst),
	)
	if err != nil {
		return errors.Wrap(err, "can't create echo server")
	}
	if err := server.Start(c.LeftHost, c.LeftPort); err != nil {
		return err
	}
	logger.Info().Msg("Echo server has started")

	g, gctx := errgroup.WithContext(ctx)

	var metricsServer *http.Server
	if c.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: c.Metrics.Addr, Handler: mux}
		g.Go(func() error {
			logger.Info().Str("address", c.Metrics.Addr).Msg("Metrics endpoint is listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics endpoint failed")
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-server.Done():
		case <-gctx.Done():
			logger.Info().Msg("Got stop signal")
			server.Shutdown()
		}
		logger.Info().Dur("elapsed", server.Wait(shutdownTimeout)).Msg("Echo server stopped, bye")
		if metricsServer != nil {
			metricsServer.Close()
		}
		return server.Err()
	})

	return g.Wait()
}
