package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/board/internal/api"
	"github.com/joescharf/board/internal/client"
	"github.com/joescharf/board/internal/daemon"
)

const shutdownTimeout = 5 * time.Second

var (
	serveSeed      bool
	serveStopForce bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the board HTTP API server",
	Long: `Start an HTTP server exposing the board REST API, /healthz and /metrics.
It listens on server.addr (default 127.0.0.1:8080) and stops cleanly on
SIGINT or SIGTERM. A PID file keeps a second server off the same database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
		defer stop()
		return serveRun(ctx, nil)
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Load demo data when the board is empty")
	serveStopCmd.Flags().BoolVar(&serveStopForce, "force", false, "Kill instead of asking the server to stop")

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(viper.GetString("server.pid_file"))
}

// serveRun serves until ctx is done. When ready is non-nil it receives the
// bound address once the listener is open.
func serveRun(ctx context.Context, ready chan<- string) error {
	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Release() }()

	svc, err := getService()
	if err != nil {
		return err
	}
	logger := newLogger(true)

	if serveSeed {
		seeded, err := seedIfEmpty(ctx, svc)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if seeded {
			logger.Info("seeded demo board")
		}
	}

	defaultUser, err := currentUserID(ctx, svc)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", viper.GetString("server.addr"))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           api.NewServer(svc, defaultUser).WithLogger(logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("serving board API", "addr", ln.Addr().String(), "db", viper.GetString("db_path"))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func serveStatusRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		ui.Info("Server is not running")
		return nil
	}

	url := viper.GetString("server.url")
	c := client.New(url, "", 2*time.Second)
	if err := c.Ping(context.Background()); err != nil {
		ui.Warning("Server process %d is running but %s is not answering: %v", pid, url, err)
		return nil
	}
	ui.Success("Server is running (pid %d) at %s", pid, url)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		return daemon.ErrNotRunning
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", pid)
		return nil
	}

	if _, err := pf.Stop(serveStopForce); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	ui.Success("Sent stop signal to server (pid %d)", pid)
	return nil
}
