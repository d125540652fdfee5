// Command gofast-server runs the epoll-driven key/value server.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gofast-kv/internal/config"
	"gofast-kv/internal/logging"
	"gofast-kv/internal/server"
	"gofast-kv/internal/stats"
)

const statsSnapshotInterval = 30 * time.Second

var version = "0.1.0" // set during build with -ldflags

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:     "gofast-server",
	Short:   "gofast-kv server",
	Long:    "gofast-kv is a single-threaded, epoll-driven in-memory key/value server with a compact binary protocol.",
	Version: version,
	RunE:    runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logging.New(logging.ParseLevel(cfg.LogLevel))
	log.Infof("starting gofast-server v%s", version)
	log.Infof("listening on %s:%d", cfg.Host, cfg.Port)

	st := stats.New()
	srv, err := server.New(cfg.Host, cfg.Port, int(cfg.PollTimeout.Milliseconds()), log, st)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	config.WatchForLogLevelChanges(v, cfg.Port,
		func(level string) {
			log.Infof("log_level changed to %s", level)
			log.SetLevel(logging.ParseLevel(level))
		},
		func(newPort int) {
			log.Warnf("port change to %d in config file ignored, restart required", newPort)
		},
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	// A panic inside the snapshot goroutine would otherwise vanish
	// silently; conc.WaitGroup re-raises it in Wait, in this caller's
	// goroutine, once the loop below asks it to stop.
	snapshotDone := make(chan struct{})
	var wg conc.WaitGroup
	wg.Go(func() { logStatsSnapshots(srv, log, snapshotDone) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Errorf("server loop exited: %v", err)
		}
	case <-sigCh:
		log.Infof("shutdown signal received")
		srv.Stop()
		<-errCh
	}

	close(snapshotDone)
	wg.Wait()

	srv.Shutdown()
	log.Infof("gofast-server stopped")
	return nil
}

// logStatsSnapshots periodically logs the live op counters until done is
// closed. Run under a conc.WaitGroup so a panic here surfaces at shutdown
// instead of disappearing with the goroutine.
func logStatsSnapshots(srv *server.Server, log *logging.Logger, done <-chan struct{}) {
	ticker := time.NewTicker(statsSnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snap := srv.Stats().Snapshot()
			log.Infof("stats: total=%d get=%d set=%d del=%d conns=%d",
				snap.TotalOps, snap.GetOps, snap.SetOps, snap.DelOps, snap.Connections)
		}
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		fmt.Println("gofast-kv configuration:")
		fmt.Println(strings.Repeat("=", 31))
		fmt.Printf("Host: %s\n", cfg.Host)
		fmt.Printf("Port: %d\n", cfg.Port)
		fmt.Printf("Max Connections: %d\n", cfg.MaxConnections)
		fmt.Printf("Log Level: %s\n", cfg.LogLevel)
		fmt.Printf("Log Format: %s\n", cfg.LogFormat)
		fmt.Printf("Poll Timeout: %v\n", cfg.PollTimeout)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gofast-server v%s\n", version)
		fmt.Printf("Built with Go %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("host", "H", "0.0.0.0", "host to bind to")
	rootCmd.PersistentFlags().IntP("port", "p", 6380, "port to listen on")
	rootCmd.PersistentFlags().Int("max-connections", 10000, "max_connections setting (validated only; the server enforces no connection limit)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "log_format setting (text, json); log output is plain text either way")
	rootCmd.PersistentFlags().Duration("poll-timeout", 0, "epoll wait timeout; when not given, the configured poll_timeout (1s by default) applies")

	v.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	v.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	v.BindPFlag("max_connections", rootCmd.PersistentFlags().Lookup("max-connections"))
	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	v.BindPFlag("poll_timeout", rootCmd.PersistentFlags().Lookup("poll-timeout"))

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
