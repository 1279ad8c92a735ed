package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shardcache-go/shc/internal/logger"
	"github.com/shardcache-go/shc/internal/store"
	"github.com/shardcache-go/shc/pkg/adminapi"
	"github.com/shardcache-go/shc/pkg/config"
	"github.com/shardcache-go/shc/pkg/metrics"
	"github.com/shardcache-go/shc/pkg/server"
	"github.com/shardcache-go/shc/pkg/wire"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the shardcache node",
	Long: `Start the shardcache node with the specified configuration.

By default the server runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process
supervisor such as systemd.

Examples:
  # Start in background (default)
  shcd start

  # Start in foreground
  shcd start --foreground

  # Start with a custom config file
  shcd start --config /etc/shcd/config.yaml

  # Start with environment variable overrides
  SHC_LOGGING_LEVEL=DEBUG shcd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "path to PID file (default: $XDG_STATE_HOME/shcd/shcd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "path to log file for daemon mode (default: $XDG_STATE_HOME/shcd/shcd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	wire.SetTimeout(cfg.Timeout.TCP.Milliseconds())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("shardcache node starting",
		"level", cfg.Logging.Level, "format", cfg.Logging.Format,
		"config_source", getConfigSource(GetConfigFile()))

	backend, err := store.OpenBadgerStore(store.BadgerOptions{
		Path:         cfg.Storage.Path,
		HotCacheCost: int64(cfg.Storage.HotCacheSize),
	})
	if err != nil {
		return fmt.Errorf("failed to open storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("error closing storage backend", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	metricsRecorder := metrics.New(reg)

	var adminServer *http.Server
	if cfg.Metrics.Enabled {
		adminRouter, err := adminapi.NewRouter(adminapi.Config{
			RequireAuth: cfg.Metrics.RequireAuth,
			JWTSecret:   cfg.Metrics.JWTSecret,
		}, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), backend)
		if err != nil {
			return fmt.Errorf("failed to build admin API router: %w", err)
		}
		adminServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: adminRouter,
		}
		go func() {
			logger.Info("admin HTTP surface listening", "port", cfg.Metrics.Port)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("admin HTTP server error", "error", err)
			}
		}()
	} else {
		logger.Info("admin HTTP surface disabled")
	}

	srv := server.New(server.Config{
		BindAddress:     cfg.Listen.Address,
		Port:            cfg.Listen.Port,
		UnixSocket:      cfg.Listen.UnixSocket,
		MaxConnections:  cfg.Listen.MaxConnections,
		ShutdownTimeout: 10 * time.Second,
		Secret:          []byte(cfg.Auth.Secret),
		SigMode:         cfg.Auth.WireSigMode(),
	}, backend, metricsRecorder)

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("shardcache node is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", "error", err)
			shutdownAdminServer(adminServer)
			return err
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			shutdownAdminServer(adminServer)
			return err
		}
		logger.Info("server stopped")
	}

	shutdownAdminServer(adminServer)
	return nil
}

func shutdownAdminServer(s *http.Server) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("admin HTTP server shutdown error", "error", err)
	}
}

func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.DefaultConfigPath()
	}
	return "defaults"
}

// startDaemon starts the server as a background daemon process.
func startDaemon() error {
	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if data, err := os.ReadFile(pidPath); err == nil {
		var pid int
		if _, err := fmt.Sscanf(string(data), "%d", &pid); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("shcd is already running (PID %d)\nUse 'shcd stop' to stop the running instance", pid)
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = logFileHandle.Close()

	fmt.Printf("shcd started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'shcd stop' to stop the server")

	return nil
}
