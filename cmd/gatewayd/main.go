// Package main is the CLI entry point for gatewayd — a single-threaded,
// epoll-driven local gateway that exposes Anthropic- and OpenAI-shaped
// chat endpoints over a hand-rolled HTTP/1.1 and WebSocket wire path,
// backed by a SQLite session store and an in-process tool registry.
//
// CLI commands (cobra):
//
//	gatewayd              - Start the gateway (foreground by default)
//	gatewayd start [-d]   - Start the gateway (foreground or daemon)
//	gatewayd stop         - Stop a running daemon
//	gatewayd status       - Query a running gateway's health endpoint
//	gatewayd sessions <id> - Show one session's message history
//	gatewayd tools        - List registered tools
//	gatewayd config init  - Write a default gatewayd.yaml
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ctrlai/gatewayd/internal/config"
	"github.com/ctrlai/gatewayd/internal/gateway"
	"github.com/ctrlai/gatewayd/internal/logging"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configPath is the global flag for the gatewayd.yaml location.
var configPath string

// defaultConfigPath returns ./gatewayd.yaml relative to the working
// directory gatewayd is started from — unlike a desktop daemon, gatewayd
// is meant to run alongside a single project checkout.
func defaultConfigPath() string {
	return "gatewayd.yaml"
}

var rootCmd = &cobra.Command{
	Use:     "gatewayd",
	Short:   "gatewayd — local AI provider gateway",
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to gatewayd.yaml")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(configCmd)
}

// ============================================================================
// gatewayd start
// ============================================================================

var (
	daemonMode   bool
	verboseMode  bool
	bindOverride string
	portOverride int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd, args)
	},
}

func init() {
	startCmd.Flags().BoolVarP(&daemonMode, "daemon", "d", false, "Run in the background")
	startCmd.Flags().StringVar(&bindOverride, "bind", "", "Override the configured bind host")
	startCmd.Flags().IntVar(&portOverride, "port", 0, "Override the configured bind port")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "Enable debug logging")
}

// runStart loads config, wires the Supervisor, and blocks until a
// shutdown signal arrives.
func runStart(cmd *cobra.Command, args []string) error {
	if daemonMode && os.Getenv("GATEWAYD_DAEMONIZED") != "1" {
		return spawnDaemon()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if envBind := os.Getenv("GATEWAYD_BIND"); envBind != "" {
		cfg.Server.Host = envBind
	}
	if envPort := os.Getenv("GATEWAYD_PORT"); envPort != "" {
		p, err := strconv.Atoi(envPort)
		if err != nil {
			return fmt.Errorf("invalid GATEWAYD_PORT %q: %w", envPort, err)
		}
		cfg.Server.Port = p
	}
	if bindOverride != "" {
		cfg.Server.Host = bindOverride
	}
	if portOverride != 0 {
		cfg.Server.Port = portOverride
	}

	log := logging.New(logging.Options{
		Verbose:   verboseMode,
		ForceJSON: os.Getenv("GATEWAYD_DAEMONIZED") == "1",
	})

	sup, err := gateway.NewSupervisor(log, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize gateway: %w", err)
	}

	pidFile := pidFilePath(cfg)
	if err := writePIDFile(pidFile); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer removePIDFile(pidFile)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sup.Run()
	}()

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
		sup.Stop()
		<-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway exited: %w", err)
		}
	}
	return nil
}

// spawnDaemon re-execs the gatewayd binary as a detached background
// process, mirroring the standard Go daemonization pattern (the runtime
// is multi-threaded, so fork() alone isn't safe).
func spawnDaemon() error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find executable path: %w", err)
	}

	logPath := configPath + ".log"
	if idx := strings.LastIndex(configPath, "."); idx != -1 {
		logPath = configPath[:idx] + ".log"
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}
	defer logFile.Close()

	daemonArgs := []string{"start", "--config", configPath}
	if verboseMode {
		daemonArgs = append(daemonArgs, "--verbose")
	}

	child := exec.Command(exePath, daemonArgs...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.Env = append(os.Environ(), "GATEWAYD_DAEMONIZED=1")

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("gatewayd started in background (PID %d)\n", child.Process.Pid)
	fmt.Printf("Log file: %s\n", logPath)

	if err := child.Process.Release(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to release child process: %v\n", err)
	}
	return nil
}

func pidFilePath(cfg *config.Config) string {
	return fmt.Sprintf("gatewayd-%d.pid", cfg.Server.Port)
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile(path string) {
	os.Remove(path)
}

// ============================================================================
// gatewayd stop
// ============================================================================

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		pidFile := pidFilePath(cfg)
		pidBytes, err := os.ReadFile(pidFile)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("gatewayd is not running (no PID file at %s)", pidFile)
			}
			return fmt.Errorf("failed to read PID file: %w", err)
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
		if err != nil {
			return fmt.Errorf("invalid PID in %s: %w", pidFile, err)
		}
		process, err := os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("failed to find process %d: %w", pid, err)
		}
		if err := process.Signal(syscall.SIGTERM); err != nil {
			os.Remove(pidFile)
			return fmt.Errorf("failed to stop gatewayd (PID %d): %w", pid, err)
		}
		fmt.Printf("Sent stop signal to gatewayd (PID %d)\n", pid)
		return nil
	},
}

// ============================================================================
// gatewayd status
// ============================================================================

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query gatewayd's health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		addr := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(addr + "/health")
		if err != nil {
			fmt.Println("Status: NOT RUNNING")
			fmt.Printf("Expected at: %s\n", addr)
			return nil
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		fmt.Println("Status: RUNNING")
		fmt.Printf("Listening on: %s\n", addr)

		var health struct {
			Status            string `json:"status"`
			Version           string `json:"version"`
			UptimeSeconds     int64  `json:"uptime_seconds"`
			TotalRequests     int64  `json:"total_requests"`
			ActiveConnections int    `json:"active_connections"`
		}
		if json.Unmarshal(body, &health) != nil {
			fmt.Println(string(body))
			return nil
		}
		fmt.Printf("Version: %s\n", health.Version)
		fmt.Printf("Uptime: %s\n", humanize.Time(time.Now().Add(-time.Duration(health.UptimeSeconds)*time.Second)))
		fmt.Printf("Requests served: %s\n", humanize.Comma(health.TotalRequests))
		fmt.Printf("Active connections: %d\n", health.ActiveConnections)
		return nil
	},
}

// ============================================================================
// gatewayd sessions
// ============================================================================

var sessionsCmd = &cobra.Command{
	Use:   "sessions <id>",
	Short: "Show a session's message history via the running gateway",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		addr := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(addr + "/sessions/" + args[0])
		if err != nil {
			return fmt.Errorf("gatewayd is not reachable at %s: %w", addr, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var pretty any
		if json.Unmarshal(body, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		fmt.Println(string(body))
		return nil
	},
}

// ============================================================================
// gatewayd tools
// ============================================================================

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools via the running gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		addr := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(addr + "/tools")
		if err != nil {
			return fmt.Errorf("gatewayd is not reachable at %s: %w", addr, err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		var pretty any
		if json.Unmarshal(body, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		fmt.Println(string(body))
		return nil
	},
}

// ============================================================================
// gatewayd config
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or initialize gatewayd.yaml",
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default gatewayd.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		}
		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
		fmt.Printf("Wrote default config to %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("No config file at %s — defaults apply.\n", configPath)
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
		fmt.Println(string(data))
		return nil
	},
}
