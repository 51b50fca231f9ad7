package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/imap-gateway/internal/api"
	"github.com/fenilsonani/imap-gateway/internal/audit"
	"github.com/fenilsonani/imap-gateway/internal/config"
	"github.com/fenilsonani/imap-gateway/internal/imapx"
	"github.com/fenilsonani/imap-gateway/internal/logging"
	"github.com/fenilsonani/imap-gateway/internal/service"
)

var (
	cfgFile string
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "imapgw",
	Short: "HTTP gateway to an IMAP mailbox",
	Long: `A small HTTP API in front of one IMAP account:
- List and filter mailbox messages as JSON
- Download message attachments
- Prometheus metrics and an optional SQLite audit log`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help commands
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to create required directories: %w", err)
		}

		logger, err := logging.New(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cfg.Logging.Output,
		})
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		var auditLog *audit.Log
		if cfg.Audit.Enabled {
			auditLog, err = audit.Open(cfg.Audit.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open audit log: %w", err)
			}
			defer auditLog.Close()
		}

		dialOpts := imapx.Options{
			Host:           cfg.IMAP.Host,
			Port:           cfg.IMAP.Port,
			UseTLS:         cfg.IMAP.UseTLS,
			Username:       cfg.IMAP.Username,
			Password:       cfg.IMAP.Password,
			ConnectTimeout: parseDuration(cfg.IMAP.ConnectTimeout, 30*time.Second),
		}
		svc := service.New(func() (service.MailSession, error) {
			return imapx.Dial(dialOpts, logger)
		}, logger)

		var limiter *api.RateLimiter
		if cfg.RateLimit.Enabled {
			limiter = api.NewRateLimiter(cfg.RateLimit.Requests, parseDuration(cfg.RateLimit.Window, time.Minute))
		}

		server := api.NewServer(api.Config{
			Listen:       fmt.Sprintf("%s:%d", cfg.Server.Listen, cfg.Server.Port),
			ReadTimeout:  parseDuration(cfg.Server.ReadTimeout, 30*time.Second),
			WriteTimeout: parseDuration(cfg.Server.WriteTimeout, 60*time.Second),
		}, svc, logger, limiter, auditLog)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		logger.Info("gateway started",
			"listen", fmt.Sprintf("%s:%d", cfg.Server.Listen, cfg.Server.Port),
			"upstream", dialOpts.Address())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig.String())
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), parseDuration(cfg.Server.ShutdownTimeout, 30*time.Second))
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err.Error())
			return err
		}
		logger.Info("gateway stopped")
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the configuration and upstream IMAP connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		fmt.Println("Configuration OK")

		logger, err := logging.New(logging.Config{Level: "warn", Format: "text", Output: "stderr"})
		if err != nil {
			return err
		}

		session, err := imapx.Dial(imapx.Options{
			Host:           cfg.IMAP.Host,
			Port:           cfg.IMAP.Port,
			UseTLS:         cfg.IMAP.UseTLS,
			Username:       cfg.IMAP.Username,
			Password:       cfg.IMAP.Password,
			ConnectTimeout: parseDuration(cfg.IMAP.ConnectTimeout, 30*time.Second),
		}, logger)
		if err != nil {
			return fmt.Errorf("upstream check failed: %w", err)
		}
		defer session.Close()

		count, err := session.Select("INBOX")
		if err != nil {
			return fmt.Errorf("upstream check failed: %w", err)
		}
		fmt.Printf("Upstream OK: %s, INBOX has %d messages\n", cfg.IMAP.Host, count)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("imapgw v0.1.0")
	},
}

// parseDuration parses a config duration string, falling back to def.
// Validate has already rejected malformed values on the serve path.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}
