// Package main is the entry point for the flowgate binary. It validates
// and executes JSONL workflow files against a fixture catalog, the same
// engine the server embeds.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowgate/flowgate/pkg/audit"
	"github.com/flowgate/flowgate/pkg/config"
	"github.com/flowgate/flowgate/pkg/domain"
	"github.com/flowgate/flowgate/pkg/engine"
	"github.com/flowgate/flowgate/pkg/logging"
	"github.com/flowgate/flowgate/pkg/storage"
	"github.com/flowgate/flowgate/pkg/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowgate",
		Short: "Declarative workflow execution engine for AI agents",
		Long: `flowgate parses, validates and executes JSONL workflow streams.

Agents describe operations (API calls, data transforms, storage, control
flow) as a message sequence; the engine checks them against the agent's
allowed catalog and runs them with rate limiting, retries, caching and
an audit trail.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringP("fixtures", "f", "", "Path to agent catalog fixtures file")
	rootCmd.PersistentFlags().StringP("agent", "a", "default", "Agent id to run as")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newRunCmd())
	return rootCmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [workflow.jsonl]",
		Short: "Parse and statically check a workflow without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			workflow, err := readWorkflow(args[0])
			if err != nil {
				return err
			}

			report, err := env.engine.Validate(cmd.Context(), env.agentID, workflow)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("workflow is invalid")
			}
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [workflow.jsonl]",
		Short: "Validate and execute a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			workflow, err := readWorkflow(args[0])
			if err != nil {
				return err
			}

			format := domain.FormatSummary
			if full, _ := cmd.Flags().GetBool("full"); full {
				format = domain.FormatFull
			}

			resp, report, err := env.engine.Run(cmd.Context(), env.agentID, workflow, format)
			if err != nil {
				return err
			}
			if resp == nil {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				return fmt.Errorf("workflow is invalid")
			}
			if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
				return err
			}
			if resp.Status == domain.ExecFailed {
				return fmt.Errorf("execution failed")
			}
			return nil
		},
	}
	runCmd.Flags().Bool("full", false, "Return the full data model instead of the shaped summary")
	return runCmd
}

type cliEnv struct {
	engine   *engine.Engine
	agentID  string
	shutdown []func()
}

func (e *cliEnv) close() {
	for i := len(e.shutdown) - 1; i >= 0; i-- {
		e.shutdown[i]()
	}
}

// setup assembles the engine from the configuration and fixtures files.
func setup(cmd *cobra.Command) (*cliEnv, error) {
	configPath, _ := cmd.Flags().GetString("config")
	fixturesPath, _ := cmd.Flags().GetString("fixtures")
	agentID, _ := cmd.Flags().GetString("agent")
	logLevel, _ := cmd.Flags().GetString("log-level")

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := logging.NewLogger(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)

	env := &cliEnv{agentID: agentID}

	fixtures, err := loadFixtures(fixturesPath, agentID)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := buildStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	env.shutdown = append(env.shutdown, closeStore)

	auditLog, closeAudit, err := buildAudit(cmd.Context(), cfg.Audit)
	if err != nil {
		return nil, err
	}
	env.shutdown = append(env.shutdown, closeAudit)

	shutdownTraces, err := telemetry.SetupProvider(cmd.Context(), telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Environment: cfg.Telemetry.Environment,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, err
	}
	env.shutdown = append(env.shutdown, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTraces(ctx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	})

	metrics := telemetry.NewMetrics()
	if cfg.MetricsAddr != "" {
		env.shutdown = append(env.shutdown, serveMetrics(cfg.MetricsAddr, metrics, logger))
	}

	eng, err := engine.New(cmd.Context(), engine.Options{
		Config:          cfg.Engine,
		CatalogProvider: fixtures.provider,
		Credentials:     fixtures.resolver,
		Audit:           auditLog,
		Metrics:         metrics,
		Logger:          logger,
		Storage:         store,
	})
	if err != nil {
		return nil, err
	}
	env.engine = eng
	return env, nil
}

func buildStorage(cfg config.StorageConfig) (storage.Store, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		return storage.NewMemoryStore(), func() {}, nil
	case "file":
		dir := cfg.Dir
		if dir == "" {
			dir = "flowgate-data"
		}
		store, err := storage.NewFileStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "redis":
		store := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildAudit(ctx context.Context, cfg config.AuditConfig) (domain.AuditLog, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		return audit.NewMemoryLog(), func() {}, nil
	case "file":
		log, err := audit.NewFileLog(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return log, func() { _ = log.Close() }, nil
	case "postgres":
		pool, err := newPGPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		log := audit.NewPostgresLog(pool)
		if err := log.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return log, func() { pool.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}
}

func serveMetrics(addr string, metrics *telemetry.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func readWorkflow(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	// #nosec G304 -- path is operator-supplied
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
