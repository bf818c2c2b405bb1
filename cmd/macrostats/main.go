package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/config"
	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/repository"
	"github.com/macromaster/ingest-server-go/internal/service"
)

const defaultUsername = "cli"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "macrostats",
		Short:         "MacroMaster stats database tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "SQLite database path")

	root.AddCommand(newInitCmd(&dbPath))
	root.AddCommand(newInfoCmd(&dbPath))
	root.AddCommand(newRecordCmd(&dbPath))
	root.AddCommand(newCleanupCmd(&dbPath))
	root.AddCommand(newBackupCmd(&dbPath))
	return root
}

func defaultDBPath() string {
	if cfg, err := config.Load(); err == nil && cfg.DatabasePath != "" {
		return cfg.DatabasePath
	}
	return "macromaster_realtime.db"
}

type app struct {
	db           *database.DB
	sessions     *service.SessionService
	interactions *service.InteractionService
	metrics      *service.MetricsService
	maintenance  *service.MaintenanceService
}

// openApp reads the same environment as the server so the metrics window and
// log retention match; only the database path comes from --db.
func openApp(ctx context.Context, dbPath string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.DatabasePath = dbPath
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := database.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	sessionRepo := repository.NewSessionRepository(db.DB)
	interactionRepo := repository.NewInteractionRepository(db.DB)
	logRepo := repository.NewSystemLogRepository(db.DB)
	auditLogger := audit.NewLogger(logRepo)
	metricsService := service.NewMetricsService(
		interactionRepo, repository.NewMetricsCacheRepository(db.DB), cfg.MetricsWindow(),
	)

	return &app{
		db:           db,
		sessions:     service.NewSessionService(db, sessionRepo, auditLogger),
		interactions: service.NewInteractionService(db, interactionRepo, metricsService, nil, auditLogger),
		metrics:      metricsService,
		maintenance: service.NewMaintenanceService(
			db, interactionRepo, sessionRepo, logRepo, auditLogger, cfg.SystemLogRetention,
		),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newInitCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer a.Close()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "database initialised at %s\n", a.db.Path())
			return nil
		},
	}
}

func newInfoCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show row counts and the recorded time range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.maintenance.Info(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}
}

func newRecordCmd(dbPath *string) *cobra.Command {
	var data, file, sessionID, username string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one interaction from JSON or a JSON/YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := loadPayload(data, file)
			if err != nil {
				return err
			}
			if sessionID != "" {
				payload.SessionID = sessionID
			}
			if payload.SessionID == "" {
				return fmt.Errorf("session id is required: set session_id or pass --session")
			}

			a, err := openApp(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := ensureSession(ctx, a, payload, username); err != nil {
				return err
			}

			id, err := a.interactions.RecordInteraction(ctx, payload.SessionID, payload)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"interaction_id": id,
				"session_id":     payload.SessionID,
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "interaction as a JSON string")
	cmd.Flags().StringVar(&file, "file", "", "interaction as a JSON or YAML file")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (overrides the payload)")
	cmd.Flags().StringVar(&username, "username", defaultUsername, "username for a session that does not exist yet")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
	cmd.MarkFlagsOneRequired("data", "file")
	return cmd
}

// loadPayload decodes --data as JSON, and --file as JSON or YAML by extension.
func loadPayload(data, file string) (model.InteractionPayload, error) {
	var payload model.InteractionPayload

	if data != "" {
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return payload, fmt.Errorf("invalid --data JSON: %w", err)
		}
		return payload, nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return payload, fmt.Errorf("read %s: %w", file, err)
	}
	if strings.EqualFold(filepath.Ext(file), ".json") {
		err = json.Unmarshal(raw, &payload)
	} else {
		err = yaml.Unmarshal(raw, &payload)
	}
	if err != nil {
		return payload, fmt.Errorf("decode %s: %w", file, err)
	}
	return payload, nil
}

// ensureSession starts the payload's session when the store has never seen it.
func ensureSession(ctx context.Context, a *app, payload model.InteractionPayload, username string) error {
	session, err := a.sessions.GetSession(ctx, payload.SessionID)
	if err != nil {
		return err
	}
	if session != nil {
		return nil
	}

	displayMode := payload.DisplayMode
	if displayMode == "" {
		displayMode = payload.CanvasMode
	}
	_, err = a.sessions.StartSession(ctx, payload.SessionID, username, displayMode)
	return err
}

func newCleanupCmd(dbPath *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete data older than the given number of days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.maintenance.CleanupOldData(cmd.Context(), days)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().IntVar(&days, "days", config.DefaultCleanupDays, "days of data to keep")
	return cmd
}

func newBackupCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent copy of the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), *dbPath)
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := a.maintenance.BackupDatabase(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
