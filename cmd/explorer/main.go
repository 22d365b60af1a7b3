package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/olids/explorer/internal/config"
	"github.com/olids/explorer/internal/domain/timeline"
	"github.com/olids/explorer/internal/platform/db"
	"github.com/olids/explorer/internal/platform/sandbox"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "explorer",
		Short:        "OLIDS patient record explorer API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(timelineCmd())
	root.AddCommand(fixtureCmd())
	return root
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the explorer API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open data source")
	}
	defer b.Close()
	logger.Info().Str("data_source", cfg.DataSource).Msg("data source ready")

	e := newServer(cfg, logger, b)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the warehouse mirror schema used in development and CI",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			migrator, closePool, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			migrator, closePool, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			return renderMigrations(cmd.OutOrStdout(), statuses)
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// openMigrator connects with a writable pool; the serving pool is read-only.
func openMigrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.UsesFixture() {
		return nil, nil, fmt.Errorf("migrations need DATA_SOURCE=%s", config.DataSourcePostgres)
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:   cfg.DBMaxConns,
		MinConns:   cfg.DBMinConns,
		SearchPath: cfg.DBSearchPath,
	})
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
}

func timelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline <person_id|sk_patient_id>",
		Short: "Print a patient's reconciled timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, _ := cmd.Flags().GetString("type")
			rangeOpt, _ := cmd.Flags().GetString("range")
			format, _ := cmd.Flags().GetString("format")
			monthly, _ := cmd.Flags().GetBool("monthly")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env, cmd.ErrOrStderr()).Level(zerolog.WarnLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QueryTimeout)
			defer cancel()
			b, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			return runTimeline(ctx, timeline.NewService(b.source, logger), timelineOptions{
				Identifier: args[0],
				Type:       typ,
				Range:      rangeOpt,
				Format:     detectFormat(format),
				Monthly:    monthly,
				Out:        cmd.OutOrStdout(),
				Err:        cmd.ErrOrStderr(),
			})
		},
	}
	cmd.Flags().String("type", string(timeline.RecordTypeRegistration), "Record type: demographic, registration, medication, appointment, observation or problem")
	cmd.Flags().String("range", string(timeline.RangeAll), "Date range: 30d, 90d, 365d, 12m or all")
	cmd.Flags().String("format", "", "Output format: table or json (default: table on a terminal)")
	cmd.Flags().Bool("monthly", false, "Print monthly counts of past events instead of the records")
	return cmd
}

func fixtureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Work with YAML fixture datasets",
	}

	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic fixture dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sandbox.DefaultSeedConfig()
			cfg.PatientCount, _ = cmd.Flags().GetInt("patients")
			cfg.Seed, _ = cmd.Flags().GetInt64("seed")
			cfg.HistoryYears, _ = cmd.Flags().GetInt("years")
			out, _ := cmd.Flags().GetString("out")

			d := sandbox.Seed(cfg, time.Now())
			if out == "" || out == "-" {
				return d.Encode(cmd.OutOrStdout())
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := d.Encode(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			st := d.Stats()
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d patients (%d observations, %d appointments) to %s\n",
				st.Patients, st.Observations, st.Appointments, out)
			return nil
		},
	}
	genCmd.Flags().Int("patients", sandbox.DefaultSeedConfig().PatientCount, "Number of patients")
	genCmd.Flags().Int64("seed", 1, "Random seed; 0 picks a time-based seed")
	genCmd.Flags().Int("years", sandbox.DefaultSeedConfig().HistoryYears, "Years of history per patient")
	genCmd.Flags().String("out", "", "Output file (default: stdout)")
	cmd.AddCommand(genCmd)

	return cmd
}
