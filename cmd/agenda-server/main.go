package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/agenda/internal/config"
	"github.com/clinic/agenda/internal/domain/booking"
	"github.com/clinic/agenda/internal/platform/db"
	"github.com/clinic/agenda/internal/platform/middleware"
	"github.com/clinic/agenda/internal/platform/slots"
)

var version = "dev"

func main() {
	config.LoadDotEnv()

	rootCmd := &cobra.Command{
		Use:          "agenda-server",
		Short:        "Clinic exam scheduling API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(bookCmd())
	rootCmd.AddCommand(cancelCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg == nil || cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.UseDatabase() {
			return fmt.Errorf("DATABASE_URL is not set")
		}

		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()

		m, err := db.NewMigrator(pool)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(ctx, m)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				v, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database is at version %d.\n", v)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrations(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

// storage is the persistence the server runs on. pinger is nil for the
// in-memory store.
type storage struct {
	appointments booking.AppointmentRepository
	patients     booking.PatientRepository
	pinger       db.Pinger
}

func memoryStorage() storage {
	store := booking.NewMemoryStore(booking.DefaultPatients()...)
	return storage{appointments: store, patients: store.Patients()}
}

// newSlotDirectory returns the default daily grid, overridden per day by
// the explicit slots in SLOTS_FILE when it is set.
func newSlotDirectory(cfg *config.Config) (*slots.Directory, error) {
	dir := slots.NewDirectory(slots.DefaultTemplate())
	if cfg.SlotsFile == "" {
		return dir, nil
	}
	f, err := os.Open(cfg.SlotsFile)
	if err != nil {
		return nil, fmt.Errorf("open slots file: %w", err)
	}
	defer f.Close()
	if _, err := dir.Load(f); err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.SlotsFile, err)
	}
	return dir, nil
}

// newServer wires the booking API onto a fresh echo instance.
func newServer(cfg *config.Config, logger zerolog.Logger, st storage, src booking.SlotSource, opts ...booking.ServiceOption) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	opts = append([]booking.ServiceOption{booking.WithSlotSource(src)}, opts...)
	svc := booking.NewService(st.appointments, st.patients, booking.DefaultCatalog(),
		logger.With().Str("component", "booking").Logger(), opts...)
	booking.NewHandler(svc).RegisterRoutes(e.Group("/api"))

	e.GET("/health", db.HealthHandler(st.pinger, version))
	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		l := newLogger(nil)
		l.Error().Err(err).Msg("failed to load config")
		return err
	}
	logger := newLogger(cfg)

	st := memoryStorage()
	if cfg.UseDatabase() {
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		st = storage{
			appointments: booking.NewAppointmentRepoPG(pool),
			patients:     booking.NewPatientRepoPG(pool),
			pinger:       pool,
		}
	} else {
		logger.Warn().Msg("DATABASE_URL not set, appointments are kept in memory")
	}

	dir, err := newSlotDirectory(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load slots")
		return err
	}
	if cfg.SlotsFile != "" {
		logger.Info().Str("file", cfg.SlotsFile).Msg("loaded explicit slots")
	}
	e := newServer(cfg, logger, st, dir)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
