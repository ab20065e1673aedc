package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/parking/internal/accounts"
	"github.com/MarkoPoloResearchLab/parking/internal/oplog"
	"github.com/MarkoPoloResearchLab/parking/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/parking/internal/webapi"
	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	envPrefix = "PARKINGD"

	flagListenAddr     = "listen-addr"
	flagDatabaseURL    = "database-url"
	flagAllowedOrigins = "allowed-origins"
	flagSigningKey     = "jwt-signing-key"
	flagIssuer         = "jwt-issuer"
	flagCookieName     = "session-cookie-name"
	flagSessionTTL     = "session-ttl"
	flagSecureCookies  = "secure-cookies"
	flagAdminUsername  = "admin-username"
	flagAdminPassword  = "admin-password"
	flagAdminDisplay   = "admin-display-name"

	driverPostgres = "postgres"
	driverSQLite   = "sqlite"

	defaultSQLiteFile = "parking.db"
)

func main() {
	_ = godotenv.Load()
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "parkingd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &webapi.Config{}
	cmd := &cobra.Command{
		Use:           "parkingd",
		Short:         "Parking reservation HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagListenAddr, ":8080", "HTTP listen address")
	flags.String(flagDatabaseURL, "sqlite://"+defaultSQLiteFile, "database url (postgres:// or sqlite://)")
	flags.String(flagAllowedOrigins, "http://localhost:8000", "comma-separated CORS origins")
	flags.String(flagSigningKey, "", "HS256 session signing key")
	flags.String(flagIssuer, "parkingd", "session token issuer")
	flags.String(flagCookieName, "parking_session", "session cookie name")
	flags.Duration(flagSessionTTL, 24*time.Hour, "session lifetime")
	flags.Bool(flagSecureCookies, false, "mark session cookies Secure")
	flags.String(flagAdminUsername, "", "bootstrap administrator username")
	flags.String(flagAdminPassword, "", "bootstrap administrator password")
	flags.String(flagAdminDisplay, "Administrator", "bootstrap administrator display name")

	cmd.AddCommand(newCreateAdminCommand(cfg))
	return cmd
}

func newCreateAdminCommand(cfg *webapi.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "create-admin",
		Short: "Create or promote the configured administrator and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.HasBootstrapAdmin() {
				return fmt.Errorf("--%s and --%s are required", flagAdminUsername, flagAdminPassword)
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			app, cleanup, err := openApplication(cmd.Context(), *cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			user, created, err := app.accounts.EnsureAdmin(cmd.Context(), cfg.AdminUsername, cfg.AdminDisplayName, cfg.AdminPassword)
			if err != nil {
				return fmt.Errorf("ensure admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s (id %d) created=%t\n", user.Username, user.ID.Int64(), created)
			return nil
		},
	}
}

func loadConfig(cmd *cobra.Command, cfg *webapi.Config) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, name := range []string{
		flagListenAddr, flagDatabaseURL, flagAllowedOrigins, flagSigningKey, flagIssuer, flagCookieName,
		flagSessionTTL, flagSecureCookies, flagAdminUsername, flagAdminPassword, flagAdminDisplay,
	} {
		if err := viper.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}

	cfg.ListenAddr = viper.GetString(flagListenAddr)
	cfg.DatabaseURL = viper.GetString(flagDatabaseURL)
	cfg.AllowedOrigins = webapi.ParseAllowedOrigins(viper.GetString(flagAllowedOrigins))
	cfg.SessionSigningKey = viper.GetString(flagSigningKey)
	cfg.SessionIssuer = viper.GetString(flagIssuer)
	cfg.SessionCookieName = viper.GetString(flagCookieName)
	cfg.SessionTTL = viper.GetDuration(flagSessionTTL)
	cfg.SecureCookies = viper.GetBool(flagSecureCookies)
	cfg.AdminUsername = viper.GetString(flagAdminUsername)
	cfg.AdminPassword = viper.GetString(flagAdminPassword)
	cfg.AdminDisplayName = viper.GetString(flagAdminDisplay)
	return cfg.Validate()
}

type application struct {
	occupancy *occupancy.Service
	accounts  *accounts.Service
}

func openApplication(ctx context.Context, cfg webapi.Config, logger *zap.Logger) (application, func() error, error) {
	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return application{}, nil, fmt.Errorf("database open: %w", err)
	}
	if err := gormDB.AutoMigrate(gormstore.Models()...); err != nil {
		_ = cleanup()
		return application{}, nil, fmt.Errorf("auto migrate: %w", err)
	}

	store := gormstore.New(gormDB)
	operationLogger := oplog.New(logger)
	clock := func() int64 { return time.Now().UTC().Unix() }

	occupancyService, err := occupancy.NewService(store, clock, occupancy.WithOperationLogger(operationLogger))
	if err != nil {
		_ = cleanup()
		return application{}, nil, fmt.Errorf("occupancy service init: %w", err)
	}
	issuer, err := accounts.NewTokenIssuer(cfg.SessionSigningKey, cfg.SessionIssuer)
	if err != nil {
		_ = cleanup()
		return application{}, nil, fmt.Errorf("token issuer init: %w", err)
	}
	accountService, err := accounts.NewService(store, issuer, clock,
		accounts.WithSessionTTL(cfg.SessionTTL),
		accounts.WithOperationLogger(operationLogger),
	)
	if err != nil {
		_ = cleanup()
		return application{}, nil, fmt.Errorf("accounts service init: %w", err)
	}
	return application{occupancy: occupancyService, accounts: accountService}, cleanup, nil
}

func runServer(ctx context.Context, cfg webapi.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	app, cleanup, err := openApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	if cfg.HasBootstrapAdmin() {
		user, created, err := app.accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminDisplayName, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
		logger.Info("bootstrap admin ready", zap.String("username", user.Username), zap.Bool("created", created))
	}

	return webapi.Run(ctx, cfg, webapi.Dependencies{
		Occupancy: app.occupancy,
		Accounts:  app.accounts,
		Logger:    logger,
	})
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	switch driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	if driver == driverSQLite {
		// A single writer keeps sqlite from reporting SQLITE_BUSY under concurrent requests.
		sqlDB.SetMaxOpenConns(1)
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return driverPostgres, "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := parsed.Host + parsed.Path
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return driverSQLite, sqlitePath, err
	}
	sqlitePath, err := normalizeSQLitePath(dsn)
	return driverSQLite, sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
