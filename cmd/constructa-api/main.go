package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/instructa/constructa/internal/boards"
	"github.com/instructa/constructa/internal/config"
	"github.com/instructa/constructa/internal/cursors"
	"github.com/instructa/constructa/internal/database"
	"github.com/instructa/constructa/internal/identity"
	"github.com/instructa/constructa/internal/logging"
	"github.com/instructa/constructa/internal/notes"
	"github.com/instructa/constructa/internal/presence"
	"github.com/instructa/constructa/internal/realtime"
	"github.com/instructa/constructa/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "constructa-api",
		Short: "Constructa collaborative board backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("presence-signing-secret", "", "Presence token signing secret (overrides env)")
	cmd.PersistentFlags().Int("cursor-stale-window-ms", defaults.GetInt("cursor.stale_window_ms"), "Cursor staleness window in milliseconds")
	cmd.PersistentFlags().Int("cursor-reap-interval-s", defaults.GetInt("cursor.reap_interval_s"), "Cursor reaper interval in seconds (0 disables)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "presence.signing_secret", "presence-signing-secret")
	bindFlag(cmd, "cursor.stale_window_ms", "cursor-stale-window-ms")
	bindFlag(cmd, "cursor.reap_interval_s", "cursor-reap-interval-s")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := identity.NewUUIDProvider()

	boardsService, err := boards.NewService(boards.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	notesService, err := notes.NewService(notes.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	cursorsService, err := cursors.NewService(cursors.ServiceConfig{
		Database:    db,
		Clock:       time.Now,
		IDProvider:  idProvider,
		StaleWindow: appConfig.CursorStaleWindow,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	tokenIssuer := presence.NewTokenIssuer(presence.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.PresenceSigningSecret),
	})

	presenceService, err := presence.NewService(presence.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Tokens:     tokenIssuer,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	dispatcher := realtime.NewDispatcher()

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	reaper := cursors.NewReaper(cursorsService, appConfig.CursorReapInterval, logger)
	go reaper.Run(reaperCtx)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Boards:   boardsService,
		Notes:    notesService,
		Cursors:  cursorsService,
		Presence: presenceService,
		Realtime: dispatcher,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
