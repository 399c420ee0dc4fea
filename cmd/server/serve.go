package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"hopperGateway/internal/airflow"
	"hopperGateway/internal/auth"
	"hopperGateway/internal/config"
	"hopperGateway/internal/db"
	grpcserver "hopperGateway/internal/grpc"
	"hopperGateway/internal/httpapi"
	"hopperGateway/internal/logger"
	"hopperGateway/internal/powerbi"
	"hopperGateway/internal/recordstore"
	"hopperGateway/internal/resolver"
	"hopperGateway/repository"
)

func newServeCommand() *cobra.Command {
	v := config.NewViper()
	var (
		configFile string
		dev        bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
			}
			return serve(cmd.Context(), v, dev)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a yaml, json or toml config file")
	flags.BoolVar(&dev, "dev", false, "fall back to the embedded store and a development token secret")

	flags.String("http-host", "0.0.0.0", "interface the HTTP server binds to")
	mustBindPFlag(v, "http.host", flags.Lookup("http-host"))
	flags.Int("http-port", 8000, "port the HTTP server listens on")
	mustBindPFlag(v, "http.port", flags.Lookup("http-port"))
	flags.StringSlice("http-cors-allowed-origins", config.DefaultCORSAllowedOrigins, "origins allowed to call the API from a browser")
	mustBindPFlag(v, "http.cors_allowed_origins", flags.Lookup("http-cors-allowed-origins"))
	flags.String("grpc-addr", "", "host:port of the gRPC health server, empty to disable")
	mustBindPFlag(v, "grpc.address", flags.Lookup("grpc-addr"))

	flags.String("store-driver", config.DriverRemote, "record store driver: remote or sqlite")
	mustBindPFlag(v, "store.driver", flags.Lookup("store-driver"))
	flags.String("store-url", "", "base URL of the remote record store")
	mustBindPFlag(v, "store.url", flags.Lookup("store-url"))
	flags.String("store-path", "hopper.db", "SQLite file of the embedded record store")
	mustBindPFlag(v, "store.path", flags.Lookup("store-path"))

	flags.String("log-format", "json", "log format: json or text")
	mustBindPFlag(v, "log.format", flags.Lookup("log-format"))
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	mustBindPFlag(v, "log.level", flags.Lookup("log-level"))

	flags.Duration("upstream-timeout", 10*time.Second, "timeout of each call to an external system")
	mustBindPFlag(v, "timeouts.upstream", flags.Lookup("upstream-timeout"))
	flags.Int("resolver-max-goroutines", 8, "groups resolved concurrently when computing visible dashboards")
	mustBindPFlag(v, "resolver.max_goroutines", flags.Lookup("resolver-max-goroutines"))

	return cmd
}

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func serve(ctx context.Context, v *viper.Viper, dev bool) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	if dev {
		config.ApplyDevDefaults(v)
	}
	cfg, err := config.FromViper(v, !dev)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("configuration loaded", zap.Stringer("config", cfg))

	hc := &http.Client{}
	store, closeStore, err := openStore(cfg, hc)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer closeStore()

	users := repository.NewUserRepository(store)
	groups := repository.NewGroupRepository(store)
	assoc := repository.NewAssociationRepository(store)
	bi := powerbi.New(cfg.PowerBI, hc, cfg.Timeouts.Upstream)
	orchestrator := airflow.New(cfg.Airflow, hc, cfg.Timeouts.Upstream)

	handler := httpapi.NewHandler(httpapi.Deps{
		Auth:   auth.NewService(store, users, log),
		Users:  users,
		Groups: groups,
		Resolver: resolver.New(users, groups, assoc, bi, log, resolver.Options{
			MaxGoroutines:      cfg.Resolver.MaxGoroutines,
			UniqueAssociations: cfg.Resolver.UniqueAssociations,
		}),
		BI:                 bi,
		Orchestrator:       orchestrator,
		Logger:             log,
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
	})

	stopHTTP, err := httpapi.StartHTTP(cfg.HTTP, handler, log)
	if err != nil {
		return fmt.Errorf("start http: %w", err)
	}
	log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr()))

	stopGRPC := func(context.Context) error { return nil }
	if cfg.GRPC.Address != "" {
		if stopGRPC, err = grpcserver.StartGRPC(cfg.GRPC, log); err != nil {
			return fmt.Errorf("start grpc: %w", err)
		}
		log.Info("grpc health server listening", zap.String("addr", cfg.GRPC.Address))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stopHTTP(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := stopGRPC(shutdownCtx); err != nil {
		log.Error("grpc shutdown", zap.Error(err))
	}
	return nil
}

func openStore(cfg *config.Config, hc *http.Client) (recordstore.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		d, err := db.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return recordstore.NewSQLite(d, cfg.Store.TokenSecret), func() { _ = d.Close() }, nil
	default:
		return recordstore.NewRemote(cfg.Store.URL, hc, cfg.Timeouts.Upstream), func() {}, nil
	}
}
