package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"hopperGateway/internal/config"
	"hopperGateway/internal/logger"
)

// StartHTTP listens on cfg.Addr() and serves h in the background. It returns
// a shutdown function that drains in-flight requests until ctx expires.
func StartHTTP(cfg config.HTTPConfig, h http.Handler, log logger.Logger) (func(context.Context) error, error) {
	lis, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	return srv.Shutdown, nil
}
