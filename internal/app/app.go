// Package app wires the quote proxy together: ERP catalog cache, rate
// providers, HTTP handlers, health probes and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/handler"
	"github.com/posv-labs/storefront/internal/upstream/erp"
	"github.com/posv-labs/storefront/internal/upstream/rates"
	"github.com/posv-labs/storefront/pkg/health"
	"github.com/posv-labs/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the proxy.
func Run(ctx context.Context, lg *zap.Logger, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// ERP catalog behind the TTL cache.
	erpClient := erp.NewClient(cfg.ERP.BaseURL, cfg.ERP.Token, cfg.ERP.Timeout, lg.Named("erp"))
	catalogCache := erp.NewCache(erpClient, cfg.Catalog.TTL, lg.Named("cache"))

	// Rate providers; Melhor Envio is the default.
	rateSet := rates.NewSet(
		rates.NewMelhorEnvio(cfg.Rates.MelhorEnvioEnv, "", cfg.Rates.MelhorEnvioToken, cfg.Rates.Timeout, lg.Named("melhorenvio")),
		rates.NewCorreios(cfg.Rates.CorreiosURL, cfg.Rates.Timeout, lg.Named("correios")),
	)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("erp", 5*time.Second,
		health.HTTPReachableCheck(nil, cfg.ERP.BaseURL))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h := handler.New(catalogCache, rateSet, cfg.Rates.OriginCEP)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				MaxAge:       86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
