package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"lucerna/internal/retention"
	"lucerna/pkg/api"
	"lucerna/pkg/banner"
	"lucerna/pkg/config"
	"lucerna/pkg/logger"
	"lucerna/pkg/security"
	"lucerna/pkg/service"
	"lucerna/pkg/store"
	"lucerna/pkg/tokens"
	"lucerna/pkg/viewer"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	// flag wins over env for the config path
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Logging.Level)

	// explicit flags win over env/config for addr and db path
	addr := addrVal
	if !setFlags["addr"] {
		addr = cfg.Addr()
	}
	dbPath := dbVal
	if !setFlags["db"] {
		if p := cfg.Storage.DBPath; p != "" {
			dbPath = p
		}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open pebble at %s: %v", dbPath, err)
	}

	counter, err := tokens.NewTableCounter(cfg.Tokens.Models)
	if err != nil {
		log.Fatalf("invalid tokens.models config: %v", err)
	}
	svc := service.New(st, counter)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopRetention, err := retention.Start(rootCtx, cfg, st)
	if err != nil {
		log.Fatalf("failed to start retention: %v", err)
	}

	// Config sources summary for the banner
	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	verStr := version
	if commit != "none" {
		verStr = verStr + " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr = verStr + " @ " + buildDate
	}
	banner.Print(cfg, addr, dbPath, strings.Join(srcs, ", "), verStr)

	mux := http.NewServeMux()
	mux.Handle("/viewer/", viewer.Handler("/viewer/"))
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.New(svc).Router())

	secCfg := security.SecConfig{
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
		IPWhitelist:    cfg.Security.IPWhitelist,
		APIKeys:        map[string]struct{}{},
		AllowUnauth:    cfg.Security.AllowUnauth,
	}
	if cfg.Security.RateLimit.RPS > 0 {
		secCfg.RPS = cfg.Security.RateLimit.RPS
		secCfg.Burst = cfg.Security.RateLimit.Burst
	}
	for _, k := range cfg.Security.APIKeys {
		secCfg.APIKeys[k] = struct{}{}
	}
	if len(secCfg.APIKeys) == 0 && !secCfg.AllowUnauth {
		logger.Warn("no_api_keys_configured", "hint", "set security.api_keys or LUCERNA_ALLOW_UNAUTH=true")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           security.Middleware(secCfg)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("shutdown_signal", "signal", s.String())
		cancel()
		stopRetention()
		shutdownCtx, sdCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer sdCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown_error", "error", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("store_close_error", "error", err)
		}
	}()

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	var errServe error
	if cert != "" && key != "" {
		errServe = srv.ListenAndServeTLS(cert, key)
	} else {
		errServe = srv.ListenAndServe()
	}
	if errServe != nil && errServe != http.ErrServerClosed {
		log.Fatal(errServe)
	}
	logger.Info("server_stopped")
}
