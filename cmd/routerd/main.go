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

	policyrouter "github.com/ferro-labs/policy-router"
	"github.com/ferro-labs/policy-router/internal/logging"
	"github.com/ferro-labs/policy-router/internal/metrics"
	"github.com/ferro-labs/policy-router/internal/ratelimit"
	"github.com/ferro-labs/policy-router/internal/version"
	"github.com/ferro-labs/policy-router/policy"
)

// defaultConfigPath is used when ROUTER_CONFIG is unset.
const defaultConfigPath = "config.example.yaml"

func main() {
	// Optional .env with provider keys; the real environment wins.
	_ = godotenv.Load()

	cfgPath := os.Getenv("ROUTER_CONFIG")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "" || cfg.Logging.Format != "" {
		logging.Setup(firstNonEmpty(os.Getenv("LOG_LEVEL"), cfg.Logging.Level), firstNonEmpty(os.Getenv("LOG_FORMAT"), cfg.Logging.Format))
	}

	// Bounds AWS credential resolution when bedrock is enabled.
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	rt, err := policyrouter.NewFromConfig(initCtx, *cfg)
	cancelInit()
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	var corsOrigins []string
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Policy.Watch && cfg.Policy.Driver == policyrouter.DriverFile {
		if err := watchPolicy(ctx, rt, cfg.Policy.Path); err != nil {
			log.Fatalf("Failed to watch policy: %v", err) //nolint:gocritic
		}
	}

	var limits *ratelimit.Store
	if rl := cfg.Server.RateLimit; rl.RPS > 0 {
		limits = ratelimit.NewStore(rl.RPS, rl.Burst)
		go pruneLimiters(ctx, limits)
		logging.Logger.Info("rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}

	addr := cfg.Server.Addr
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(rt, corsOrigins, limits),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("routerd %s listening on %s (profiles: %s)", version.Short(), addr, strings.Join(rt.Engine().Profiles(), ", "))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("Server error: %v", err) //nolint:gocritic
	}
	log.Println("Server stopped.")
}

// loadConfig reads the config file and applies defaults. Validation happens
// in NewFromConfig.
func loadConfig(path string) (*policyrouter.Config, error) {
	cfg, err := policyrouter.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	policyrouter.ApplyDefaults(cfg)
	return cfg, nil
}

// watchPolicy swaps rt's engine whenever the policy file changes. A broken
// edit is logged and the previous engine keeps serving.
func watchPolicy(ctx context.Context, rt *policyrouter.Router, path string) error {
	w, err := policy.NewWatcher(path)
	if err != nil {
		return err
	}
	go func() {
		err := w.Run(ctx,
			func(doc *policy.Document) {
				eng := policy.NewEngine(doc)
				rt.SetEngine(eng)
				metrics.PolicyReloads.WithLabelValues("ok").Inc()
				logging.Logger.Info("policy reloaded", "path", path, "profiles", eng.Profiles())
			},
			func(err error) {
				metrics.PolicyReloads.WithLabelValues("error").Inc()
				logging.Logger.Error("policy reload failed, keeping previous policy", "path", path, "error", err)
			},
		)
		if err != nil {
			logging.Logger.Error("policy watcher stopped", "error", err)
		}
	}()
	logging.Logger.Info("watching policy file", "path", path)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
