package policyrouter

import (
	"context"
	"fmt"
	"time"

	"github.com/ferro-labs/policy-router/internal/logging"
	"github.com/ferro-labs/policy-router/models"
	"github.com/ferro-labs/policy-router/policy"
	"github.com/ferro-labs/policy-router/providers"
)

// NewRegistryFromConfig builds the backend registry. Stub mode registers
// deterministic stubs for openai and anthropic (and bedrock when enabled).
// Live mode registers the real clients; a live backend without a credential
// is still registered and reports the missing key per call.
func NewRegistryFromConfig(ctx context.Context, cfg BackendsConfig) (*providers.Registry, error) {
	reg := providers.NewRegistry()

	if cfg.Mode != ModeLive {
		reg.Register(providers.NewStub(providers.NameOpenAI))
		reg.Register(providers.NewStub(providers.NameAnthropic))
		if cfg.Bedrock.Enabled {
			reg.Register(providers.NewStub(providers.NameBedrock))
		}
		return reg, nil
	}

	oa, err := providers.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("openai backend: %w", err)
	}
	reg.Register(oa)

	an, err := providers.NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("anthropic backend: %w", err)
	}
	reg.Register(an)

	if cfg.Bedrock.Enabled {
		br, err := providers.NewBedrock(ctx, providers.BedrockOptions{
			Region:          cfg.Bedrock.Region,
			AccessKeyID:     cfg.Bedrock.AccessKeyID,
			SecretAccessKey: cfg.Bedrock.SecretAccessKey,
			SessionToken:    cfg.Bedrock.SessionToken,
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock backend: %w", err)
		}
		reg.Register(br)
	}
	return reg, nil
}

// LoadPolicy loads the policy document named by cfg.
func LoadPolicy(cfg PolicyConfig) (*policy.Document, error) {
	switch cfg.Driver {
	case DriverFile, "":
		return policy.LoadFile(cfg.Path)
	case DriverSQLite, DriverPostgres:
		store, err := policy.OpenStore(string(cfg.Driver), cfg.DSN)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()
		doc, ok, err := store.Load(cfg.Name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("policy document %q not found in %s store", cfg.Name, cfg.Driver)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unknown policy driver: %q", cfg.Driver)
	}
}

// NewFromConfig validates cfg and builds a Router from it: the policy
// document, the optional price table override and the backend registry.
// Any error here is a configuration error and should abort startup.
func NewFromConfig(ctx context.Context, cfg Config) (*Router, error) {
	ApplyDefaults(&cfg)
	ResolveCredentials(&cfg, nil)
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	doc, err := LoadPolicy(cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	prices := models.DefaultPriceTable()
	if cfg.Pricing.Path != "" {
		prices, err = models.LoadPriceTable(cfg.Pricing.Path)
		if err != nil {
			return nil, fmt.Errorf("loading pricing: %w", err)
		}
	}

	reg, err := NewRegistryFromConfig(ctx, cfg.Backends)
	if err != nil {
		return nil, err
	}

	engine := policy.NewEngine(doc)
	logging.Logger.Info("router configured",
		"profiles", len(engine.Profiles()),
		"policy_driver", string(cfg.Policy.Driver),
		"backend_mode", string(cfg.Backends.Mode),
		"backends", reg.List(),
	)

	return New(engine, reg,
		WithPriceTable(prices),
		WithBackendTimeout(time.Duration(cfg.Backends.TimeoutMs)*time.Millisecond),
		WithDefaultProfile(cfg.DefaultProfile),
		WithCircuitBreaker(cfg.Backends.CircuitBreaker.FailureThreshold,
			time.Duration(cfg.Backends.CircuitBreaker.CooldownMs)*time.Millisecond),
	), nil
}
