// Package policyrouter routes natural-language tasks to an LLM provider and
// model chosen by a declarative policy profile.
//
// The Router type is the main entry point: build one with New (or
// NewFromConfig to load everything from a [Config]), then call Route. Every
// call sanitizes the task, scans it against the denylist, evaluates the
// profile, calls the selected backend under a timeout, estimates tokens and
// cost, and optionally validates a structured result against a JSON Schema.
// Backend failures degrade the output but never fail the call.
package policyrouter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ferro-labs/policy-router/internal/circuitbreaker"
	"github.com/ferro-labs/policy-router/internal/logging"
	"github.com/ferro-labs/policy-router/internal/metrics"
	"github.com/ferro-labs/policy-router/models"
	"github.com/ferro-labs/policy-router/policy"
	"github.com/ferro-labs/policy-router/providers"
	"github.com/ferro-labs/policy-router/safety"
)

// SubjectRouteCompleted is the event subject published after every routed
// task, degraded or not.
const SubjectRouteCompleted = "router.route.completed"

// DefaultBackendTimeout bounds a single backend completion.
const DefaultBackendTimeout = 10 * time.Second

// Backend error kinds reported in metrics, logs and events.
const (
	ErrorKindMissingKey  = "missing_key"
	ErrorKindTimeout     = "timeout"
	ErrorKindAPI         = "api_error"
	ErrorKindNoBackend   = "no_backend"
	ErrorKindCircuitOpen = "circuit_open"
	ErrorKindException   = "exception"
)

// DenylistTracePrefix marks denylist hits in a RouteResult's policy path.
const DenylistTracePrefix = "denylist: "

// extractionStub stands in for a structured extraction of the task. Schema
// validation in metadata.schema is checked against it.
var extractionStub = map[string]any{"name": "John Q Doe", "email": "***@***"}

var (
	errNoBackend = errors.New("no backend registered")
	errPanic     = errors.New("backend panicked")
)

// EventHookFunc is called asynchronously after each routed task.
type EventHookFunc func(ctx context.Context, subject string, data map[string]interface{})

// Router routes tasks. It is safe for concurrent use. The policy engine can
// be swapped with SetEngine; in-flight routes keep the engine they started
// with.
type Router struct {
	engine         atomic.Pointer[policy.Engine]
	backends       *providers.Registry
	prices         models.PriceTable
	estimator      models.TokenEstimator
	timeout        time.Duration
	defaultProfile string

	// breakerThreshold > 0 enables per-provider circuit breakers.
	breakerThreshold int
	breakerCooldown  time.Duration

	mu       sync.RWMutex
	hooks    []EventHookFunc
	breakers map[string]*circuitbreaker.Breaker
}

// Option configures a Router.
type Option func(*Router)

// WithPriceTable replaces the embedded default price table.
func WithPriceTable(t models.PriceTable) Option {
	return func(r *Router) { r.prices = t }
}

// WithTokenEstimator replaces the naive chars/4 estimator.
func WithTokenEstimator(e models.TokenEstimator) Option {
	return func(r *Router) { r.estimator = e }
}

// WithBackendTimeout sets the per-call backend timeout. Non-positive values
// are ignored.
func WithBackendTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithDefaultProfile sets the profile used when a request names none.
func WithDefaultProfile(name string) Option {
	return func(r *Router) {
		if name != "" {
			r.defaultProfile = name
		}
	}
}

// WithCircuitBreaker trips a provider's breaker after threshold consecutive
// backend failures; calls are then answered degraded without reaching the
// backend until cooldown has passed. threshold <= 0 disables breakers.
func WithCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(r *Router) {
		r.breakerThreshold = threshold
		r.breakerCooldown = cooldown
	}
}

// New creates a Router over engine and backends. A nil registry behaves as
// an empty one, so every route degrades with a no_backend error.
func New(engine *policy.Engine, backends *providers.Registry, opts ...Option) *Router {
	if engine == nil {
		engine = policy.NewEngine(nil)
	}
	if backends == nil {
		backends = providers.NewRegistry()
	}
	r := &Router{
		backends:       backends,
		prices:         models.DefaultPriceTable(),
		estimator:      models.NaiveEstimator{},
		timeout:        DefaultBackendTimeout,
		defaultProfile: DefaultProfile,
	}
	r.engine.Store(engine)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the current policy engine.
func (r *Router) Engine() *policy.Engine { return r.engine.Load() }

// SetEngine replaces the policy engine, e.g. after the policy file changed.
// A nil engine is ignored.
func (r *Router) SetEngine(e *policy.Engine) {
	if e != nil {
		r.engine.Store(e)
	}
}

// AddHook registers an EventHookFunc that is called asynchronously after
// every routed task. All registered hooks see every event.
func (r *Router) AddHook(fn EventHookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Route routes a single task. It returns an error only when the request
// itself is invalid; backend failures are folded into the result.
func (r *Router) Route(ctx context.Context, req Request) (*RouteResult, error) {
	start := time.Now()

	traceID := logging.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = logging.NewTraceID()
		ctx = logging.WithTraceID(ctx, traceID)
	}
	log := logging.FromContext(ctx)

	profile := req.Profile
	if profile == "" {
		profile = r.defaultProfile
	}

	constraints, err := validateRequest(req)
	if err != nil {
		metrics.RoutesTotal.WithLabelValues(r.profileLabel(profile), "", "", metrics.OutcomeRejected).Inc()
		log.Warn("route rejected", "profile", profile, "error", err.Error())
		return nil, err
	}

	// Pre-guards. Nothing downstream sees the raw task.
	sanitized := safety.Sanitize(req.Task)
	hits := safety.Scan(sanitized)
	for _, h := range hits {
		metrics.DenylistHits.WithLabelValues(h).Inc()
	}

	decision := r.Engine().Evaluate(profile, constraints)
	path := make([]string, 0, len(decision.PolicyPath)+len(hits))
	path = append(path, decision.PolicyPath...)
	for _, h := range hits {
		path = append(path, DenylistTracePrefix+h)
	}

	output, errKind := r.complete(ctx, decision, sanitized)

	promptTokens := r.estimator.Estimate(sanitized)
	outputTokens := r.estimator.Estimate(output)
	cost := r.prices.EstimateCostCents(decision.Model, promptTokens, outputTokens)

	validation := &Validation{DenyHits: hits}
	if schema := req.Schema(); schema != nil {
		ok, errs := safety.ValidateSchema(extractionStub, schema)
		validation.OK = &ok
		validation.Errors = errs
		validation.CheckedKeys = sortedKeys(extractionStub)
	}

	latency := time.Since(start)

	outcome := metrics.OutcomeOK
	if errKind != "" {
		outcome = metrics.OutcomeDegraded
	}
	metrics.RoutesTotal.WithLabelValues(r.profileLabel(profile), decision.Provider, decision.Model, outcome).Inc()
	metrics.RouteDuration.WithLabelValues(decision.Provider, decision.Model).Observe(latency.Seconds())
	metrics.TokensPrompt.WithLabelValues(decision.Provider, decision.Model).Add(float64(promptTokens))
	metrics.TokensOutput.WithLabelValues(decision.Provider, decision.Model).Add(float64(outputTokens))
	if cost > 0 {
		metrics.EstimatedCostCents.WithLabelValues(decision.Provider, decision.Model).Add(cost)
	}

	log.Info("route completed",
		"profile", profile,
		"provider", decision.Provider,
		"model", decision.Model,
		"policy_path", strings.Join(path, " | "),
		"latency_ms", latency.Milliseconds(),
		"tokens_prompt", promptTokens,
		"tokens_output", outputTokens,
		"cost_cents", cost,
		"deny_hits", len(hits),
		"degraded", errKind != "",
	)

	event := map[string]interface{}{
		"trace_id":      traceID,
		"profile":       profile,
		"provider":      decision.Provider,
		"model":         decision.Model,
		"policy_path":   path,
		"latency_ms":    latency.Milliseconds(),
		"tokens_prompt": promptTokens,
		"tokens_output": outputTokens,
		"cost_cents":    cost,
		"deny_hits":     hits,
		"degraded":      errKind != "",
		"timestamp":     time.Now(),
	}
	if errKind != "" {
		event["error_type"] = errKind
	}
	r.publishEvent(ctx, SubjectRouteCompleted, event)

	return &RouteResult{
		Decision:       decision,
		PolicyPath:     path,
		Output:         output,
		DebugSanitized: sanitized,
		Validation:     validation,
		TraceID:        traceID,
		Metrics: RouteMetrics{
			LatencyMs:    latency.Milliseconds(),
			TokensPrompt: promptTokens,
			TokensOutput: outputTokens,
			CostCents:    cost,
		},
	}, nil
}

// complete calls the decision's backend and returns its output. On failure
// the output is "[<provider>-error] <detail>" and errKind is non-empty.
func (r *Router) complete(ctx context.Context, d policy.Decision, prompt string) (output, errKind string) {
	log := logging.FromContext(ctx)

	comp, err := r.callBackend(ctx, d, prompt)
	if err == nil {
		return comp.Output, ""
	}

	errKind = classifyBackendError(err)
	detail := err.Error()
	if errKind == ErrorKindTimeout {
		detail = fmt.Sprintf("timeout after %s", r.timeout)
	}
	metrics.BackendErrors.WithLabelValues(d.Provider, errKind).Inc()
	log.Warn("backend completion failed",
		"provider", d.Provider,
		"model", d.Model,
		"error_type", errKind,
		"error", err.Error(),
	)
	return fmt.Sprintf("[%s-error] %s", d.Provider, detail), errKind
}

func (r *Router) callBackend(ctx context.Context, d policy.Decision, prompt string) (comp *providers.Completion, err error) {
	p, ok := r.backends.Get(d.Provider)
	if !ok {
		return nil, fmt.Errorf("%w for provider %q", errNoBackend, d.Provider)
	}

	if cb := r.breaker(d.Provider); cb != nil {
		if err := cb.Allow(); err != nil {
			return nil, err
		}
		defer func() { cb.Record(err == nil || errors.Is(err, providers.ErrMissingAPIKey)) }()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The call runs on its own goroutine so a backend that ignores ctx
	// cannot hold the route past the deadline. done is buffered so the
	// goroutine can always finish.
	type result struct {
		comp *providers.Completion
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var res result
		defer func() {
			if rec := recover(); rec != nil {
				res = result{err: fmt.Errorf("%w: %v", errPanic, rec)}
			}
			done <- res
		}()
		res.comp, res.err = p.Complete(ctx, prompt, d.Model)
	}()

	select {
	case res := <-done:
		comp, err = res.comp, res.err
	case <-ctx.Done():
		comp, err = nil, ctx.Err()
	}
	if err == nil && comp == nil {
		err = fmt.Errorf("backend %s returned no completion", d.Provider)
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return comp, err
}

// profileLabel keeps the profile metric label bounded: names not in the
// loaded policy are reported as metrics.UnknownProfile.
func (r *Router) profileLabel(profile string) string {
	if _, ok := r.Engine().Profile(profile); ok {
		return profile
	}
	return metrics.UnknownProfile
}

// breaker returns the provider's breaker, or nil when breakers are off.
func (r *Router) breaker(provider string) *circuitbreaker.Breaker {
	if r.breakerThreshold <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.breakers == nil {
		r.breakers = make(map[string]*circuitbreaker.Breaker)
	}
	cb, ok := r.breakers[provider]
	if !ok {
		cb = circuitbreaker.New(r.breakerThreshold, r.breakerCooldown)
		r.breakers[provider] = cb
	}
	return cb
}

func classifyBackendError(err error) string {
	var apiErr *providers.APIError
	switch {
	case errors.Is(err, providers.ErrMissingAPIKey):
		return ErrorKindMissingKey
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.As(err, &apiErr):
		return ErrorKindAPI
	case errors.Is(err, errNoBackend):
		return ErrorKindNoBackend
	case errors.Is(err, circuitbreaker.ErrOpen):
		return ErrorKindCircuitOpen
	default:
		return ErrorKindException
	}
}

// validateRequest checks the task and returns the effective constraints.
func validateRequest(req Request) (policy.Constraints, error) {
	if strings.TrimSpace(req.Task) == "" {
		return policy.Constraints{}, ErrTaskRequired
	}
	if req.Constraints == nil {
		return policy.DefaultConstraints(), nil
	}
	c := *req.Constraints
	if err := c.Validate(); err != nil {
		return policy.Constraints{}, fmt.Errorf("%w: %v", ErrInvalidConstraints, err)
	}
	return c, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// publishEvent calls all registered hooks asynchronously.
func (r *Router) publishEvent(ctx context.Context, subject string, data map[string]interface{}) {
	r.mu.RLock()
	hooks := make([]EventHookFunc, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.RUnlock()

	for _, h := range hooks {
		fn := h
		go fn(ctx, subject, data)
	}
}

// PolicyDescription is the introspection view of the loaded policy.
type PolicyDescription struct {
	Profiles  []string      `json:"profiles"`
	Profile   string        `json:"profile"`
	Provider  string        `json:"provider,omitempty"`
	RuleCount int           `json:"rule_count"`
	Rules     []policy.Rule `json:"rules"`
}

// DescribePolicy returns the loaded profile names and the rules of profile
// (the default profile when empty). An unknown profile has no rules.
func (r *Router) DescribePolicy(profile string) PolicyDescription {
	if profile == "" {
		profile = r.defaultProfile
	}
	eng := r.Engine()
	d := PolicyDescription{
		Profiles: eng.Profiles(),
		Profile:  profile,
		Rules:    []policy.Rule{},
	}
	if p, ok := eng.Profile(profile); ok {
		d.Provider = p.Provider
		d.Rules = p.Rules
		d.RuleCount = len(p.Rules)
	}
	return d
}
