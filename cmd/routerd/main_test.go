package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	policyrouter "github.com/ferro-labs/policy-router"
	"github.com/ferro-labs/policy-router/internal/ratelimit"
	"github.com/ferro-labs/policy-router/policy"
	"github.com/ferro-labs/policy-router/providers"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newLimitedTestServer(t, nil)
}

func newLimitedTestServer(t *testing.T, limits *ratelimit.Store) *httptest.Server {
	t.Helper()
	doc, err := policy.LoadFile("../../policies/fast-cheap-safe.yaml")
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	reg := providers.NewRegistry(providers.NewStub("openai"), providers.NewStub("anthropic"))
	rt := policyrouter.New(policy.NewEngine(doc), reg)
	srv := httptest.NewServer(newRouter(rt, nil, limits))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body: %v", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRoute_PIIScenario(t *testing.T) {
	srv := newTestServer(t)

	payload := `{
		"task": "Contact me at jane@example.com or 555-123-4567",
		"profile": "fast-cheap-safe",
		"constraints": {"latency_sla_ms": 900, "budget_cents": 5.0, "safety": "standard"}
	}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/route", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "trc_from_client")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /v1/route: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var res map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	decision := res["decision"].(map[string]any)
	if decision["model"] != "gpt-4o-mini" || decision["provider"] != "openai" {
		t.Errorf("unexpected decision: %v", decision)
	}
	sanitized := res["debug_sanitized"].(string)
	if strings.Contains(sanitized, "jane@example.com") || strings.Contains(sanitized, "555-123-4567") {
		t.Errorf("PII leaked: %q", sanitized)
	}
	found := false
	for _, p := range res["policy_path"].([]any) {
		if p == "sla<=1000→prefer gpt-4o-mini" {
			found = true
		}
	}
	if !found {
		t.Errorf("policy path %v lacks sla entry", res["policy_path"])
	}
	if res["trace_id"] != "trc_from_client" {
		t.Errorf("trace id = %v", res["trace_id"])
	}
	validation := res["validation"].(map[string]any)
	if _, ok := validation["deny_hits"]; !ok {
		t.Errorf("validation lacks deny_hits: %v", validation)
	}
	if _, ok := validation["ok"]; ok {
		t.Errorf("validation should omit ok without a schema: %v", validation)
	}
}

func TestRoute_SchemaViolation(t *testing.T) {
	srv := newTestServer(t)

	payload := `{
		"task": "extract the contact",
		"metadata": {"schema": {"type": "object", "required": ["name", "phone"]}}
	}`
	resp, err := http.Post(srv.URL+"/v1/route", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /v1/route: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var res struct {
		Validation struct {
			OK          *bool    `json:"ok"`
			Errors      []string `json:"errors"`
			CheckedKeys []string `json:"checked_keys"`
		} `json:"validation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Validation.OK == nil || *res.Validation.OK || len(res.Validation.Errors) == 0 {
		t.Errorf("expected failed validation, got %+v", res.Validation)
	}
}

func TestRoute_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"task": `},
		{"missing task", `{"profile": "fast-cheap-safe"}`},
		{"wrong task type", `{"task": 42}`},
		{"invalid safety", `{"task": "x", "constraints": {"safety": "paranoid"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/route", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var body struct {
				Error struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Message == "" || body.Error.Type != "invalid_request_error" {
				t.Errorf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestDebugPolicy(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/debug/policy?profile=fast-cheap-safe")
	if err != nil {
		t.Fatalf("GET /debug/policy: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Profiles  []string         `json:"profiles"`
		Profile   string           `json:"profile"`
		RuleCount int              `json:"rule_count"`
		Rules     []map[string]any `json:"rules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RuleCount != 4 || len(body.Rules) != 4 {
		t.Errorf("unexpected rules: %+v", body)
	}
	if body.Rules[1]["if"] != "latency_sla_ms <= 1000" {
		t.Errorf("rule 1 = %v", body.Rules[1])
	}
	if _, ok := body.Rules[3]["default"]; !ok {
		t.Errorf("rule 3 should be a default rule: %v", body.Rules[3])
	}
	if len(body.Profiles) != 2 {
		t.Errorf("profiles = %v", body.Profiles)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/route", "application/json", strings.NewReader(`{"task": "hello"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "router_routes_total") {
		t.Error("metrics output lacks router_routes_total")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/v1/route", nil)
	req.Header.Set("Origin", "https://example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestRoute_RateLimited(t *testing.T) {
	srv := newLimitedTestServer(t, ratelimit.NewStore(0.01, 1))

	post := func() *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+"/v1/route", "application/json", strings.NewReader(`{"task":"ping"}`))
		if err != nil {
			t.Fatalf("POST /v1/route: %v", err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	if resp := post(); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", resp.StatusCode)
	}

	resp := post()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Type != "rate_limit_error" {
		t.Errorf("error type = %q", body.Error.Type)
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer func() { _ = health.Body.Close() }()
	if health.StatusCode != http.StatusOK {
		t.Errorf("health should not be rate limited, got %d", health.StatusCode)
	}
}

func TestWatchPolicy_SwapsEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("profiles:\n  first:\n    rules: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err := policy.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rt := policyrouter.New(policy.NewEngine(doc), nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := watchPolicy(ctx, rt, path); err != nil {
		t.Fatalf("watchPolicy: %v", err)
	}

	if err := os.WriteFile(path, []byte("profiles:\n  second:\n    rules: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if slices.Contains(rt.Engine().Profiles(), "second") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("engine not swapped, profiles = %v", rt.Engine().Profiles())
}
