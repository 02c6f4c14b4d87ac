package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	policyrouter "github.com/ferro-labs/policy-router"
	"github.com/ferro-labs/policy-router/internal/logging"
	"github.com/ferro-labs/policy-router/internal/ratelimit"
)

// maxRequestBytes caps POST /v1/route bodies.
const maxRequestBytes = 1 << 20

// newRouter builds the HTTP handler tree. limits may be nil.
func newRouter(rt *policyrouter.Router, corsOrigins []string, limits *ratelimit.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(corsOrigins...))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.With(rateLimitMiddleware(limits)).Post("/v1/route", routeHandler(rt))

	r.Get("/debug/policy", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, rt.DescribePolicy(r.URL.Query().Get("profile")))
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func routeHandler(rt *policyrouter.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "reading request body: "+err.Error(), "invalid_request_error")
			return
		}
		if len(body) > maxRequestBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "invalid_request_error")
			return
		}

		var req policyrouter.Request
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), "invalid_request_error")
			return
		}

		res, err := rt.Route(r.Context(), req)
		if err != nil {
			status, errType := http.StatusInternalServerError, "server_error"
			if errors.Is(err, policyrouter.ErrTaskRequired) || errors.Is(err, policyrouter.ErrInvalidConstraints) {
				status, errType = http.StatusBadRequest, "invalid_request_error"
			}
			writeError(w, status, err.Error(), errType)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// writeJSON writes v without HTML escaping so policy path entries such as
// "sla<=1000" stay readable.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "server_error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes a JSON error envelope: {"error":{"message","type"}}.
func writeError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": strings.TrimSpace(message),
			"type":    errType,
		},
	})
}
