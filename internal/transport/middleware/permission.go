package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/permission"
)

// PermissionEvaluator is the evaluator surface the gate consumes. Gate
// decisions come from here and nowhere else; the gate holds no policy copy
// of its own.
type PermissionEvaluator interface {
	Check(ctx context.Context, actor internal.Actor, codes []string, comb permission.Combinator) error
}

// Gate enforces permission codes on routes. Every route hidden in the UI by
// a permission must also pass through here on its mutation; UI-only gating
// is a defect.
type Gate struct {
	evaluator PermissionEvaluator
	logger    *slog.Logger
}

func NewGate(evaluator PermissionEvaluator, logger *slog.Logger) *Gate {
	return &Gate{evaluator: evaluator, logger: logger}
}

// Require gates a route on a single permission code.
func (g *Gate) Require(code string) func(http.Handler) http.Handler {
	return g.gate([]string{code}, permission.CombinatorAll)
}

// RequireAny gates a route on holding at least one of codes.
func (g *Gate) RequireAny(codes ...string) func(http.Handler) http.Handler {
	return g.gate(codes, permission.CombinatorAny)
}

// RequireAll gates a route on holding every one of codes.
func (g *Gate) RequireAll(codes ...string) func(http.Handler) http.Handler {
	return g.gate(codes, permission.CombinatorAll)
}

func (g *Gate) gate(codes []string, comb permission.Combinator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := internal.ActorFromContext(r.Context())
			if !ok || actor == nil {
				g.logger.Warn("permission gate: no actor in context")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := g.evaluator.Check(r.Context(), *actor, codes, comb); err != nil {
				g.writeDecision(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) writeDecision(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		g.logger.ErrorContext(r.Context(), "permission gate: evaluation failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Configuration errors (unregistered codes) are not ordinary denials;
	// surface them as server faults, never as a 403.
	if appErr.Type == internal.ErrorTypeConfiguration {
		g.logger.ErrorContext(r.Context(), "permission gate: unregistered permission code", "error", appErr)
	}

	status, body := appErr.ToHTTPResponse()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		g.logger.Error("permission gate: failed to encode response", "error", encErr)
	}
}
