package permission

import (
	"context"
	"log/slog"
	"sort"

	"github.com/opsdesk/storeops/internal"
)

// GrantReader is the read-only slice of the assignment store the evaluator
// depends on. The hot path is a single grants query; the role-state marker
// is only consulted when the grant set comes back empty.
type GrantReader interface {
	ListGrants(ctx context.Context, role string) ([]string, error)
	RoleInitialized(ctx context.Context, role string) (bool, error)
}

type Combinator string

const (
	CombinatorAny Combinator = "any"
	CombinatorAll Combinator = "all"
)

// Evaluator is the single decision engine behind both server-side
// enforcement and UI gating; both surfaces read the same snapshot so they
// cannot diverge.
type Evaluator struct {
	registry *Registry
	repo     GrantReader
	cache    *SnapshotCache
	logger   *slog.Logger
}

func NewEvaluator(registry *Registry, repo GrantReader, cache *SnapshotCache, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		registry: registry,
		repo:     repo,
		cache:    cache,
		logger:   logger,
	}
}

// HasPermission reports whether role holds code. Codes absent from the
// registry deny and return a configuration error so a stale or misspelled
// check site is visible to operators instead of reading as a plain denial.
func (e *Evaluator) HasPermission(ctx context.Context, role, code string) (bool, error) {
	if _, ok := e.registry.Resolve(code); !ok {
		e.logger.ErrorContext(ctx, "permission check uses unregistered code", "role", role, "code", code)
		return false, internal.NewUnknownPermissionError(code)
	}

	snap, err := e.snapshotFor(ctx, role)
	if err != nil {
		return false, err
	}
	return snap.has(code), nil
}

// HasAny reports whether role holds at least one of codes.
func (e *Evaluator) HasAny(ctx context.Context, role string, codes []string) (bool, error) {
	snap, err := e.checkedSnapshot(ctx, role, codes)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if snap.has(code) {
			return true, nil
		}
	}
	return false, nil
}

// HasAll reports whether role holds every one of codes.
func (e *Evaluator) HasAll(ctx context.Context, role string, codes []string) (bool, error) {
	snap, err := e.checkedSnapshot(ctx, role, codes)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		if !snap.has(code) {
			return false, nil
		}
	}
	return true, nil
}

// PermissionsFor returns the role's full effective permission set, sorted.
// This is the payload the presentation layer renders from.
func (e *Evaluator) PermissionsFor(ctx context.Context, role string) ([]string, error) {
	snap, err := e.snapshotFor(ctx, role)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(snap.codes))
	copy(out, snap.codes)
	return out, nil
}

// Check is the allow/deny surface domain handlers call before mutating.
// Returns nil on allow, an AuthorizationDenied error carrying the missing
// codes on deny, and a configuration error for unregistered codes.
func (e *Evaluator) Check(ctx context.Context, actor internal.Actor, codes []string, comb Combinator) error {
	snap, err := e.checkedSnapshot(ctx, actor.Role, codes)
	if err != nil {
		return err
	}

	var missing []string
	for _, code := range codes {
		if !snap.has(code) {
			missing = append(missing, code)
		}
	}

	allowed := len(missing) == 0
	if comb == CombinatorAny {
		allowed = len(missing) < len(codes)
	}
	if allowed {
		return nil
	}

	e.logger.WarnContext(ctx, "authorization denied",
		"actor_id", actor.ID,
		"role", actor.Role,
		"required", codes,
		"combinator", string(comb),
		"missing", missing)
	return internal.NewAuthorizationDenied(missing...)
}

func (e *Evaluator) checkedSnapshot(ctx context.Context, role string, codes []string) (*snapshot, error) {
	for _, code := range codes {
		if _, ok := e.registry.Resolve(code); !ok {
			e.logger.ErrorContext(ctx, "permission check uses unregistered code", "role", role, "code", code)
			return nil, internal.NewUnknownPermissionError(code)
		}
	}
	return e.snapshotFor(ctx, role)
}

// snapshotFor loads (or builds) the role's snapshot. The default template is
// consulted only when the role has no explicit rows and no initialization
// marker: a freshly deployed environment stays functional before seeding,
// while a deliberately emptied role stays empty.
func (e *Evaluator) snapshotFor(ctx context.Context, role string) (*snapshot, error) {
	snap, version, ok := e.cache.get(role)
	if ok {
		return snap, nil
	}

	grants, err := e.repo.ListGrants(ctx, role)
	if err != nil {
		return nil, internal.NewInternalError("failed to load grants for role "+role, err)
	}

	if len(grants) == 0 {
		initialized, err := e.repo.RoleInitialized(ctx, role)
		if err != nil {
			return nil, internal.NewInternalError("failed to load role state for "+role, err)
		}
		if !initialized {
			grants = e.registry.DefaultGrantsFor(role)
		}
	}

	sort.Strings(grants)
	snap = newSnapshot(grants)
	// Discarded if an invalidation landed after the cache miss; the grants
	// read above may predate that change.
	e.cache.put(role, snap, version)
	return snap, nil
}
