package identity

import (
	"context"
	"time"

	"github.com/Abk90/pointage-bot/internal/clock"
	"github.com/Abk90/pointage-bot/internal/ledger"
	"go.uber.org/zap"
)

// MappingStore persists the badge and name tables. Saving an association
// that already exists must keep the existing one (associations are never
// overwritten implicitly).
type MappingStore interface {
	BadgeMappings(ctx context.Context) (map[string]int64, error)
	NameMappings(ctx context.Context) (map[string]int64, error)
	SaveBadgeMapping(ctx context.Context, badge string, key int64) error
	SaveNameMapping(ctx context.Context, name string, key int64) error
	MappingBuiltAt(ctx context.Context) (time.Time, error)
	SetMappingBuiltAt(ctx context.Context, builtAt time.Time) error
}

// Roster provides the ledger's employee list, in the ledger's stable order.
type Roster interface {
	Employees(ctx context.Context) ([]ledger.Employee, error)
}

// ClockRoster provides the device-side employee list, used only to report
// entries the ledger does not know.
type ClockRoster interface {
	GetEmployees(ctx context.Context) ([]clock.Employee, error)
}

// Resolver maps a device employee reference (badge/PIN) or display name to a
// ledger employee key.
type Resolver struct {
	store     MappingStore
	roster    Roster
	clock     ClockRoster
	threshold float64
	maxAge    time.Duration

	badges map[string]int64
	names  map[string]int64
	cached []ledger.Employee // roster snapshot for fuzzy lookups

	now func() time.Time
	log *zap.Logger
}

func NewResolver(store MappingStore, roster Roster, clockRoster ClockRoster, threshold float64, maxAge time.Duration) *Resolver {
	return &Resolver{
		store:     store,
		roster:    roster,
		clock:     clockRoster,
		threshold: threshold,
		maxAge:    maxAge,
		badges:    map[string]int64{},
		names:     map[string]int64{},
		now:       time.Now,
		log:       zap.L().Named("identity"),
	}
}

// Prepare loads the persisted mapping, rebuilding it from the roster when it
// has never been built or is older than the staleness threshold.
func (r *Resolver) Prepare(ctx context.Context) error {
	builtAt, err := r.store.MappingBuiltAt(ctx)
	if err != nil {
		return err
	}
	if builtAt.IsZero() || r.now().Sub(builtAt) > r.maxAge {
		return r.Rebuild(ctx)
	}

	if r.badges, err = r.store.BadgeMappings(ctx); err != nil {
		return err
	}
	if r.names, err = r.store.NameMappings(ctx); err != nil {
		return err
	}
	r.log.Info("employee mapping loaded",
		zap.Int("badges", len(r.badges)),
		zap.Int("names", len(r.names)),
		zap.Time("built_at", builtAt))
	return nil
}

// Rebuild merges the current ledger roster into the mapping. Existing
// associations are kept; rebuild only ever adds.
func (r *Resolver) Rebuild(ctx context.Context) error {
	employees, err := r.roster.Employees(ctx)
	if err != nil {
		return err
	}
	r.cached = employees

	if r.badges, err = r.store.BadgeMappings(ctx); err != nil {
		return err
	}
	if r.names, err = r.store.NameMappings(ctx); err != nil {
		return err
	}

	for _, emp := range employees {
		if emp.Badge != "" {
			if err := r.saveBadge(ctx, emp.Badge, emp.ID); err != nil {
				return err
			}
		}
		if name := normalizeName(emp.Name); name != "" {
			if err := r.saveName(ctx, name, emp.ID); err != nil {
				return err
			}
		}
	}

	r.reportUnmatched(ctx)

	if err := r.store.SetMappingBuiltAt(ctx, r.now()); err != nil {
		return err
	}
	r.log.Info("employee mapping rebuilt",
		zap.Int("roster", len(employees)),
		zap.Int("badges", len(r.badges)),
		zap.Int("names", len(r.names)))
	return nil
}

// reportUnmatched logs device roster entries that match neither table. Purely
// informational; failures here never fail the rebuild.
func (r *Resolver) reportUnmatched(ctx context.Context) {
	if r.clock == nil {
		return
	}
	deviceEmployees, err := r.clock.GetEmployees(ctx)
	if err != nil {
		r.log.Warn("device roster unavailable for mapping report", zap.Error(err))
		return
	}

	var unmatched []string
	for _, emp := range deviceEmployees {
		if _, ok := r.badges[emp.Badge]; ok {
			continue
		}
		if _, ok := r.names[normalizeName(emp.Name)]; ok {
			continue
		}
		unmatched = append(unmatched, emp.Name+" (badge: "+emp.Badge+")")
	}
	if len(unmatched) > 0 {
		sample := unmatched
		if len(sample) > 5 {
			sample = sample[:5]
		}
		r.log.Warn("device employees not found in ledger",
			zap.Int("count", len(unmatched)),
			zap.Strings("sample", sample))
	}
}

func (r *Resolver) saveBadge(ctx context.Context, badge string, key int64) error {
	if _, exists := r.badges[badge]; exists {
		return nil
	}
	if err := r.store.SaveBadgeMapping(ctx, badge, key); err != nil {
		return err
	}
	r.badges[badge] = key
	return nil
}

func (r *Resolver) saveName(ctx context.Context, normalized string, key int64) error {
	if _, exists := r.names[normalized]; exists {
		return nil
	}
	if err := r.store.SaveNameMapping(ctx, normalized, key); err != nil {
		return err
	}
	r.names[normalized] = key
	return nil
}

// Resolve tries, in order: exact badge, exact normalized name, fuzzy match
// against the ledger roster. A successful fuzzy hit is cached into the name
// table so later punches resolve exactly.
func (r *Resolver) Resolve(ctx context.Context, deviceRef, displayName string) (int64, bool) {
	if key, ok := r.badges[deviceRef]; ok {
		return key, true
	}

	normalized := normalizeName(displayName)
	if key, ok := r.names[normalized]; ok {
		return key, true
	}
	if normalized == "" {
		return 0, false
	}

	key, ok := r.fuzzyMatch(ctx, normalized)
	if !ok {
		return 0, false
	}
	if err := r.saveName(ctx, normalized, key); err != nil {
		r.log.Warn("caching fuzzy match failed", zap.String("name", displayName), zap.Error(err))
	}
	return key, true
}

// fuzzyMatch picks the highest-scoring roster entry at or above the
// threshold. Ties keep the first entry in roster order.
func (r *Resolver) fuzzyMatch(ctx context.Context, normalized string) (int64, bool) {
	if r.cached == nil {
		employees, err := r.roster.Employees(ctx)
		if err != nil {
			r.log.Warn("roster fetch for fuzzy match failed", zap.Error(err))
			return 0, false
		}
		r.cached = employees
	}

	var (
		bestKey   int64
		bestScore float64
		found     bool
	)
	for _, emp := range r.cached {
		score := similarity(normalized, normalizeName(emp.Name))
		if score >= r.threshold && score > bestScore {
			bestScore = score
			bestKey = emp.ID
			found = true
		}
	}
	if found {
		r.log.Info("fuzzy matched employee",
			zap.String("name", normalized),
			zap.Int64("key", bestKey),
			zap.Float64("score", bestScore))
	}
	return bestKey, found
}
