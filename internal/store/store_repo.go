package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	stateWatermark     = "watermark"
	stateMappingBuilt  = "mapping_built_at"
	auditLogMaxEntries = 100
)

// Store is the local state file: identity mapping, capped audit log, and
// watermark. One SQLite file under the data directory.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&EmployeeMapping{}, &SyncRun{}, &SyncState{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- identity mapping ---

func (s *Store) BadgeMappings(ctx context.Context) (map[string]int64, error) {
	return s.mappings(ctx, KindBadge)
}

func (s *Store) NameMappings(ctx context.Context) (map[string]int64, error) {
	return s.mappings(ctx, KindName)
}

func (s *Store) mappings(ctx context.Context, kind string) (map[string]int64, error) {
	var rows []EmployeeMapping
	if err := s.db.WithContext(ctx).Where("kind = ?", kind).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Ref] = row.LedgerKey
	}
	return out, nil
}

func (s *Store) SaveBadgeMapping(ctx context.Context, badge string, key int64) error {
	return s.saveMapping(ctx, KindBadge, badge, key)
}

func (s *Store) SaveNameMapping(ctx context.Context, name string, key int64) error {
	return s.saveMapping(ctx, KindName, name, key)
}

// saveMapping inserts the association unless one already exists for the same
// (kind, ref). Existing rows win; associations are only replaced by an
// explicit delete.
func (s *Store) saveMapping(ctx context.Context, kind, ref string, key int64) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "ref"}},
			DoNothing: true,
		}).
		Create(&EmployeeMapping{Kind: kind, Ref: ref, LedgerKey: key}).Error
}

func (s *Store) MappingBuiltAt(ctx context.Context) (time.Time, error) {
	return s.stateTime(ctx, stateMappingBuilt)
}

func (s *Store) SetMappingBuiltAt(ctx context.Context, builtAt time.Time) error {
	return s.setState(ctx, stateMappingBuilt, builtAt.UTC().Format(time.RFC3339))
}

// --- watermark ---

func (s *Store) Watermark(ctx context.Context) (time.Time, error) {
	return s.stateTime(ctx, stateWatermark)
}

func (s *Store) SetWatermark(ctx context.Context, at time.Time) error {
	return s.setState(ctx, stateWatermark, at.UTC().Format(time.RFC3339))
}

// stateTime returns the zero time when the key was never written.
func (s *Store) stateTime(ctx context.Context, key string) (time.Time, error) {
	var row SyncState
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, row.Value)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (s *Store) setState(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&SyncState{Key: key, Value: value, UpdatedAt: time.Now().UTC()}).Error
}

// --- audit log ---

// AppendRun writes one audit entry and evicts the oldest entries beyond the
// cap.
func (s *Store) AppendRun(ctx context.Context, run SyncRun) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		return tx.Exec(
			"DELETE FROM sync_runs WHERE id NOT IN (SELECT id FROM sync_runs ORDER BY ran_at DESC, id DESC LIMIT ?)",
			auditLogMaxEntries,
		).Error
	})
}

// RecentRuns returns audit entries, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 || limit > auditLogMaxEntries {
		limit = auditLogMaxEntries
	}
	var rows []SyncRun
	err := s.db.WithContext(ctx).
		Order("ran_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *Store) LatestRun(ctx context.Context) (*SyncRun, error) {
	var row SyncRun
	err := s.db.WithContext(ctx).Order("ran_at DESC, id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
