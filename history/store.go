// Package history persists improvement-cycle results to SQLite so a
// caller can inspect past rounds and roll back to any recorded prompt.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/promptcycle/promptcycle/cycle"
)

// CycleRow is one persisted cycle.
type CycleRow struct {
	ID                string `gorm:"primaryKey"`
	CreatedAt         time.Time
	TotalCost         float64
	TerminationReason string
	Rounds            []RoundRow `gorm:"foreignKey:CycleID;constraint:OnDelete:CASCADE"`
}

// RoundRow is one persisted round, including the prompt snapshot text so
// rollback needs nothing beyond this table.
type RoundRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	CycleID      string `gorm:"index"`
	Round        int
	Score        float64
	ScoreDelta   *float64
	AgentCost    float64
	JudgeCost    float64
	ImproverCost float64
	TotalCost    float64
	SnapshotID   string
	Prompt       string
	CreatedAt    time.Time
}

// TableName maps CycleRow to its table.
func (CycleRow) TableName() string { return "cycles" }

// TableName maps RoundRow to its table.
func (RoundRow) TableName() string { return "cycle_rounds" }

// Store persists cycles through GORM over SQLite.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the store at path and migrates its schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&CycleRow{}, &RoundRow{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "history_store")),
	}, nil
}

// SaveCycle persists a finished cycle and all its rounds.
func (s *Store) SaveCycle(ctx context.Context, res *cycle.Result) error {
	if res == nil || res.ID == "" {
		return fmt.Errorf("history: result with an ID is required")
	}

	row := CycleRow{
		ID:                res.ID,
		CreatedAt:         time.Now(),
		TotalCost:         res.TotalCost,
		TerminationReason: res.TerminationReason,
	}
	for _, rec := range res.Rounds {
		var score float64
		if rec.Report != nil {
			score = rec.Report.Score
		}
		row.Rounds = append(row.Rounds, RoundRow{
			Round:        rec.Round,
			Score:        score,
			ScoreDelta:   rec.ScoreDelta,
			AgentCost:    rec.Cost.Agent,
			JudgeCost:    rec.Cost.Judge,
			ImproverCost: rec.Cost.Improver,
			TotalCost:    rec.Cost.Total,
			SnapshotID:   rec.Snapshot.ID,
			Prompt:       rec.Snapshot.Prompt,
			CreatedAt:    rec.Snapshot.CreatedAt,
		})
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("history: save cycle %s: %w", res.ID, err)
	}
	s.logger.Debug("cycle saved",
		zap.String("cycle_id", res.ID),
		zap.Int("rounds", len(row.Rounds)),
	)
	return nil
}

// LoadCycle returns a persisted cycle with its rounds, oldest first.
func (s *Store) LoadCycle(ctx context.Context, id string) (*CycleRow, error) {
	var row CycleRow
	err := s.db.WithContext(ctx).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("round ASC") }).
		First(&row, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("history: load cycle %s: %w", id, err)
	}
	return &row, nil
}

// ListCycles returns up to limit cycles, newest first.
func (s *Store) ListCycles(ctx context.Context, limit int) ([]CycleRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []CycleRow
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("history: list cycles: %w", err)
	}
	return rows, nil
}

// DeleteCycle removes a cycle and its rounds.
func (s *Store) DeleteCycle(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx)
	if err := tx.Delete(&RoundRow{}, "cycle_id = ?", id).Error; err != nil {
		return fmt.Errorf("history: delete rounds of %s: %w", id, err)
	}
	if err := tx.Delete(&CycleRow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("history: delete cycle %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
