// Package journal 用 gorm + SQLite 记录每笔持仓的开仓、止损移动与平仓。
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tickbot/internal/deal"
)

var ErrNotFound = errors.New("journal: deal not found")

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&DealModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var upsertColumns = []string{
	"unit", "symbol", "strategy", "side", "amount", "entry_price", "stop_loss", "take_profit",
	"status", "exit_price", "profit", "close_reason", "opened_at", "closed_at", "updated_at",
}

func (s *Store) upsert(ctx context.Context, unit string, d *deal.Deal) error {
	m := toModel(unit, d)
	m.UpdatedAt = s.now().UnixMilli()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "deal_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(&m).Error
}

func (s *Store) RecordOpen(ctx context.Context, unit string, d *deal.Deal) error {
	return s.upsert(ctx, unit, d)
}

func (s *Store) RecordClose(ctx context.Context, unit string, d *deal.Deal) error {
	return s.upsert(ctx, unit, d)
}

// RecordStopMove 追加一条止损移动记录并更新当前止损价。
func (s *Store) RecordStopMove(ctx context.Context, unit string, d *deal.Deal, level decimal.Decimal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m DealModel
		err := tx.Where("deal_id = ?", d.ID).Take(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m = toModel(unit, d)
		} else if err != nil {
			return err
		}
		var moves []StopMove
		if len(m.StopMoves) > 0 {
			if err := json.Unmarshal(m.StopMoves, &moves); err != nil {
				return fmt.Errorf("journal: decode stop moves: %w", err)
			}
		}
		now := s.now().UnixMilli()
		moves = append(moves, StopMove{Level: level, At: now})
		raw, err := json.Marshal(moves)
		if err != nil {
			return err
		}
		m.StopMoves = datatypes.JSON(raw)
		m.StopLoss = d.StopLoss
		m.UpdatedAt = now
		return tx.Save(&m).Error
	})
}

// Get 按 deal ID 查询。
func (s *Store) Get(ctx context.Context, dealID string) (Record, error) {
	var m DealModel
	err := s.db.WithContext(ctx).Where("deal_id = ?", dealID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return fromModel(m)
}

// Recent 返回最近开仓的记录，unit 为空时不过滤。
func (s *Store) Recent(ctx context.Context, unit string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&DealModel{})
	if unit = strings.TrimSpace(unit); unit != "" {
		q = q.Where("unit = ?", unit)
	}
	var models []DealModel
	if err := q.Order("opened_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(models))
	for _, m := range models {
		rec, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
