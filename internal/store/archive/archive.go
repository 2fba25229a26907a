// Package archive 把已完成的蜡烛按 symbol@interval 分文件存入 SQLite，供回测重放。
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tickbot/internal/market"
	"tickbot/internal/pkg/interval"
	"tickbot/internal/pkg/symbol"

	_ "modernc.org/sqlite"
)

// Manifest 记录某个 symbol@interval 文件的统计信息。
type Manifest struct {
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
	MinTime    int64  `json:"min_time"`
	MaxTime    int64  `json:"max_time"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("archive root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *Store) db(symbol string, iv time.Duration) (*sql.DB, string, error) {
	if strings.TrimSpace(symbol) == "" || iv <= 0 {
		return nil, "", fmt.Errorf("symbol/interval 不能为空")
	}
	tf := interval.Format(iv)
	key := strings.ToUpper(symbol) + "@" + tf
	path := s.dbPath(symbol, tf)
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok {
		return db, path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db, symbol, tf); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	s.dbs[key] = db
	return db, path, nil
}

func (s *Store) dbPath(sym, tf string) string {
	return filepath.Join(s.root, symbol.FileKey(sym), tf+".db")
}

// ArchiveCandle 写入单根蜡烛。
func (s *Store) ArchiveCandle(ctx context.Context, symbol string, iv time.Duration, c market.Candle) error {
	_, err := s.InsertCandles(ctx, symbol, iv, []market.Candle{c})
	return err
}

// InsertCandles 批量写入蜡烛，重复的 ts 会被覆盖。
func (s *Store) InsertCandles(ctx context.Context, symbol string, iv time.Duration, candles []market.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	db, _, err := s.db(symbol, iv)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (ts, open, high, low, close)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ts) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Timestamp, c.Open.String(), c.High.String(), c.Low.String(), c.Close.String()); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, refreshManifest(ctx, db)
}

// Load 返回 [from, to] 内的蜡烛（按 ts 升序），from/to 为 0 表示不限。
func (s *Store) Load(ctx context.Context, symbol string, iv time.Duration, from, to int64) ([]market.Candle, error) {
	db, _, err := s.db(symbol, iv)
	if err != nil {
		return nil, err
	}
	if to <= 0 {
		to = 1<<63 - 1
	}
	if to < from {
		from, to = to, from
	}
	rows, err := db.QueryContext(ctx, `
		SELECT ts, open, high, low, close
		FROM candles WHERE ts BETWEEN ? AND ?
		ORDER BY ts ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *Store) Manifest(ctx context.Context, symbol string, iv time.Duration) (Manifest, error) {
	db, path, err := s.db(symbol, iv)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT symbol,interval,min_time,max_time,rows,last_sync_at FROM manifest WHERE id=1`)
	var m Manifest
	if err := row.Scan(&m.Symbol, &m.Interval, &m.MinTime, &m.MaxTime, &m.Rows, &m.LastSyncAt); err != nil {
		return Manifest{}, err
	}
	m.Path = path
	return m, nil
}

func refreshManifest(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		UPDATE manifest
		SET min_time = (SELECT COALESCE(MIN(ts), 0) FROM candles),
		    max_time = (SELECT COALESCE(MAX(ts), 0) FROM candles),
		    rows = (SELECT COUNT(1) FROM candles),
		    last_sync_at = ?
		WHERE id = 1`, time.Now().UnixMilli())
	return err
}

func ensureSchema(db *sql.DB, symbol, tf string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			ts    INTEGER PRIMARY KEY,
			open  TEXT NOT NULL,
			high  TEXT NOT NULL,
			low   TEXT NOT NULL,
			close TEXT NOT NULL,
			inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			min_time INTEGER DEFAULT 0,
			max_time INTEGER DEFAULT 0,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER DEFAULT 0
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT INTO manifest (id, symbol, interval) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET symbol=excluded.symbol, interval=excluded.interval;`,
		strings.ToUpper(symbol), tf)
	return err
}
