// Package sqlitedb 本机 SQLite 持久化：invctl 的选择存储。
// 一行一个用户，记录上次选中的库存拥有者 id，跨进程重启存活。
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // 注册 sqlite3 驱动
)

// SelectionStore SQLite 实现，满足 session.SelectionStore。
type SelectionStore struct {
	db   *sql.DB
	path string
}

// OpenSelectionStore 打开（或创建）path 上的选择存储。
func OpenSelectionStore(path string) (*SelectionStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("selection store: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("selection store: open %s: %w", path, err)
	}

	s := &SelectionStore{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("selection store: schema: %w", err)
	}
	return s, nil
}

// Close 关闭底层数据库。
func (s *SelectionStore) Close() error {
	return s.db.Close()
}

func (s *SelectionStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS selected_inventory (
			user_id    TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`)
	return err
}

// Get 返回 userID 上次选中的拥有者 id；无记录返回空字符串。
func (s *SelectionStore) Get(ctx context.Context, userID string) (string, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM selected_inventory WHERE user_id = ?`, userID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("selection store: get: %w", err)
	}
	return ownerID, nil
}

// Set 记录 userID 的选择（upsert）。
func (s *SelectionStore) Set(ctx context.Context, userID, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selected_inventory (user_id, owner_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET owner_id = excluded.owner_id, updated_at = excluded.updated_at`,
		userID, ownerID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("selection store: set: %w", err)
	}
	return nil
}
