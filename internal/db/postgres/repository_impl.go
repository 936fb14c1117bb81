package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stocknest/internal/domain/inventory/port"
)

type User = port.User
type Item = port.Item
type Grant = port.Grant
type ListItemsParams = port.ListItemsParams
type ListItemsResult = port.ListItemsResult

// Repository PostgreSQL 存储实现。
type Repository struct {
	db *sql.DB
}

// NewRepository 创建 PostgreSQL 存储。
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureTables 确保业务表存在（users / items / share_grants）。
func (r *Repository) EnsureTables(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email        VARCHAR(255) NOT NULL UNIQUE,
		display_name VARCHAR(255) DEFAULT '',
		avatar_url   TEXT DEFAULT '',
		status       VARCHAR(32) NOT NULL DEFAULT 'active',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS items (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       VARCHAR(255) NOT NULL,
		category   VARCHAR(128) DEFAULT '',
		location   VARCHAR(128) DEFAULT '',
		quantity   INTEGER NOT NULL DEFAULT 0,
		notes      TEXT DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_items_owner_updated ON items(owner_id, updated_at DESC);

	CREATE TABLE IF NOT EXISTS share_grants (
		id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		recipient_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role         VARCHAR(32) NOT NULL,
		status       VARCHAR(32) NOT NULL DEFAULT 'pending',
		accepted_at  TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (owner_id, recipient_id)
	);
	CREATE INDEX IF NOT EXISTS idx_grants_recipient ON share_grants(recipient_id, status);
	`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// --- 用户 ---

func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Status == "" {
		user.Status = port.UserStatusActive
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, avatar_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.DisplayName, user.AvatarURL, user.Status, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	return r.getUserWhere(ctx, "id = $1", id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUserWhere(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *Repository) getUserWhere(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, avatar_url, status, created_at, updated_at
		FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET display_name = $2, avatar_url = $3, status = $4, updated_at = $5
		WHERE id = $1`,
		user.ID, user.DisplayName, user.AvatarURL, user.Status, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update user: %s not found", user.ID)
	}
	return nil
}

// --- 条目 ---

func (r *Repository) CreateItem(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, owner_id, name, category, location, quantity, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.OwnerID, item.Name, item.Category, item.Location, item.Quantity, item.Notes,
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *Repository) GetItem(ctx context.Context, ownerID, id string) (*Item, error) {
	var it Item
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, category, location, quantity, notes, created_at, updated_at
		FROM items WHERE owner_id = $1 AND id = $2`, ownerID, id).
		Scan(&it.ID, &it.OwnerID, &it.Name, &it.Category, &it.Location, &it.Quantity, &it.Notes,
			&it.CreatedAt, &it.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

func (r *Repository) ListItems(ctx context.Context, params ListItemsParams) (*ListItemsResult, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	where := "owner_id = $1"
	args := []any{params.OwnerID}
	if q := strings.TrimSpace(params.Query); q != "" {
		where += " AND name ILIKE $2"
		args = append(args, "%"+q+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, owner_id, name, category, location, quantity, notes, created_at, updated_at
		FROM items WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	result := &ListItemsResult{Items: []*Item{}, Total: total}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OwnerID, &it.Name, &it.Category, &it.Location, &it.Quantity,
			&it.Notes, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		result.Items = append(result.Items, &it)
	}
	return result, rows.Err()
}

func (r *Repository) UpdateItem(ctx context.Context, item *Item) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE items SET name = $3, category = $4, location = $5, quantity = $6, notes = $7, updated_at = $8
		WHERE owner_id = $1 AND id = $2`,
		item.OwnerID, item.ID, item.Name, item.Category, item.Location, item.Quantity, item.Notes, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update item: %s not found for owner %s", item.ID, item.OwnerID)
	}
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, ownerID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE owner_id = $1 AND id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// --- 共享授权 ---

func (r *Repository) CreateGrant(ctx context.Context, grant *Grant) error {
	if grant.ID == "" {
		grant.ID = uuid.New().String()
	}
	if grant.Status == "" {
		grant.Status = port.GrantStatusPending
	}
	now := time.Now().UTC()
	grant.CreatedAt = now
	grant.UpdatedAt = now
	if grant.Status == port.GrantStatusAccepted && grant.AcceptedAt == nil {
		grant.AcceptedAt = &now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO share_grants (id, owner_id, recipient_id, role, status, accepted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		grant.ID, grant.OwnerID, grant.RecipientID, grant.Role, grant.Status, grant.AcceptedAt,
		grant.CreatedAt, grant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

// GetAcceptedGrant 查询 recipient 对 owner 的 accepted 授权；无则返回 nil。
func (r *Repository) GetAcceptedGrant(ctx context.Context, ownerID, recipientID string) (*Grant, error) {
	var g Grant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, recipient_id, role, status, accepted_at, created_at, updated_at
		FROM share_grants
		WHERE owner_id = $1 AND recipient_id = $2 AND status = $3`,
		ownerID, recipientID, port.GrantStatusAccepted).
		Scan(&g.ID, &g.OwnerID, &g.RecipientID, &g.Role, &g.Status, &g.AcceptedAt, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get accepted grant: %w", err)
	}
	return &g, nil
}

// ListGrantsForRecipient 返回 recipient 收到的全部授权（含 pending/declined，
// 目录接口负责筛选）。
func (r *Repository) ListGrantsForRecipient(ctx context.Context, recipientID string) ([]*Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, recipient_id, role, status, accepted_at, created_at, updated_at
		FROM share_grants
		WHERE recipient_id = $1
		ORDER BY created_at`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []*Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.RecipientID, &g.Role, &g.Status, &g.AcceptedAt,
			&g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}
