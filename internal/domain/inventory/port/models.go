// Package port 定义库存服务的存储模型与仓储接口。
package port

import "time"

// User 注册用户，同时也是一个库存的拥有者。
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const UserStatusActive = "active"

// Item 库存条目。OwnerID 即数据归属，所有查询按它过滤。
type Item struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Location  string    `json:"location,omitempty"`
	Quantity  int       `json:"quantity"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Grant 共享授权：RecipientID 可以按 Role 访问 OwnerID 的库存。
type Grant struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	RecipientID string     `json:"recipient_id"`
	Role        string     `json:"role"`   // editor | viewer
	Status      string     `json:"status"` // pending | accepted | declined
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

const (
	GrantStatusPending  = "pending"
	GrantStatusAccepted = "accepted"
	GrantStatusDeclined = "declined"
)

// ListItemsParams 条目列表查询参数。
type ListItemsParams struct {
	OwnerID string
	Query   string
	Limit   int
	Offset  int
}

// ListItemsResult 条目列表结果。
type ListItemsResult struct {
	Items []*Item `json:"items"`
	Total int     `json:"total"`
}
