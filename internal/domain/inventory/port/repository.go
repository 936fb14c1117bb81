package port

import "context"

// Repository 库存服务的持久化接口。
type Repository interface {
	EnsureTables(ctx context.Context) error

	// 用户
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error

	// 条目（全部按 OwnerID 过滤）
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, ownerID, id string) (*Item, error)
	ListItems(ctx context.Context, params ListItemsParams) (*ListItemsResult, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, ownerID, id string) error

	// 共享授权。授权的创建/接受走邀请流程（本服务之外），
	// 这里只读 + 初始写入。
	CreateGrant(ctx context.Context, grant *Grant) error
	GetAcceptedGrant(ctx context.Context, ownerID, recipientID string) (*Grant, error)
	ListGrantsForRecipient(ctx context.Context, recipientID string) ([]*Grant, error)
}
