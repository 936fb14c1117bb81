package session

import (
	"context"

	"stocknest/internal/domain/collab"
)

type OwnerIdentity = collab.OwnerIdentity
type ShareGrant = collab.ShareGrant
type SelectedInventory = collab.SelectedInventory
type DirectoryContext = collab.DirectoryContext

// SelectionStore 持久化"上次选中的库存拥有者"。
// 按登录用户 id 分键，避免同一设备上前后两个账号互相串用历史选择。
// 值的生命周期独立于会话：只被显式选择覆盖，登出不清除。
type SelectionStore interface {
	// Get 返回 userID 上次选中的拥有者 id；没有记录时返回空字符串。
	Get(ctx context.Context, userID string) (string, error)
	// Set 记录 userID 的选择。
	Set(ctx context.Context, userID, ownerID string) error
}

// DirectoryClient 协作目录读取接口（幂等）。
// 失败由 Manager 就地消化为"无共享数据"，不向上传播。
type DirectoryClient interface {
	GetContext(ctx context.Context, userID string) (*DirectoryContext, error)
}
