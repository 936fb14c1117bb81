// Package session 维护"当前正在查看谁的库存"这一会话状态：
// 解析生效选择、推导权限、并保持 Injector 与选中态同步。
// 所有失败都退化为查看本人库存，不向调用方抛错。
package session

import (
	"context"
	"log/slog"
	"sync"

	"stocknest/internal/domain/collab"
)

// State 会话状态快照。SelectedInventory 仅在未完成首次解析
// 或已登出时为 nil。
type State struct {
	SelectedInventory *SelectedInventory
	SharedInventories []ShareGrant
	IsLoading         bool
}

// Manager 库存上下文管理器。单写者：只有它改写 Injector 与 SelectionStore。
type Manager struct {
	directory DirectoryClient
	store     SelectionStore
	injector  *Injector
	log       *slog.Logger

	mu    sync.Mutex
	gen   uint64 // 解析代号：同步选择与新一轮刷新都会递增，过期的目录结果按代号丢弃
	user  *OwnerIdentity
	state State
}

// NewManager 创建 Manager。logger 为 nil 时使用 slog 默认值。
func NewManager(directory DirectoryClient, store SelectionStore, injector *Injector, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		directory: directory,
		store:     store,
		injector:  injector,
		log:       logger,
	}
}

// SetUser 同步认证状态。传 nil 表示登出：立即清空作用域与选中态。
// 同一用户的身份字段变化（昵称/头像）且当前选中本人库存时，
// 就地修补选中态，不触发目录重解析。其余情况只更新用户，
// 由调用方随后执行 RefreshInventories。
func (m *Manager) SetUser(user *OwnerIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++

	if user == nil {
		m.user = nil
		m.state = State{}
		m.injector.Clear()
		return
	}

	u := *user
	sameUser := m.user != nil && m.user.ID == u.ID
	m.user = &u

	if sameUser && m.state.SelectedInventory != nil && m.state.SelectedInventory.IsOwn {
		sel := collab.OwnSelection(u)
		m.state.SelectedInventory = &sel
	}
}

// RefreshInventories 解析生效选择。
//
// 未登录：清空 Injector 与状态，作为登出会话的终态。
// 已登录：拉取协作目录；成功时按持久化的历史选择匹配 accepted 授权，
// 匹配且不是本人 id 时选中该共享库存，否则选中本人；失败时无条件回退本人，
// 共享列表清空——协作后端故障不能挡住用户看自己的数据。
// 两种结果都在同一临界区内同步 Injector。
func (m *Manager) RefreshInventories(ctx context.Context) {
	m.mu.Lock()
	m.gen++
	gen := m.gen

	if m.user == nil {
		m.state = State{}
		m.injector.Clear()
		m.mu.Unlock()
		return
	}
	userID := m.user.ID
	m.state.IsLoading = true
	m.mu.Unlock()

	// 唯一的挂起点：目录拉取。结果提交前按代号校验，
	// 防止慢请求覆盖更新的选择。
	dir, err := m.directory.GetContext(ctx, userID)
	if err == nil {
		err = dir.Validate()
	}

	var stored string
	if err == nil {
		var serr error
		stored, serr = m.store.Get(ctx, userID)
		if serr != nil {
			m.log.Warn("[Session] Selection store read failed, treating as no prior selection", "error", serr)
			stored = ""
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen || m.user == nil || m.user.ID != userID {
		// 过期解析：期间有新的刷新或选择发生，结果作废
		return
	}

	if err != nil {
		m.log.Warn("[Session] Collaboration directory unavailable, falling back to own inventory", "error", err)
		m.commitOwnLocked(nil)
		return
	}

	// 目录里的本人身份比登录时的快照新，顺带刷新
	own := dir.OwnInventory
	m.user = &own

	accepted := dir.AcceptedGrants()

	if stored != "" && stored != own.ID {
		for _, g := range accepted {
			if g.OwnerID == stored {
				sel := collab.GrantSelection(g)
				m.state = State{
					SelectedInventory: &sel,
					SharedInventories: accepted,
				}
				m.injector.Set(sel.ID)
				return
			}
		}
		// 历史选择已失效（授权被撤销等），按无选择处理
	}

	m.commitOwnLocked(accepted)
}

// SelectInventory 显式切换到某个库存。同步生效，无网络调用；
// choice 应来自上一次 RefreshInventories 拉到的目录。
// 本人选择也写入存储——存的是本人 id，下次解析时天然落回本人分支。
func (m *Manager) SelectInventory(ctx context.Context, choice SelectedInventory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++ // 同步选择胜过任何在途解析

	if m.user != nil {
		if err := m.store.Set(ctx, m.user.ID, choice.ID); err != nil {
			m.log.Warn("[Session] Selection store write failed", "owner_id", choice.ID, "error", err)
		}
	}

	sel := choice
	m.state.SelectedInventory = &sel
	m.state.IsLoading = false

	if choice.IsOwn {
		m.injector.Clear()
	} else {
		m.injector.Set(choice.ID)
	}
}

// SelectOwnInventory 切回本人库存。用户未知时不做任何事。
func (m *Manager) SelectOwnInventory(ctx context.Context) {
	m.mu.Lock()
	user := m.user
	m.mu.Unlock()

	if user == nil {
		return
	}
	m.SelectInventory(ctx, collab.OwnSelection(*user))
}

// Snapshot 返回状态副本。
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := State{IsLoading: m.state.IsLoading}
	if m.state.SelectedInventory != nil {
		sel := *m.state.SelectedInventory
		out.SelectedInventory = &sel
	}
	if len(m.state.SharedInventories) > 0 {
		out.SharedInventories = append([]ShareGrant(nil), m.state.SharedInventories...)
	}
	return out
}

// IsViewingSharedInventory 推导"是否在看共享库存"。
// 选中态为 nil 时按 true 处理：尚未确认选中本人前保守对待。
func (m *Manager) IsViewingSharedInventory() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SelectedInventory == nil || !m.state.SelectedInventory.IsOwn
}

// CanEdit 推导编辑权限。
func (m *Manager) CanEdit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.SelectedInventory == nil {
		return false
	}
	return m.state.SelectedInventory.CanEdit()
}

// Close 会话收尾：无条件清空 Injector，并作废在途解析。
// 防止已选过的共享作用域泄漏到之后其它组件发出的请求上。
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.injector.Clear()
}

// commitOwnLocked 以本人身份提交选中态并同步 Injector。须持有 m.mu。
func (m *Manager) commitOwnLocked(accepted []ShareGrant) {
	sel := collab.OwnSelection(*m.user)
	m.state = State{
		SelectedInventory: &sel,
		SharedInventories: accepted,
	}
	m.injector.Clear()
}
