// Package collab 定义共享库存（协作目录）的数据模型。
// 目录快照在客户端边界做一次完整校验，后续使用不再重复检查。
package collab

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role 共享授权角色。
type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// GrantStatus 授权状态。只有 accepted 参与库存选择；
// pending/declined 属于邀请流程（本系统之外）。
type GrantStatus string

const (
	GrantPending  GrantStatus = "pending"
	GrantAccepted GrantStatus = "accepted"
	GrantDeclined GrantStatus = "declined"
)

// OwnerIdentity 库存拥有者身份快照（登录用户本人或共享方）。
type OwnerIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Validate 校验必填字段。
func (o OwnerIdentity) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("owner identity: id is required")
	}
	if strings.TrimSpace(o.Email) == "" {
		return fmt.Errorf("owner identity %s: email is required", o.ID)
	}
	return nil
}

// ShareGrant 一条授权关系，当前用户为接收方。
type ShareGrant struct {
	OwnerID    string        `json:"owner_id"`
	Role       Role          `json:"role"`
	Status     GrantStatus   `json:"status"`
	AcceptedAt *time.Time    `json:"accepted_at,omitempty"`
	Owner      OwnerIdentity `json:"owner"`
}

// Validate 校验授权记录字段与枚举值。
func (g ShareGrant) Validate() error {
	if strings.TrimSpace(g.OwnerID) == "" {
		return fmt.Errorf("share grant: owner_id is required")
	}
	switch g.Role {
	case RoleEditor, RoleViewer:
	default:
		return fmt.Errorf("share grant %s: invalid role %q", g.OwnerID, g.Role)
	}
	switch g.Status {
	case GrantPending, GrantAccepted, GrantDeclined:
	default:
		return fmt.Errorf("share grant %s: invalid status %q", g.OwnerID, g.Status)
	}
	if err := g.Owner.Validate(); err != nil {
		return fmt.Errorf("share grant %s: %w", g.OwnerID, err)
	}
	if g.Owner.ID != g.OwnerID {
		return fmt.Errorf("share grant %s: owner identity id mismatch (%s)", g.OwnerID, g.Owner.ID)
	}
	return nil
}

// Accepted 判断该授权是否参与库存选择。
func (g ShareGrant) Accepted() bool {
	return g.Status == GrantAccepted
}

// SelectedInventory 当前正在查看的库存。
// 不变式：IsOwn 为 true 时 Role 为空（本人自然拥有全部权限）；
// IsOwn 为 false 时 Role 必填，且等于对应 ShareGrant 记录的角色。
type SelectedInventory struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
	IsOwn     bool   `json:"is_own"`
	Role      Role   `json:"role,omitempty"`
}

// CanEdit 推导编辑权限：本人或 editor 角色。
func (s SelectedInventory) CanEdit() bool {
	return s.IsOwn || s.Role == RoleEditor
}

// OwnSelection 把本人身份转成选中态。
func OwnSelection(o OwnerIdentity) SelectedInventory {
	return SelectedInventory{
		ID:        o.ID,
		Name:      o.DisplayName,
		Email:     o.Email,
		AvatarURL: o.AvatarURL,
		IsOwn:     true,
	}
}

// GrantSelection 把共享授权转成选中态，携带授权记录上的角色。
func GrantSelection(g ShareGrant) SelectedInventory {
	return SelectedInventory{
		ID:        g.OwnerID,
		Name:      g.Owner.DisplayName,
		Email:     g.Owner.Email,
		AvatarURL: g.Owner.AvatarURL,
		IsOwn:     false,
		Role:      g.Role,
	}
}

// DirectoryContext 协作目录快照：本人身份 + 授权列表 + 待处理邀请（透传）。
type DirectoryContext struct {
	OwnInventory       OwnerIdentity     `json:"own_inventory"`
	ShareGrants        []ShareGrant      `json:"share_grants"`
	PendingInvitations []json.RawMessage `json:"pending_invitations,omitempty"`
}

// Validate 在目录客户端边界整体校验快照。
func (d *DirectoryContext) Validate() error {
	if d == nil {
		return fmt.Errorf("directory context is nil")
	}
	if err := d.OwnInventory.Validate(); err != nil {
		return fmt.Errorf("directory context: %w", err)
	}
	for _, g := range d.ShareGrants {
		if err := g.Validate(); err != nil {
			return fmt.Errorf("directory context: %w", err)
		}
	}
	return nil
}

// AcceptedGrants 过滤出 accepted 状态的授权。
func (d *DirectoryContext) AcceptedGrants() []ShareGrant {
	var out []ShareGrant
	for _, g := range d.ShareGrants {
		if g.Accepted() {
			out = append(out, g)
		}
	}
	return out
}
