package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stocknest/internal/domain/collab"
	"stocknest/internal/domain/inventory/port"
	applog "stocknest/internal/platform/log"
)

// DirectoryCache 目录快照缓存接口（可选，Redis 实现见 internal/db/redis）。
type DirectoryCache interface {
	Get(ctx context.Context, userID string) (*collab.DirectoryContext, bool)
	Set(ctx context.Context, userID string, dir *collab.DirectoryContext)
}

// CollaborationHandler 协作目录接口。
// 目录永远描述认证用户本人：收到的授权 + 本人身份，
// 与 X-Inventory-Owner 选中的作用域无关。
type CollaborationHandler struct {
	repo  port.Repository
	cache DirectoryCache
}

func NewCollaborationHandler(repo port.Repository, cache DirectoryCache) *CollaborationHandler {
	return &CollaborationHandler{repo: repo, cache: cache}
}

func (h *CollaborationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/collaboration/context", h.GetContext)
}

// GetContext 返回目录快照：本人身份、收到的授权（含 declined，客户端自行过滤
// accepted）、待处理邀请（透传，邀请流程在别处）。幂等读。
func (h *CollaborationHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())
	userID := scope.UserID

	if h.cache != nil {
		if dir, ok := h.cache.Get(r.Context(), userID); ok {
			writeJSON(w, http.StatusOK, dir)
			return
		}
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	grants, err := h.repo.ListGrantsForRecipient(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list share grants")
		return
	}

	dir := &collab.DirectoryContext{
		OwnInventory: ownerIdentity(user),
		ShareGrants:  []collab.ShareGrant{},
	}

	for _, g := range grants {
		if g.Status == port.GrantStatusPending {
			if raw, err := json.Marshal(g); err == nil {
				dir.PendingInvitations = append(dir.PendingInvitations, raw)
			}
			continue
		}

		owner, err := h.repo.GetUser(r.Context(), g.OwnerID)
		if err != nil || owner == nil {
			applog.Warn("[Collab] Grant owner missing, skipping", "owner_id", g.OwnerID, "error", err)
			continue
		}

		dir.ShareGrants = append(dir.ShareGrants, collab.ShareGrant{
			OwnerID:    g.OwnerID,
			Role:       collab.Role(g.Role),
			Status:     collab.GrantStatus(g.Status),
			AcceptedAt: g.AcceptedAt,
			Owner:      ownerIdentity(owner),
		})
	}

	if h.cache != nil {
		h.cache.Set(r.Context(), userID, dir)
	}
	writeJSON(w, http.StatusOK, dir)
}

func ownerIdentity(u *port.User) collab.OwnerIdentity {
	return collab.OwnerIdentity{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
	}
}
