package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"stocknest/internal/domain/inventory/port"
)

// UserHandler 用户注册与资料接口。
type UserHandler struct {
	repo port.Repository
}

func NewUserHandler(repo port.Repository) *UserHandler {
	return &UserHandler{repo: repo}
}

// RegisterPublicRoutes 注册接口公开（部署自举用，不走 JWT）。
func (h *UserHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/users", h.CreateUser)
}

// RegisterRoutes 受保护的用户接口。
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.GetMe)
	r.Put("/me", h.UpdateMe)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user port.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if existing, err := h.repo.GetUserByEmail(r.Context(), user.Email); err == nil && existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	if err := h.repo.CreateUser(r.Context(), &user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetMe 返回认证用户本人资料（不受 X-Inventory-Owner 影响）。
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())
	user, err := h.repo.GetUser(r.Context(), scope.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var in port.User
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.repo.GetUser(r.Context(), scope.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	user.DisplayName = in.DisplayName
	user.AvatarURL = in.AvatarURL
	if err := h.repo.UpdateUser(r.Context(), user); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
