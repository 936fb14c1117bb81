package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stocknest/internal/domain/inventory/port"
)

// ItemHandler 库存条目 API。所有操作取 Scope.OwnerID 作为数据归属，
// handler 本身不区分本人与共享——作用域解析已在中间件完成。
type ItemHandler struct {
	repo port.Repository
}

func NewItemHandler(repo port.Repository) *ItemHandler {
	return &ItemHandler{repo: repo}
}

func (h *ItemHandler) RegisterRoutes(r chi.Router) {
	r.Route("/items", func(r chi.Router) {
		r.Post("/", h.CreateItem)
		r.Get("/", h.ListItems)
		r.Get("/{id}", h.GetItem)
		r.Put("/{id}", h.UpdateItem)
		r.Delete("/{id}", h.DeleteItem)
	})
}

func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	var item port.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	item.OwnerID = scope.OwnerID

	if err := h.repo.CreateItem(r.Context(), &item); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())

	params := port.ListItemsParams{
		OwnerID: scope.OwnerID,
		Query:   r.URL.Query().Get("q"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		params.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		params.Offset, _ = strconv.Atoi(v)
	}

	result, err := h.repo.ListItems(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())
	id := chi.URLParam(r, "id")

	item, err := h.repo.GetItem(r.Context(), scope.OwnerID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())
	id := chi.URLParam(r, "id")

	var item port.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	item.ID = id
	item.OwnerID = scope.OwnerID

	if err := h.repo.UpdateItem(r.Context(), &item); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	scope := MustScopeFrom(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteItem(r.Context(), scope.OwnerID, id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
