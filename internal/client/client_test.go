package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stocknest/internal/domain/collab"
	"stocknest/internal/session"
)

func TestClientSendsBearerAndScopeHeaders(t *testing.T) {
	var gotAuth, gotOwner string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOwner = r.Header.Get(session.ScopeHeader)
		json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "ok"})
	}))
	defer srv.Close()

	inj := session.NewInjector()
	c := New(Config{BaseURL: srv.URL, Token: "tok123"}, inj)

	if _, err := c.ListItems(context.Background(), ""); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("authorization header %q", gotAuth)
	}
	if gotOwner != "" {
		t.Fatalf("unexpected scope header %q", gotOwner)
	}

	inj.Set("o1")
	if _, err := c.ListItems(context.Background(), ""); err != nil {
		t.Fatalf("scoped list: %v", err)
	}
	if gotOwner != "o1" {
		t.Fatalf("scope header %q, want o1", gotOwner)
	}
}

func TestClientDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code":    200,
			"message": "ok",
			"data": map[string]any{
				"own_inventory": map[string]any{"id": "u1", "email": "u1@example.com"},
				"share_grants": []map[string]any{{
					"owner_id": "o1",
					"role":     "viewer",
					"status":   "accepted",
					"owner":    map[string]any{"id": "o1", "email": "o1@example.com"},
				}},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, session.NewInjector())
	dir, err := c.GetContext(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get context: %v", err)
	}
	if dir.OwnInventory.ID != "u1" || len(dir.ShareGrants) != 1 || dir.ShareGrants[0].Role != collab.RoleViewer {
		t.Fatalf("unexpected directory %+v", dir)
	}
}

func TestClientRejectsInvalidDirectoryPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// own identity missing email: must fail boundary validation
		json.NewEncoder(w).Encode(map[string]any{
			"code":    200,
			"message": "ok",
			"data":    map[string]any{"own_inventory": map[string]any{"id": "u1"}},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, session.NewInjector())
	if _, err := c.GetContext(context.Background(), "u1"); err == nil {
		t.Fatal("expected validation error for invalid directory payload")
	}
}

func TestClientErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{"code": 403, "message": "no accepted grant"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, session.NewInjector())
	_, err := c.ListItems(context.Background(), "")
	if err == nil {
		t.Fatal("expected error on 403")
	}
	if got := err.Error(); !strings.Contains(got, "403") || !strings.Contains(got, "no accepted grant") {
		t.Fatalf("error missing status/message: %v", got)
	}
}
