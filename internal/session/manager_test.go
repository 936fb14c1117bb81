package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"stocknest/internal/domain/collab"
)

type fakeDirectory struct {
	mu      sync.Mutex
	ctx     *DirectoryContext
	err     error
	release chan struct{} // non-nil: GetContext blocks until closed
	calls   int
}

func (f *fakeDirectory) GetContext(ctx context.Context, userID string) (*DirectoryContext, error) {
	f.mu.Lock()
	f.calls++
	release := f.release
	dir, err := f.ctx, f.err
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	// copy so callers cannot mutate the fake's snapshot
	cp := *dir
	return &cp, nil
}

type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Get(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.values[userID], nil
}

func (f *fakeStore) Set(ctx context.Context, userID, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.values[userID] = ownerID
	return nil
}

func ownUser() OwnerIdentity {
	return OwnerIdentity{ID: "u1", DisplayName: "User One", Email: "u1@example.com"}
}

func viewerGrant() ShareGrant {
	return ShareGrant{
		OwnerID: "o1",
		Role:    collab.RoleViewer,
		Status:  collab.GrantAccepted,
		Owner:   OwnerIdentity{ID: "o1", DisplayName: "Owner One", Email: "o1@example.com"},
	}
}

func editorGrant() ShareGrant {
	return ShareGrant{
		OwnerID: "o2",
		Role:    collab.RoleEditor,
		Status:  collab.GrantAccepted,
		Owner:   OwnerIdentity{ID: "o2", Email: "o2@example.com"},
	}
}

func newTestManager(dir *fakeDirectory, store *fakeStore) (*Manager, *Injector) {
	inj := NewInjector()
	m := NewManager(dir, store, inj, nil)
	u := ownUser()
	m.SetUser(&u)
	return m, inj
}

func requireScope(t *testing.T, inj *Injector, want string, wantSet bool) {
	t.Helper()
	got, ok := inj.Scope()
	if ok != wantSet || got != want {
		t.Fatalf("injector scope = (%q, %v), want (%q, %v)", got, ok, want, wantSet)
	}
}

func TestRefreshFallsBackToOwnOnDirectoryFailure(t *testing.T) {
	dir := &fakeDirectory{err: fmt.Errorf("directory unreachable")}
	store := newFakeStore()
	store.values["u1"] = "o1" // even with a stored choice, failure must yield own
	m, inj := newTestManager(dir, store)

	m.RefreshInventories(context.Background())

	state := m.Snapshot()
	if state.IsLoading {
		t.Fatal("expected IsLoading=false after refresh")
	}
	if state.SelectedInventory == nil || !state.SelectedInventory.IsOwn {
		t.Fatalf("expected own selection after directory failure, got %+v", state.SelectedInventory)
	}
	if len(state.SharedInventories) != 0 {
		t.Fatalf("expected empty shared inventories, got %d", len(state.SharedInventories))
	}
	requireScope(t, inj, "", false)
}

func TestRefreshResolvesStoredSharedSelection(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{viewerGrant(), editorGrant()},
	}}
	store := newFakeStore()
	store.values["u1"] = "o1"
	m, inj := newTestManager(dir, store)

	m.RefreshInventories(context.Background())

	state := m.Snapshot()
	sel := state.SelectedInventory
	if sel == nil || sel.ID != "o1" || sel.IsOwn || sel.Role != collab.RoleViewer {
		t.Fatalf("expected shared selection o1/viewer, got %+v", sel)
	}
	if len(state.SharedInventories) != 2 {
		t.Fatalf("expected 2 accepted grants, got %d", len(state.SharedInventories))
	}
	if !m.IsViewingSharedInventory() {
		t.Fatal("expected IsViewingSharedInventory=true")
	}
	if m.CanEdit() {
		t.Fatal("viewer role must not be able to edit")
	}
	requireScope(t, inj, "o1", true)
}

func TestRefreshIgnoresNonAcceptedGrants(t *testing.T) {
	pending := viewerGrant()
	pending.Status = collab.GrantPending
	declined := editorGrant()
	declined.Status = collab.GrantDeclined

	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{pending, declined},
	}}
	store := newFakeStore()
	store.values["u1"] = "o1" // matches only the pending grant
	m, inj := newTestManager(dir, store)

	m.RefreshInventories(context.Background())

	state := m.Snapshot()
	if state.SelectedInventory == nil || !state.SelectedInventory.IsOwn {
		t.Fatalf("expected own selection, got %+v", state.SelectedInventory)
	}
	if len(state.SharedInventories) != 0 {
		t.Fatalf("expected no accepted grants, got %d", len(state.SharedInventories))
	}
	requireScope(t, inj, "", false)
}

func TestRefreshNormalizesStaleStoredSelection(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{editorGrant()},
	}}
	store := newFakeStore()
	store.values["u1"] = "gone" // no matching grant
	m, inj := newTestManager(dir, store)

	m.RefreshInventories(context.Background())

	state := m.Snapshot()
	if state.SelectedInventory == nil || !state.SelectedInventory.IsOwn {
		t.Fatalf("expected own selection for stale stored id, got %+v", state.SelectedInventory)
	}
	requireScope(t, inj, "", false)
}

func TestRefreshStoredOwnIDSelectsOwn(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{viewerGrant()},
	}}
	store := newFakeStore()
	store.values["u1"] = "u1"
	m, inj := newTestManager(dir, store)

	m.RefreshInventories(context.Background())

	state := m.Snapshot()
	if state.SelectedInventory == nil || !state.SelectedInventory.IsOwn {
		t.Fatalf("expected own selection, got %+v", state.SelectedInventory)
	}
	if state.SelectedInventory.Role != "" {
		t.Fatalf("own selection must carry no role, got %q", state.SelectedInventory.Role)
	}
	requireScope(t, inj, "", false)
}

func TestRefreshSignedOutClearsEverything(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{OwnInventory: ownUser()}}
	store := newFakeStore()
	m, inj := newTestManager(dir, store)

	m.RefreshInventories(context.Background())
	m.SetUser(nil)
	m.RefreshInventories(context.Background())

	state := m.Snapshot()
	if state.SelectedInventory != nil {
		t.Fatalf("expected nil selection when signed out, got %+v", state.SelectedInventory)
	}
	if state.IsLoading {
		t.Fatal("expected IsLoading=false")
	}
	requireScope(t, inj, "", false)
	if !m.IsViewingSharedInventory() {
		t.Fatal("nil selection is conservatively treated as not-confirmed-own")
	}
	if m.CanEdit() {
		t.Fatal("signed-out session must not be editable")
	}
}

func TestSelectInventoryPersistsAndScopes(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{editorGrant()},
	}}
	store := newFakeStore()
	m, inj := newTestManager(dir, store)
	m.RefreshInventories(context.Background())

	m.SelectInventory(context.Background(), collab.GrantSelection(editorGrant()))

	state := m.Snapshot()
	sel := state.SelectedInventory
	if sel == nil || sel.ID != "o2" || sel.IsOwn || sel.Role != collab.RoleEditor {
		t.Fatalf("expected shared selection o2/editor, got %+v", sel)
	}
	if !m.CanEdit() {
		t.Fatal("editor role must be able to edit")
	}
	if store.values["u1"] != "o2" {
		t.Fatalf("expected stored selection o2, got %q", store.values["u1"])
	}
	requireScope(t, inj, "o2", true)

	// a fresh resolution cycle with the same grants restores the choice
	m.RefreshInventories(context.Background())
	state = m.Snapshot()
	if state.SelectedInventory == nil || state.SelectedInventory.ID != "o2" || state.SelectedInventory.Role != collab.RoleEditor {
		t.Fatalf("expected o2/editor after re-resolution, got %+v", state.SelectedInventory)
	}
}

func TestSelectOwnInventoryAlwaysResolvesOwn(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{viewerGrant()},
	}}
	store := newFakeStore()
	store.values["u1"] = "o1"
	m, inj := newTestManager(dir, store)
	m.RefreshInventories(context.Background())

	m.SelectOwnInventory(context.Background())

	state := m.Snapshot()
	sel := state.SelectedInventory
	if sel == nil || sel.ID != "u1" || !sel.IsOwn || sel.Role != "" {
		t.Fatalf("expected own selection u1, got %+v", sel)
	}
	if !m.CanEdit() {
		t.Fatal("own inventory must be editable")
	}
	if m.IsViewingSharedInventory() {
		t.Fatal("expected IsViewingSharedInventory=false")
	}
	if store.values["u1"] != "u1" {
		t.Fatalf("expected own id persisted, got %q", store.values["u1"])
	}
	requireScope(t, inj, "", false)
}

func TestSelectOwnInventoryNoOpWhenUserUnknown(t *testing.T) {
	dir := &fakeDirectory{}
	store := newFakeStore()
	inj := NewInjector()
	m := NewManager(dir, store, inj, nil)

	m.SelectOwnInventory(context.Background())

	if m.Snapshot().SelectedInventory != nil {
		t.Fatal("expected no selection without a known user")
	}
	if len(store.values) != 0 {
		t.Fatal("expected no store write without a known user")
	}
}

func TestStaleRefreshDoesNotOverwriteNewerSelection(t *testing.T) {
	release := make(chan struct{})
	dir := &fakeDirectory{
		ctx: &DirectoryContext{
			OwnInventory: ownUser(),
			ShareGrants:  []ShareGrant{viewerGrant()},
		},
		release: release,
	}
	store := newFakeStore()
	store.values["u1"] = "o1"
	m, inj := newTestManager(dir, store)

	done := make(chan struct{})
	go func() {
		m.RefreshInventories(context.Background())
		close(done)
	}()

	// while the directory fetch is in flight, the user explicitly picks own
	m.SelectOwnInventory(context.Background())
	close(release)
	<-done

	state := m.Snapshot()
	if state.SelectedInventory == nil || !state.SelectedInventory.IsOwn {
		t.Fatalf("stale fetch overwrote a newer selection: %+v", state.SelectedInventory)
	}
	requireScope(t, inj, "", false)
}

func TestStaleRefreshDoesNotResurrectClosedSession(t *testing.T) {
	release := make(chan struct{})
	dir := &fakeDirectory{
		ctx:     &DirectoryContext{OwnInventory: ownUser()},
		release: release,
	}
	store := newFakeStore()
	m, inj := newTestManager(dir, store)

	done := make(chan struct{})
	go func() {
		m.RefreshInventories(context.Background())
		close(done)
	}()

	m.SetUser(nil)
	close(release)
	<-done

	if m.Snapshot().SelectedInventory != nil {
		t.Fatal("stale fetch resurrected a signed-out session")
	}
	requireScope(t, inj, "", false)
}

func TestSetUserPatchesOwnSelectionInPlace(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{OwnInventory: ownUser()}}
	store := newFakeStore()
	m, _ := newTestManager(dir, store)
	m.RefreshInventories(context.Background())
	calls := dir.calls

	updated := ownUser()
	updated.DisplayName = "Renamed"
	updated.AvatarURL = "https://cdn.example.com/u1.png"
	m.SetUser(&updated)

	state := m.Snapshot()
	sel := state.SelectedInventory
	if sel == nil || sel.Name != "Renamed" || sel.AvatarURL != updated.AvatarURL {
		t.Fatalf("expected profile fields patched in place, got %+v", sel)
	}
	if !sel.IsOwn {
		t.Fatal("patched selection must stay own")
	}
	if dir.calls != calls {
		t.Fatalf("profile patch must not re-resolve from the directory, calls %d -> %d", calls, dir.calls)
	}
}

func TestSetUserDoesNotPatchSharedSelection(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{viewerGrant()},
	}}
	store := newFakeStore()
	store.values["u1"] = "o1"
	m, inj := newTestManager(dir, store)
	m.RefreshInventories(context.Background())

	updated := ownUser()
	updated.DisplayName = "Renamed"
	m.SetUser(&updated)

	sel := m.Snapshot().SelectedInventory
	if sel == nil || sel.ID != "o1" || sel.IsOwn {
		t.Fatalf("shared selection must be left alone, got %+v", sel)
	}
	requireScope(t, inj, "o1", true)
}

func TestCloseClearsInjector(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{viewerGrant()},
	}}
	store := newFakeStore()
	store.values["u1"] = "o1"
	m, inj := newTestManager(dir, store)
	m.RefreshInventories(context.Background())
	requireScope(t, inj, "o1", true)

	m.Close()

	requireScope(t, inj, "", false)
}

func TestStoreReadFailureTreatedAsNoSelection(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{viewerGrant()},
	}}
	store := newFakeStore()
	store.values["u1"] = "o1"
	store.getErr = fmt.Errorf("disk is sad")
	m, inj := newTestManager(dir, store)

	m.RefreshInventories(context.Background())

	state := m.Snapshot()
	if state.SelectedInventory == nil || !state.SelectedInventory.IsOwn {
		t.Fatalf("expected own selection when store read fails, got %+v", state.SelectedInventory)
	}
	requireScope(t, inj, "", false)
}

func TestSelectionsAreScopedPerUser(t *testing.T) {
	grant := viewerGrant()
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{grant},
	}}
	store := newFakeStore()
	m, _ := newTestManager(dir, store)
	m.RefreshInventories(context.Background())
	m.SelectInventory(context.Background(), collab.GrantSelection(grant))

	// a different account on the same device, who happens to have the same grant
	other := OwnerIdentity{ID: "u2", Email: "u2@example.com"}
	dir.mu.Lock()
	dir.ctx = &DirectoryContext{OwnInventory: other, ShareGrants: []ShareGrant{grant}}
	dir.mu.Unlock()
	m.SetUser(&other)
	m.RefreshInventories(context.Background())

	state := m.Snapshot()
	if state.SelectedInventory == nil || !state.SelectedInventory.IsOwn {
		t.Fatalf("user u2 must not inherit u1's persisted selection, got %+v", state.SelectedInventory)
	}
}

// Injector scope must be non-empty iff the committed selection is shared,
// across every operation that can change either side.
func TestInjectorStateCoupling(t *testing.T) {
	dir := &fakeDirectory{ctx: &DirectoryContext{
		OwnInventory: ownUser(),
		ShareGrants:  []ShareGrant{viewerGrant(), editorGrant()},
	}}
	store := newFakeStore()
	m, inj := newTestManager(dir, store)

	check := func(step string) {
		t.Helper()
		sel := m.Snapshot().SelectedInventory
		_, scoped := inj.Scope()
		wantScoped := sel != nil && !sel.IsOwn
		if scoped != wantScoped {
			t.Fatalf("%s: injector scoped=%v but selection=%+v", step, scoped, sel)
		}
	}

	check("initial")
	m.RefreshInventories(context.Background())
	check("after refresh")
	m.SelectInventory(context.Background(), collab.GrantSelection(viewerGrant()))
	check("after select shared")
	m.SelectOwnInventory(context.Background())
	check("after select own")
	m.SelectInventory(context.Background(), collab.GrantSelection(editorGrant()))
	check("after select editor")
	m.RefreshInventories(context.Background())
	check("after re-refresh")
	m.SetUser(nil)
	check("after sign-out")
}
