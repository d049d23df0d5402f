package sessions_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"routekeeper/internal/backup"
	"routekeeper/internal/kvstore"
	"routekeeper/internal/logging"
	"routekeeper/internal/sessions"
	"routekeeper/internal/testsupport"
	"routekeeper/internal/timeline"
)

func newRepo(t *testing.T) (*sessions.Repository, *kvstore.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clock := func() time.Time { return time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC) }
	return sessions.NewRepository(store, logging.NewNop(), sessions.WithClock(clock)), store
}

func TestSaveRequiresName(t *testing.T) {
	repo, _ := newRepo(t)
	for _, name := range []string{"", "   "} {
		if _, _, err := repo.Save(context.Background(), testsupport.EastwardRoute(2), name); !errors.Is(err, sessions.ErrNameRequired) {
			t.Fatalf("name %q: expected ErrNameRequired, got %v", name, err)
		}
	}
	list, err := repo.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("expected nothing saved, got %d err=%v", len(list), err)
	}
}

func TestSaveListLoad(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)

	tl := testsupport.EastwardRoute(3)
	tl.ElapsedMs = 3_725_000
	idx, saved, err := repo.Save(ctx, tl, "  Morning walk ")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if idx != 0 || saved.Name != "Morning walk" || saved.ID == "" {
		t.Fatalf("unexpected saved session: idx=%d %+v", idx, saved)
	}
	if saved.Elapsed != "01:02:05" || saved.TotalDistanceKm != "0.22" {
		t.Fatalf("unexpected summary fields: %+v", saved)
	}
	if saved.SavedAt != "2025-06-01T08:30:00Z" {
		t.Fatalf("unexpected savedAt: %s", saved.SavedAt)
	}

	idx, second, err := repo.Save(ctx, testsupport.EastwardRoute(1), "Evening")
	if err != nil || idx != 1 {
		t.Fatalf("second Save: idx=%d err=%v", idx, err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Morning walk" || list[1].Name != "Evening" {
		t.Fatalf("unexpected order: %+v", list)
	}

	view, err := repo.LoadByIndex(ctx, 0)
	if err != nil {
		t.Fatalf("LoadByIndex: %v", err)
	}
	if view.Timeline.Len() != 3 || view.Timeline.ElapsedMs != 3_725_000 {
		t.Fatalf("unexpected rehydrated timeline: %+v", view.Timeline)
	}

	byID, err := repo.LoadByID(ctx, second.ID)
	if err != nil || byID.Index != 1 {
		t.Fatalf("LoadByID: %+v err=%v", byID, err)
	}
	resolved, err := repo.Resolve(ctx, "1")
	if err != nil || resolved.Session.ID != second.ID {
		t.Fatalf("Resolve by index: %+v err=%v", resolved, err)
	}
}

func TestLoadByIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	if _, _, err := repo.Save(ctx, testsupport.EastwardRoute(1), "one"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	for _, idx := range []int{-1, 1, 99} {
		if _, err := repo.LoadByIndex(ctx, idx); !errors.Is(err, sessions.ErrNotFound) {
			t.Fatalf("index %d: expected ErrNotFound, got %v", idx, err)
		}
	}
	if _, err := repo.LoadByID(ctx, "nope"); !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestSaveDeletesBackupSlot(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(t)
	if err := store.Set(ctx, backup.Key, []byte(`{}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, _, err := repo.Save(ctx, testsupport.EastwardRoute(2), "walk"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, _ := store.Get(ctx, backup.Key); ok {
		t.Fatal("expected backup slot to be deleted on save")
	}
}

func TestImportKeepsBackupSlot(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(t)
	if err := store.Set(ctx, backup.Key, []byte(`{}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	index, session, err := repo.Import(ctx, testsupport.EastwardRoute(3), " shared ")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if index != 0 || session.Name != "shared" {
		t.Fatalf("unexpected import result: index=%d name=%q", index, session.Name)
	}
	if _, ok, _ := store.Get(ctx, backup.Key); !ok {
		t.Fatal("expected backup slot to survive an import")
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(t)
	for _, name := range []string{"a", "b"} {
		if _, _, err := repo.Save(ctx, testsupport.EastwardRoute(1), name); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := store.Set(ctx, backup.Key, []byte(`{}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	removed, err := repo.ClearAll(ctx)
	if err != nil || removed != 2 {
		t.Fatalf("ClearAll: removed=%d err=%v", removed, err)
	}
	list, _ := repo.List(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
	if _, ok, _ := store.Get(ctx, backup.Key); ok {
		t.Fatal("expected backup slot cleared")
	}
}

func TestSavePreservesEventOrderAndKinds(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(t)
	tl := testsupport.EastwardRoute(2)
	last, _ := tl.LastLocation()
	if err := tl.Append(timeline.Note(last.Timestamp+1, last.Coords, "view")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	idx, _, err := repo.Save(ctx, tl, "with note")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	view, err := repo.LoadByIndex(ctx, idx)
	if err != nil {
		t.Fatalf("LoadByIndex: %v", err)
	}
	events := view.Session.Events
	if len(events) != 3 || events[2].Kind != timeline.KindNote || events[2].Text != "view" {
		t.Fatalf("unexpected events: %+v", events)
	}
}
