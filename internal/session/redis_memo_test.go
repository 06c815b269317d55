package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"grimoire/internal/entity"
	"grimoire/internal/resolve"
)

func setupTestRedis(t *testing.T) (*RedisMemo, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	memo, err := NewRedisMemo("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis memo: %v", err)
	}
	return memo, s
}

func readyOutcome() resolve.Outcome {
	return resolve.Outcome{
		State:  resolve.StateReady,
		Detail: &entity.Detail{Type: entity.Spell, ID: "s1", Name: "Fogo", Status: "active"},
	}
}

func TestNewRedisMemo(t *testing.T) {
	memo, s := setupTestRedis(t)
	defer memo.Close()
	defer s.Close()

	if err := memo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisMemoRejectsBadURL(t *testing.T) {
	if _, err := NewRedisMemo("not a url", time.Minute); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestStoreAndLoadOutcome(t *testing.T) {
	memo, s := setupTestRedis(t)
	defer memo.Close()
	defer s.Close()

	ctx := context.Background()
	view := memo.ForView("view-1")

	if err := view.Store(ctx, "spell:s1", readyOutcome()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, ok, err := view.Load(ctx, "spell:s1")
	if err != nil || !ok {
		t.Fatalf("Load failed: ok=%v err=%v", ok, err)
	}
	if got.State != resolve.StateReady || got.Detail == nil || got.Detail.Name != "Fogo" {
		t.Errorf("unexpected outcome: %+v", got)
	}
	if ttl := s.TTL(defaultPrefix + "view-1"); ttl != time.Minute {
		t.Errorf("expected ttl of one minute, got %v", ttl)
	}
}

func TestLoadMissingOutcome(t *testing.T) {
	memo, s := setupTestRedis(t)
	defer memo.Close()
	defer s.Close()

	_, ok, err := memo.ForView("view-1").Load(context.Background(), "rule:r1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Error("expected miss for unknown key")
	}
}

func TestPendingIsNotStored(t *testing.T) {
	memo, s := setupTestRedis(t)
	defer memo.Close()
	defer s.Close()

	ctx := context.Background()
	view := memo.ForView("view-1")
	if err := view.Store(ctx, "spell:s1", resolve.Outcome{State: resolve.StatePending}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, ok, _ := view.Load(ctx, "spell:s1"); ok {
		t.Error("pending outcome should not be persisted")
	}
}

func TestViewExpires(t *testing.T) {
	memo, s := setupTestRedis(t)
	defer memo.Close()
	defer s.Close()

	ctx := context.Background()
	view := memo.ForView("view-1")
	if err := view.Store(ctx, "spell:s1", readyOutcome()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	if _, ok, _ := view.Load(ctx, "spell:s1"); ok {
		t.Error("expected outcome to expire with the view")
	}
}

func TestTouchExtendsView(t *testing.T) {
	memo, s := setupTestRedis(t)
	defer memo.Close()
	defer s.Close()

	ctx := context.Background()
	view := memo.ForView("view-1")
	if err := view.Store(ctx, "spell:s1", readyOutcome()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	s.FastForward(50 * time.Second)
	if err := memo.Touch(ctx, "view-1"); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	s.FastForward(50 * time.Second)

	if _, ok, _ := view.Load(ctx, "spell:s1"); !ok {
		t.Error("touched view should still hold its outcomes")
	}
}

func TestViewIsolation(t *testing.T) {
	memo, s := setupTestRedis(t)
	defer memo.Close()
	defer s.Close()

	ctx := context.Background()
	a := memo.ForView("view-a")
	b := memo.ForView("view-b")

	if err := a.Store(ctx, "spell:s1", readyOutcome()); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if _, ok, _ := b.Load(ctx, "spell:s1"); ok {
		t.Error("outcome leaked into another view")
	}

	if err := memo.DropView(ctx, "view-a"); err != nil {
		t.Fatalf("DropView failed: %v", err)
	}
	if _, ok, _ := a.Load(ctx, "spell:s1"); ok {
		t.Error("expected dropped view to be empty")
	}
	if err := memo.DropView(ctx, "never-created"); err != nil {
		t.Errorf("dropping an unknown view should not error: %v", err)
	}
}

func TestCacheUsesRedisMemo(t *testing.T) {
	memo, s := setupTestRedis(t)
	defer memo.Close()
	defer s.Close()

	calls := 0
	fetcher := fetcherFunc(func(ctx context.Context, typ entity.Type, id string) (entity.Detail, error) {
		calls++
		return entity.Detail{Type: typ, ID: id, Name: "Fogo", Status: "active"}, nil
	})

	for i := 0; i < 2; i++ {
		cache := resolve.NewCache(fetcher, resolve.Options{Memo: memo.ForView("view-1")})
		o := cache.Resolve(context.Background(), entity.Spell, "s1")
		cache.Wait()
		if o.State != resolve.StateReady {
			t.Fatalf("unexpected state %s", o.State)
		}
	}
	if calls != 1 {
		t.Errorf("expected one fetch across caches of the same view, got %d", calls)
	}
}

type fetcherFunc func(ctx context.Context, t entity.Type, id string) (entity.Detail, error)

func (f fetcherFunc) Detail(ctx context.Context, t entity.Type, id string) (entity.Detail, error) {
	return f(ctx, t, id)
}
