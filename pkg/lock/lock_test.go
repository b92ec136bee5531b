package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newtron-network/newtcc/internal/testutil"
	"github.com/newtron-network/newtcc/pkg/util"
)

func newTestLocker(t *testing.T) (*RedisLocker, string) {
	t.Helper()
	addr := testutil.SkipIfNoRedis(t)
	testutil.FlushDB(t, addr, testutil.LockDB)
	l := NewRedisLocker(addr, testutil.LockDB, time.Minute)
	t.Cleanup(func() { l.Close() })
	return l, addr
}

func TestKey(t *testing.T) {
	if got := Key("Global/USA/SAN-JOSE"); got != "NEWTCC_LOCK|Global/USA/SAN-JOSE" {
		t.Errorf("Key = %q", got)
	}
}

func TestLockLifecycle(t *testing.T) {
	l, addr := newTestLocker(t)
	ctx := context.Background()
	site := "Global/USA/SAN-JOSE"

	if err := l.Lock(ctx, site, "alice/run-1"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	entry := testutil.ReadEntry(t, addr, testutil.LockDB, Key(site))
	if entry["holder"] != "alice/run-1" || entry["ttl"] != "60" || entry["acquired"] == "" {
		t.Errorf("lock hash = %v", entry)
	}

	if err := l.Lock(ctx, site, "alice/run-1"); err != nil {
		t.Errorf("same holder should re-acquire: %v", err)
	}

	err := l.Lock(ctx, site, "bob/run-2")
	if !errors.Is(err, util.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := l.Unlock(ctx, site, "bob/run-2"); err == nil {
		t.Error("non-holder unlock should fail")
	}
	if err := l.Unlock(ctx, site, "alice/run-1"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if h, _ := l.Holder(ctx, site); h != "" {
		t.Errorf("holder after unlock = %q", h)
	}
	if err := l.Unlock(ctx, site, "alice/run-1"); err != nil {
		t.Errorf("unlocking a free site should succeed: %v", err)
	}

	if err := l.Lock(ctx, site, "bob/run-2"); err != nil {
		t.Errorf("lock after release: %v", err)
	}
}

func TestLocksAreIndependentPerSite(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	if err := l.Lock(ctx, "Global/A", "alice/1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Lock(ctx, "Global/B", "bob/2"); err != nil {
		t.Errorf("different site should not be blocked: %v", err)
	}
}
