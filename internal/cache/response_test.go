package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type failingStore struct {
	gets, puts int
}

func (f *failingStore) Get(context.Context, string) ([]byte, bool, error) {
	f.gets++
	return nil, false, errors.New("connection reset")
}

func (f *failingStore) Put(context.Context, string, Kind, []byte, time.Duration) error {
	f.puts++
	return errors.New("connection reset")
}

func newTestResponseCache(t *testing.T) (*ResponseCache, *MemoryStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store, err := NewMemoryStore(64, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := zaptest.NewLogger(t)
	return NewResponseCache(NewLoggingStore(store, logger), logger), store, clock
}

func TestResponseCache_RoundTripAndTTL(t *testing.T) {
	rc, _, clock := newTestResponseCache(t)
	ctx := context.Background()

	rc.Save(ctx, "Chennai", KindAnalysis, []byte(`{"risk_analysis":{}}`))

	got, ok := rc.Check(ctx, "Chennai", KindAnalysis)
	if !ok || string(got) != `{"risk_analysis":{}}` {
		t.Fatalf("expected immediate hit, ok=%v got=%q", ok, got)
	}

	// Key normalization: same entry for whitespace/case variants.
	if _, ok := rc.Check(ctx, "  chennai ", KindAnalysis); !ok {
		t.Fatalf("expected normalized lookup to hit")
	}

	clock.Advance(TTL - time.Second)
	if _, ok := rc.Check(ctx, "Chennai", KindAnalysis); !ok {
		t.Fatalf("expected hit just before TTL")
	}

	clock.Advance(time.Second)
	if _, ok := rc.Check(ctx, "Chennai", KindAnalysis); ok {
		t.Fatalf("expected miss once TTL elapsed")
	}
}

func TestResponseCache_KindIsolation(t *testing.T) {
	rc, _, _ := newTestResponseCache(t)
	ctx := context.Background()

	rc.Save(ctx, "chennai", KindAnalysis, []byte(`{"risk_analysis":{}}`))

	if _, ok := rc.Check(ctx, "chennai", KindChat); ok {
		t.Fatalf("chat lookup must not see analysis payload")
	}
}

func TestResponseCache_StoreFailuresDegrade(t *testing.T) {
	fs := &failingStore{}
	rc := NewResponseCache(fs, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, ok := rc.Check(ctx, "chennai", KindAnalysis); ok {
		t.Fatalf("failed read must be a miss")
	}
	rc.Save(ctx, "chennai", KindAnalysis, []byte(`{}`))

	if fs.gets != 1 || fs.puts != 1 {
		t.Fatalf("expected one get and one put attempt, got %d/%d", fs.gets, fs.puts)
	}
}

func TestResponseCache_NilStoreDisablesCaching(t *testing.T) {
	rc := NewResponseCache(nil, nil)
	ctx := context.Background()

	rc.Save(ctx, "x", KindChat, []byte(`"v"`))
	if _, ok := rc.Check(ctx, "x", KindChat); ok {
		t.Fatalf("nil store must always miss")
	}
}

func TestResponseCache_JSONHelpers(t *testing.T) {
	rc, store, _ := newTestResponseCache(t)
	ctx := context.Background()

	rc.SaveJSON(ctx, "hello", KindChat, "a reply")

	var reply string
	if !rc.CheckJSON(ctx, "hello", KindChat, &reply) || reply != "a reply" {
		t.Fatalf("expected decoded reply, got %q", reply)
	}

	// Corrupt payloads read as misses.
	_ = store.Put(ctx, Key(KindChat, "broken"), KindChat, []byte("{not json"), time.Hour)
	if rc.CheckJSON(ctx, "broken", KindChat, &reply) {
		t.Fatalf("expected corrupt payload to be a miss")
	}
}

func TestLoggingStore_PurgeForwarding(t *testing.T) {
	rc, store, clock := newTestResponseCache(t)
	ctx := context.Background()
	rc.Save(ctx, "a", KindChat, []byte(`"x"`))
	clock.Advance(TTL)

	ls := NewLoggingStore(store, zaptest.NewLogger(t))
	n, err := ls.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one purged entry, n=%d err=%v", n, err)
	}

	if _, err := NewLoggingStore(&failingStore{}, nil).PurgeExpired(ctx); !errors.Is(err, ErrPurgeUnsupported) {
		t.Fatalf("expected ErrPurgeUnsupported, got %v", err)
	}
}
