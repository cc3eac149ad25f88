package streamfeed

import (
	"sync"
	"testing"
)

func noop(Message) {}

func TestRegistry_HandlesAreUniqueAndMonotonic(t *testing.T) {
	r := newRegistry()

	var prev Handle
	for i := 0; i < 10; i++ {
		h, _ := r.register(Subscription{Type: ChannelAllMids}, "allMids", noop)
		if h <= prev {
			t.Fatalf("handle %d not greater than previous %d", h, prev)
		}
		prev = h
	}
}

func TestRegistry_FirstAndLastSignals(t *testing.T) {
	r := newRegistry()

	h1, first := r.register(Subscription{Type: ChannelTrades, Symbol: "btc"}, "trades:btc", noop)
	if !first {
		t.Error("first registration for a key should report first=true")
	}
	h2, first := r.register(Subscription{Type: ChannelTrades, Symbol: "BTC"}, "trades:btc", noop)
	if first {
		t.Error("second registration for the same key should report first=false")
	}

	if _, last := r.unregister(h1); last {
		t.Error("removing one of two entries should not report last=true")
	}
	if _, last := r.unregister(h2); !last {
		t.Error("removing the final entry should report last=true")
	}

	if keys, handles := r.counts(); keys != 0 || handles != 0 {
		t.Errorf("counts after full unregister = (%d, %d), want (0, 0)", keys, handles)
	}
}

func TestRegistry_UnknownHandleIsNoop(t *testing.T) {
	r := newRegistry()
	if _, last := r.unregister(42); last {
		t.Error("unknown handle should be a no-op")
	}
}

func TestRegistry_CallbacksForSnapshot(t *testing.T) {
	r := newRegistry()

	h1, _ := r.register(Subscription{Type: ChannelTrades, Symbol: "btc"}, "trades:btc", noop)
	r.register(Subscription{Type: ChannelTrades, Symbol: "btc"}, "trades:btc", noop)

	snap := r.callbacksFor("trades:btc")
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d, want 2", len(snap))
	}

	// Mutating the registry must not affect the snapshot already taken.
	r.unregister(h1)
	if len(snap) != 2 {
		t.Errorf("snapshot changed after unregister: %d entries", len(snap))
	}
	if len(r.callbacksFor("trades:btc")) != 1 {
		t.Error("registry should now hold a single callback")
	}
}

func TestRegistry_ActiveSpecsDeduplicated(t *testing.T) {
	r := newRegistry()

	r.register(Subscription{Type: ChannelTrades, Symbol: "BTC"}, "trades:btc", noop)
	r.register(Subscription{Type: ChannelTrades, Symbol: "btc"}, "trades:btc", noop)
	r.register(Subscription{Type: ChannelL2Book, Symbol: "eth"}, "l2Book:eth", noop)

	specs := r.activeSpecs()
	if len(specs) != 2 {
		t.Fatalf("activeSpecs returned %d specs, want 2", len(specs))
	}

	keys := make(map[string]struct{})
	for _, s := range specs {
		k, err := s.Key()
		if err != nil {
			t.Fatalf("Key() error: %v", err)
		}
		keys[k] = struct{}{}
	}
	for _, want := range []string{"trades:btc", "l2Book:eth"} {
		if _, ok := keys[want]; !ok {
			t.Errorf("activeSpecs missing key %q", want)
		}
	}
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := newRegistry()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.register(Subscription{Type: ChannelAllMids}, "allMids", noop)
			}
		}()
	}
	wg.Wait()

	if _, handles := r.counts(); handles != 400 {
		t.Errorf("handles = %d, want 400", handles)
	}
	if len(r.callbacksFor("allMids")) != 400 {
		t.Error("all entries should land under the shared key")
	}
}
