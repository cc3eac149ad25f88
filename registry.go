package streamfeed

import (
	"sync"
)

// callbackEntry pairs a handle with its registered callback.
type callbackEntry struct {
	handle Handle
	fn     MessageHandler
}

// handleInfo records what a handle subscribed to.
type handleInfo struct {
	sub Subscription
	key string
}

// registry owns subscription state: canonical key → callback entries and
// handle → spec. Every live handle appears in exactly one key's entry
// list and exactly once in the handle map. All mutation and all snapshot
// reads hold the one mutex; the mutex is never held across transport
// writes or queue operations.
type registry struct {
	mu         sync.Mutex
	nextHandle Handle
	channels   map[string][]callbackEntry
	handles    map[Handle]handleInfo
}

func newRegistry() *registry {
	return &registry{
		channels: make(map[string][]callbackEntry),
		handles:  make(map[Handle]handleInfo),
	}
}

// register adds a callback under the subscription's canonical key and
// returns a fresh handle. The second result is true when the key did not
// exist before, i.e. a subscribe frame is owed.
func (r *registry) register(sub Subscription, key string, fn MessageHandler) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextHandle++
	h := r.nextHandle

	_, existed := r.channels[key]
	r.channels[key] = append(r.channels[key], callbackEntry{handle: h, fn: fn})
	r.handles[h] = handleInfo{sub: sub, key: key}

	return h, !existed
}

// unregister removes a handle's entry. Unknown handles are a no-op.
// The second result is true when the last callback for the handle's key
// was removed, i.e. an unsubscribe frame is owed.
func (r *registry) unregister(h Handle) (Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.handles[h]
	if !ok {
		return Subscription{}, false
	}
	delete(r.handles, h)

	entries := r.channels[info.key]
	for i, e := range entries {
		if e.handle == h {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}

	if len(entries) == 0 {
		delete(r.channels, info.key)
		return info.sub, true
	}

	r.channels[info.key] = entries
	return info.sub, false
}

// callbacksFor returns a snapshot of the callbacks for a key in
// registration order, so dispatch never iterates a list that a
// concurrent register/unregister is mutating.
func (r *registry) callbacksFor(key string) []MessageHandler {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.channels[key]
	if len(entries) == 0 {
		return nil
	}

	fns := make([]MessageHandler, len(entries))
	for i, e := range entries {
		fns[i] = e.fn
	}
	return fns
}

// activeSpecs returns one spec per active canonical key, deduplicated,
// for subscription replay after a reconnect. Order is unspecified.
func (r *registry) activeSpecs() []Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.channels))
	specs := make([]Subscription, 0, len(r.channels))
	for _, info := range r.handles {
		if _, dup := seen[info.key]; dup {
			continue
		}
		seen[info.key] = struct{}{}
		specs = append(specs, info.sub)
	}
	return specs
}

// counts reports the number of active keys and live handles.
func (r *registry) counts() (keys, handles int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels), len(r.handles)
}
