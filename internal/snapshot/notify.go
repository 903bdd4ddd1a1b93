package snapshot

import (
	"sync"
)

type subCh = chan string // carries new ETags

// notifier fans snapshot-change ETags out to in-process listeners. It
// belongs to one Cache instance so independent caches in tests do not
// cross-talk.
type notifier struct {
	mu   sync.Mutex
	subs map[subCh]struct{}
}

// subscribe registers a listener and returns its channel and an
// unsubscribe func.
func (n *notifier) subscribe() (subCh, func()) {
	ch := make(subCh, 1)
	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[subCh]struct{})
	}
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	unsub := func() {
		n.mu.Lock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, unsub
}

// publish notifies all listeners (non-blocking).
func (n *notifier) publish(etag string) {
	n.mu.Lock()
	for ch := range n.subs {
		select {
		case ch <- etag:
		default: // if a listener is slow, skip instead of blocking
		}
	}
	n.mu.Unlock()
}
