package service

import (
	"sync"

	"github.com/CZERTAINLY/devserver/internal/model"
)

// fuse is a selectable signal, which can be fired many times,
// but only the first one counts.
type fuse struct {
	mx   sync.Mutex
	ch   chan struct{}
	done bool
}

func newFuse() *fuse {
	return &fuse{ch: make(chan struct{})}
}

func (f *fuse) Fire() {
	f.mx.Lock()
	defer f.mx.Unlock()
	if f.done {
		return
	}
	close(f.ch)
	f.done = true
}

func (f *fuse) Fired() bool {
	f.mx.Lock()
	defer f.mx.Unlock()
	return f.done
}

func (f *fuse) Selectable() <-chan struct{} {
	return f.ch
}

// readyGate pairs the discovered URL with the ready signal. Both change
// together under one lock, so a closed channel always means a valid URL.
type readyGate struct {
	mx  sync.RWMutex
	url model.URL
	ch  chan struct{}
}

func newReadyGate() *readyGate {
	return &readyGate{ch: make(chan struct{})}
}

// Set stores u and releases the waiters. Only the first non-empty URL is
// kept, it returns false for every later call.
func (g *readyGate) Set(u model.URL) bool {
	if u.IsZero() {
		return false
	}
	g.mx.Lock()
	defer g.mx.Unlock()
	if !g.url.IsZero() {
		return false
	}
	g.url = u.Clone()
	close(g.ch)
	return true
}

func (g *readyGate) URL() (model.URL, bool) {
	g.mx.RLock()
	defer g.mx.RUnlock()
	if g.url.IsZero() {
		return model.URL{}, false
	}
	return g.url.Clone(), true
}

func (g *readyGate) Wait() <-chan struct{} {
	return g.ch
}
