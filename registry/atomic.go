package registry

import "sync/atomic"

// localNodesPtr is the copy-on-write local-node table: readers take a
// snapshot reference via load() and never block a concurrent store().
type localNodesPtr struct {
	p atomic.Pointer[localNodes]
}

func (a *localNodesPtr) load() localNodes {
	if p := a.p.Load(); p != nil {
		return *p
	}
	return nil
}

func (a *localNodesPtr) store(m localNodes) {
	a.p.Store(&m)
}
