package engine

import (
	"sync"

	"github.com/use-agent/pricewatch/models"
)

// DomainMemory remembers, for the duration of a run, which hosts needed a
// headless render. Auto mode sends later pages of such hosts straight to the
// dynamic path instead of probing statically first.
type DomainMemory struct {
	store sync.Map // host (string) -> models.FetchPath
}

// NewDomainMemory creates an empty DomainMemory.
func NewDomainMemory() *DomainMemory {
	return &DomainMemory{}
}

// Get returns the remembered path for host, or "" if none.
func (dm *DomainMemory) Get(host string) models.FetchPath {
	if dm == nil {
		return ""
	}
	val, ok := dm.store.Load(host)
	if !ok {
		return ""
	}
	return val.(models.FetchPath)
}

// Set records the path that worked for host.
func (dm *DomainMemory) Set(host string, path models.FetchPath) {
	if dm == nil {
		return
	}
	dm.store.Store(host, path)
}

// Delete forgets host, e.g. after the remembered path failed.
func (dm *DomainMemory) Delete(host string) {
	if dm == nil {
		return
	}
	dm.store.Delete(host)
}
