package framed

import (
	"fmt"
	"sync"
)

type (
	// NameRegistry is an explicit, injected replacement for a process-wide
	// alias registry. A server registers its Name at Start and releases it
	// during Shutdown; whether the names mean anything is up to the
	// consumer.
	NameRegistry interface {
		Register(name string) error
		Release(name string)
	}

	// MapNameRegistry is a goroutine-safe in-process NameRegistry.
	// Registering a taken name fails.
	MapNameRegistry struct {
		mu    sync.Mutex
		names map[string]struct{}
	}
)

// NewMapNameRegistry returns an empty MapNameRegistry.
func NewMapNameRegistry() *MapNameRegistry {
	return &MapNameRegistry{names: make(map[string]struct{})}
}

func (nr *MapNameRegistry) Register(name string) error {
	nr.mu.Lock()
	defer nr.mu.Unlock()
	if _, ok := nr.names[name]; ok {
		return fmt.Errorf("framed: name %q already registered", name)
	}
	nr.names[name] = struct{}{}
	return nil
}

func (nr *MapNameRegistry) Release(name string) {
	nr.mu.Lock()
	delete(nr.names, name)
	nr.mu.Unlock()
}

// Held reports whether name is currently registered.
func (nr *MapNameRegistry) Held(name string) bool {
	nr.mu.Lock()
	_, ok := nr.names[name]
	nr.mu.Unlock()
	return ok
}
