package seekio

import (
	"fmt"
	"sort"
	"sync"
)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Protocol]Factory)
)

// Factory creates an unopened Stream for a locator.
// The config map contains backend-specific configuration keys.
type Factory func(locator string, config map[string]string, opts ...Option) (Stream, error)

// Register registers a stream factory for the given protocol.
// It is typically called from init() in backend packages.
//
// Register panics if:
//   - factory is nil
//   - a factory for the same protocol is already registered
func Register(p Protocol, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if factory == nil {
		panic("seekio: Register factory is nil")
	}
	if _, dup := factories[p]; dup {
		panic("seekio: Register called twice for protocol " + string(p))
	}
	factories[p] = factory
}

// Open classifies the locator and creates a stream with the factory
// registered for its protocol. The stream is returned unopened.
//
// Open returns ErrUnknownProtocol if no backend serves the protocol.
//
// Example:
//
//	s, err := seekio.Open("sftp://user@host/photos/a.tif", map[string]string{
//	    "key_file": "/home/me/.ssh/id_ed25519",
//	})
func Open(locator string, config map[string]string, opts ...Option) (Stream, error) {
	p := Classify(locator)

	factoriesMu.RLock()
	factory, ok := factories[p]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, p)
	}
	if config == nil {
		config = map[string]string{}
	}
	return factory(locator, config, opts...)
}

// Protocols returns a sorted list of protocols with a registered factory.
func Protocols() []Protocol {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	names := make([]Protocol, 0, len(factories))
	for p := range factories {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// IsRegistered returns true if a factory is registered for the protocol.
func IsRegistered(p Protocol) bool {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	_, ok := factories[p]
	return ok
}

// Unregister removes a registered factory.
// This is primarily useful for testing.
func Unregister(p Protocol) bool {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, ok := factories[p]; ok {
		delete(factories, p)
		return true
	}
	return false
}
