// Package di provides a small lazy service container used to wire modules.
package di

import (
	"fmt"
	"sort"
	"sync"
)

// ServiceRegistry resolves registered services by name.
type ServiceRegistry interface {
	Get(name string) any
	Has(name string) bool
}

// Container is a ServiceRegistry that also accepts registrations.
type Container interface {
	ServiceRegistry
	Register(name string, value any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
	Names() []string
}

type entry struct {
	once    sync.Once
	factory func(ServiceRegistry) any
	value   any
}

type container struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{entries: make(map[string]*entry)}
}

// Register stores an already-built value.
func (c *container) Register(name string, value any) {
	e := &entry{value: value}
	e.once.Do(func() {})

	c.mu.Lock()
	c.entries[name] = e
	c.mu.Unlock()
}

// RegisterFactory stores a factory. The factory runs once, on first Get.
func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	c.entries[name] = &entry{factory: factory}
	c.mu.Unlock()
}

// Get resolves a service, building it on first use. Unknown names panic:
// a missing registration is a wiring bug caught at startup.
func (c *container) Get(name string) any {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}

	e.once.Do(func() {
		e.value = e.factory(c)
	})
	return e.value
}

func (c *container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

// Names lists registrations in sorted order.
func (c *container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
