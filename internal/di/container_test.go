package di

import (
	"sync"
	"sync/atomic"
	"testing"
)

type widget struct {
	name string
}

func TestContainer_FactoryRunsOnce(t *testing.T) {
	c := NewContainer()
	var builds atomic.Int32

	tok := NewToken[*widget]("test:widget")
	RegisterToken(c, tok, func(sr ServiceRegistry) *widget {
		builds.Add(1)
		return &widget{name: "w"}
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := GetToken(c, tok); got.name != "w" {
				t.Errorf("unexpected widget %v", got)
			}
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("expected 1 build, got %d", builds.Load())
	}
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("config", "prefix")

	tok := NewToken[*widget]("test:widget")
	RegisterToken(c, tok, func(sr ServiceRegistry) *widget {
		return &widget{name: sr.Get("config").(string) + "-w"}
	})

	if got := GetToken(c, tok).name; got != "prefix-w" {
		t.Errorf("expected prefix-w, got %s", got)
	}
}

func TestContainer_UnknownServicePanics(t *testing.T) {
	c := NewContainer()
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	c.Get("missing")
}

func TestContainer_Names(t *testing.T) {
	c := NewContainer()
	c.Register("b", 1)
	c.Register("a", 2)

	names := c.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected names %v", names)
	}
	if !c.Has("a") || c.Has("z") {
		t.Error("Has returned wrong result")
	}
}

type store interface{ Get(string) string }

func TestGetToken_NilInterface(t *testing.T) {
	c := NewContainer()
	tok := NewToken[store]("test:store")
	RegisterToken(c, tok, func(sr ServiceRegistry) store { return nil })

	if got := GetToken(c, tok); got != nil {
		t.Errorf("expected nil store, got %v", got)
	}
}
