package providers

import (
	"slices"
	"testing"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStub("a"))

	p, ok := r.Get("a")
	if !ok {
		t.Fatal("expected provider a")
	}
	if p.Name() != "a" {
		t.Errorf("got %q", p.Name())
	}

	_, ok = r.Get("missing")
	if ok {
		t.Error("expected not found")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry(NewStub(NameOpenAI), NewStub(NameBedrock), NewStub(NameAnthropic))
	if got := r.List(); !slices.Equal(got, []string{"anthropic", "bedrock", "openai"}) {
		t.Errorf("List() = %v", got)
	}
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(NewStub(NameOpenAI))
	live, _ := NewOpenAI("", "")
	r.Register(live)
	if p := r.MustGet(NameOpenAI); p != Provider(live) {
		t.Errorf("expected live provider to replace stub, got %T", p)
	}
	if n := len(r.List()); n != 1 {
		t.Errorf("expected 1 provider, got %d", n)
	}
}

func TestRegistry_MustGetPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewRegistry().MustGet("nope")
}
