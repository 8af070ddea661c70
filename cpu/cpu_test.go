package cpu

import "sync"
import "testing"

func TestBinding(t *testing.T) {
	if id := Mycpu(); id != 0 {
		t.Fatalf("unbound goroutine on cpu %v", id)
	}

	SetMycpu(3)
	defer UnsetMycpu()
	PushOff()
	if id := Mycpu(); id != 3 {
		t.Fatalf("on cpu %v, want 3", id)
	}
	PopOff()

	// bindings are per goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if id := Mycpu(); id != 0 {
			t.Errorf("binding leaked: cpu %v", id)
		}
	}()
	wg.Wait()
}

func TestPopoffPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("unbalanced popoff did not panic")
		}
	}()
	PopOff()
}

func TestSetMycpuRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("bad cpu id did not panic")
		}
	}()
	SetMycpu(-1)
}
