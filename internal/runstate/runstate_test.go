package runstate

import (
	"sync"
	"testing"
)

func TestGuardRejectsReentry(t *testing.T) {
	var g Guard
	if g.State() != Idle {
		t.Fatalf("expected idle zero value, got %s", g.State())
	}
	tok := g.TryEnter()
	if tok == nil {
		t.Fatalf("expected first entry to succeed")
	}
	if g.TryEnter() != nil {
		t.Fatalf("expected re-entry to fail while running")
	}
	tok.Release()
	tok.Release()
	if g.Running() {
		t.Fatalf("expected idle after release")
	}
	second := g.TryEnter()
	if second == nil {
		t.Fatalf("expected entry after release")
	}
	tok.Release()
	if !g.Running() {
		t.Fatalf("stale token must not release a newer run")
	}
	second.Release()
}

func TestGuardSingleWinnerUnderContention(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok := g.TryEnter(); tok != nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}
