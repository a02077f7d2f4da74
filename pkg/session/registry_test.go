package session

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCreateReturnsExistingSession(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	first := r.Create("CA123")
	first.From = "+5215512345678"

	second := r.Create("CA123")
	if second != first {
		t.Fatal("expected Create to return the existing session for the same call SID")
	}
	if second.From != "+5215512345678" {
		t.Errorf("existing session state lost: From = %q", second.From)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestGetUnknownSession(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	if got := r.Get("CA-unknown"); got != nil {
		t.Errorf("Get for unknown call SID = %v, want nil", got)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Create("CA123")

	if !r.Remove("CA123") {
		t.Error("first Remove reported nothing evicted")
	}
	if r.Get("CA123") != nil {
		t.Fatal("session still present after Remove")
	}

	// Second removal must not panic or affect other sessions
	r.Create("CA456")
	if r.Remove("CA123") {
		t.Error("repeated Remove reported an eviction")
	}
	if r.Get("CA456") == nil {
		t.Error("unrelated session evicted by repeated Remove")
	}
}

func TestConcurrentCreateSingleSession(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	var wg sync.WaitGroup
	results := make([]*Session, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Create("CA-race")
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent Create produced more than one session")
		}
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestHistoryReturnsLastN(t *testing.T) {
	s := &Session{CallSID: "CA123"}

	for i := 0; i < 12; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		s.AppendTurn(Turn{Role: role, Text: "mensaje", Timestamp: time.Now()})
	}

	got := s.History(10)
	if len(got) != 10 {
		t.Fatalf("History(10) returned %d turns", len(got))
	}
	if got[0].Role != "user" {
		t.Errorf("history window misaligned, first role = %q", got[0].Role)
	}

	short := s.History(20)
	if len(short) != 12 {
		t.Errorf("History(20) returned %d turns, want all 12", len(short))
	}
}
