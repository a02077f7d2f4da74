package turns

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type collector struct {
	mu    sync.Mutex
	turns []string
	ch    chan string
}

func newCollector() *collector {
	return &collector{ch: make(chan string, 8)}
}

func (c *collector) emit(text string) {
	c.mu.Lock()
	c.turns = append(c.turns, text)
	c.mu.Unlock()
	c.ch <- text
}

func (c *collector) wait(t *testing.T, timeout time.Duration) string {
	t.Helper()
	select {
	case text := <-c.ch:
		return text
	case <-time.After(timeout):
		t.Fatal("timed out waiting for turn")
		return ""
	}
}

func TestFragmentsJoinIntoSingleTurn(t *testing.T) {
	c := newCollector()
	s := NewSegmenter(30*time.Millisecond, c.emit, zap.NewNop())

	for _, frag := range []string{"hola", "quiero", "gomitas"} {
		s.AddFragment(frag)
		time.Sleep(5 * time.Millisecond) // within the silence window
	}

	got := c.wait(t, time.Second)
	if got != "hola quiero gomitas" {
		t.Errorf("turn = %q, want %q", got, "hola quiero gomitas")
	}
	s.Done()
}

func TestShortFragmentsDropped(t *testing.T) {
	c := newCollector()
	s := NewSegmenter(30*time.Millisecond, c.emit, zap.NewNop())

	s.AddFragment("a")
	s.AddFragment(" e ")
	s.AddFragment("")

	select {
	case text := <-c.ch:
		t.Fatalf("noise fragment produced turn %q", text)
	case <-time.After(100 * time.Millisecond):
	}

	// A real fragment after noise still forms a clean turn
	s.AddFragment("hola")
	if got := c.wait(t, time.Second); got != "hola" {
		t.Errorf("turn = %q, want %q", got, "hola")
	}
	s.Done()
}

func TestSilenceWindowRearmsPerFragment(t *testing.T) {
	c := newCollector()
	s := NewSegmenter(60*time.Millisecond, c.emit, zap.NewNop())

	s.AddFragment("primer")
	time.Sleep(40 * time.Millisecond)
	s.AddFragment("turno")

	// 40ms after the first fragment the window has not expired
	c.mu.Lock()
	emitted := len(c.turns)
	c.mu.Unlock()
	if emitted != 0 {
		t.Fatal("turn emitted before silence window expired")
	}

	if got := c.wait(t, time.Second); got != "primer turno" {
		t.Errorf("turn = %q, want %q", got, "primer turno")
	}
	s.Done()
}

func TestSecondTurnQueuedWhileProcessing(t *testing.T) {
	c := newCollector()
	s := NewSegmenter(20*time.Millisecond, c.emit, zap.NewNop())

	s.AddFragment("primera pregunta")
	first := c.wait(t, time.Second)
	if first != "primera pregunta" {
		t.Fatalf("first turn = %q", first)
	}

	// First turn still processing (Done not called): next turn must queue
	s.AddFragment("segunda pregunta")

	select {
	case text := <-c.ch:
		t.Fatalf("queued turn %q emitted before Done", text)
	case <-time.After(100 * time.Millisecond):
	}

	s.Done()
	if got := c.wait(t, time.Second); got != "segunda pregunta" {
		t.Errorf("queued turn = %q, want %q", got, "segunda pregunta")
	}
	s.Done()
}

func TestCloseDiscardsBufferedFragments(t *testing.T) {
	c := newCollector()
	s := NewSegmenter(50*time.Millisecond, c.emit, zap.NewNop())

	s.AddFragment("se corta")
	s.Close()

	select {
	case text := <-c.ch:
		t.Fatalf("turn %q emitted after Close", text)
	case <-time.After(150 * time.Millisecond):
	}

	// Fragments after Close are ignored
	s.AddFragment("tarde")
	select {
	case text := <-c.ch:
		t.Fatalf("turn %q emitted after Close", text)
	case <-time.After(100 * time.Millisecond):
	}
}
