package scanner

import (
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu    sync.Mutex
	codes []string
	ch    chan string
}

func newCollector() *collector {
	return &collector{ch: make(chan string, 16)}
}

func (c *collector) add(code string) {
	c.mu.Lock()
	c.codes = append(c.codes, code)
	c.mu.Unlock()
	c.ch <- code
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.codes...)
}

func (c *collector) wait(t *testing.T) string {
	t.Helper()
	select {
	case code := <-c.ch:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("scan was not emitted")
		return ""
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		reversed bool
		want     string
	}{
		{"trim and newline", "  C001\r\n", false, "C001"},
		{"fullwidth", "Ｃ００１", false, "C001"},
		{"halfwidth kana", "ｱｲｳ", false, "アイウ"},
		{"reversed", "100C", true, "C001"},
		{"empty", "\r\n", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw, tt.reversed); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTerminatorEmitsImmediately(t *testing.T) {
	c := newCollector()
	b := NewBuffer(Options{Quiet: time.Hour}, c.add)
	defer b.Close()

	b.Input("C0")
	if b.State() != Buffering {
		t.Fatalf("state = %s, want buffering", b.State())
	}
	b.Input("01\r\nC002\n")

	got := c.all()
	if len(got) != 2 || got[0] != "C001" || got[1] != "C002" {
		t.Fatalf("codes = %v", got)
	}
	if b.State() != Idle {
		t.Errorf("state = %s, want idle", b.State())
	}
}

func TestQuietTimeoutEmits(t *testing.T) {
	c := newCollector()
	b := NewBuffer(Options{Quiet: 30 * time.Millisecond}, c.add)
	defer b.Close()

	b.Input("C0")
	b.Input("03")
	if code := c.wait(t); code != "C003" {
		t.Fatalf("code = %q, want C003", code)
	}
	if b.State() != Idle {
		t.Errorf("state = %s, want idle", b.State())
	}
}

func TestMaxLengthEmits(t *testing.T) {
	c := newCollector()
	b := NewBuffer(Options{Quiet: time.Hour, MaxLength: 4}, c.add)
	defer b.Close()

	b.Input("ABCD")
	got := c.all()
	if len(got) != 1 || got[0] != "ABCD" {
		t.Fatalf("codes = %v", got)
	}
}

func TestReversedScanner(t *testing.T) {
	c := newCollector()
	b := NewBuffer(Options{Quiet: time.Hour, Reversed: true}, c.add)
	defer b.Close()

	b.Input("100C\r")
	if got := c.all(); len(got) != 1 || got[0] != "C001" {
		t.Fatalf("codes = %v", got)
	}
}

func TestCloseCancelsPendingTimer(t *testing.T) {
	c := newCollector()
	b := NewBuffer(Options{Quiet: 20 * time.Millisecond}, c.add)

	b.Input("C004")
	b.Close()
	time.Sleep(60 * time.Millisecond)

	if got := c.all(); len(got) != 0 {
		t.Fatalf("codes after close = %v", got)
	}
	b.Input("C005\n")
	if got := c.all(); len(got) != 0 {
		t.Fatalf("input after close emitted %v", got)
	}
}

func TestBlankTerminatorIsIgnored(t *testing.T) {
	c := newCollector()
	b := NewBuffer(Options{Quiet: time.Hour}, c.add)
	defer b.Close()

	b.Input("  \r\n")
	if got := c.all(); len(got) != 0 {
		t.Fatalf("codes = %v", got)
	}
}
