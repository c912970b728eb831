package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestRingBufferHoldsShortWrites(t *testing.T) {
	rb := NewRingBuffer(32)
	if _, err := rb.Write([]byte("first ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := rb.Write([]byte("second")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := string(rb.Bytes()); got != "first second" {
		t.Errorf("got %q, want %q", got, "first second")
	}
}

func TestRingBufferEvictsOldestOnWrap(t *testing.T) {
	rb := NewRingBuffer(8)
	_, _ = rb.Write([]byte("abcdefgh")) // exactly full
	_, _ = rb.Write([]byte("123"))      // wraps, evicts abc
	if got := string(rb.Bytes()); got != "defgh123" {
		t.Errorf("got %q, want %q", got, "defgh123")
	}
}

func TestRingBufferOversizedWriteKeepsTail(t *testing.T) {
	rb := NewRingBuffer(4)
	_, _ = rb.Write([]byte("0123456789"))
	if got := string(rb.Bytes()); got != "6789" {
		t.Errorf("got %q, want %q", got, "6789")
	}
}

func TestRingBufferSplitWrite(t *testing.T) {
	rb := NewRingBuffer(6)
	_, _ = rb.Write([]byte("abcd"))
	_, _ = rb.Write([]byte("WXYZ")) // crosses the end, evicts ab
	if got := string(rb.Bytes()); got != "cdWXYZ" {
		t.Errorf("got %q, want %q", got, "cdWXYZ")
	}
}

func TestRingBufferDumpToFile(t *testing.T) {
	rb := NewRingBuffer(64)
	_, _ = rb.Write([]byte("crash context line\n"))

	path := filepath.Join(t.TempDir(), "ring.dump")
	if err := rb.DumpToFile(path); err != nil {
		t.Fatalf("dump: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if string(data) != "crash context line\n" {
		t.Errorf("dump content %q", string(data))
	}
}

func TestRingBufferConcurrentWriters(t *testing.T) {
	rb := NewRingBuffer(4096)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = rb.Write([]byte("entry\n"))
			}
		}()
	}
	wg.Wait()

	got := string(rb.Bytes())
	if len(got) != 8*50*len("entry\n") {
		t.Fatalf("retained %d bytes", len(got))
	}
	if strings.Count(got, "entry\n") != 400 {
		t.Errorf("entries interleaved or lost: %d", strings.Count(got, "entry\n"))
	}
}
