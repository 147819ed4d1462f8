package iox

import (
	"errors"
	"testing"
)

type failingCloser struct{ calls int }

func (f *failingCloser) Close() error {
	f.calls++
	return errors.New("close failed")
}

func TestDiscardClose(t *testing.T) {
	fc := &failingCloser{}
	DiscardClose(fc)
	if fc.calls != 1 {
		t.Fatalf("Close calls = %d, want 1", fc.calls)
	}
}

func TestDiscardErr(t *testing.T) {
	ran := false
	DiscardErr(func() error {
		ran = true
		return errors.New("flush failed")
	})
	if !ran {
		t.Fatal("wrapped call did not run")
	}
}

func TestCloseFunc(t *testing.T) {
	fc := &failingCloser{}
	fn := CloseFunc(fc)
	if fc.calls != 0 {
		t.Fatal("Close ran before the returned func was invoked")
	}
	fn()
	fn()
	if fc.calls != 2 {
		t.Fatalf("Close calls = %d, want 2", fc.calls)
	}
}
