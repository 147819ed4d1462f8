// Package iox holds small io cleanup helpers shared across the tree.
package iox

import "io"

// DiscardClose closes c, dropping the error. Meant for defers on resources
// whose close error has no useful recovery path:
//
//	defer iox.DiscardClose(rows)
func DiscardClose(c io.Closer) {
	_ = c.Close()
}

// DiscardErr invokes fn and drops its error. The non-Close counterpart of
// DiscardClose, for calls like Flush in a defer:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) {
	_ = fn()
}

// CloseFunc wraps c.Close in a no-argument function so it can be handed to
// t.Cleanup or b.Cleanup directly:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}
