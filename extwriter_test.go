// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import "testing"

func TestExtWriterKnownSizePassthrough(t *testing.T) {
	w := NewWriter(nil)
	buf := make([]byte, 32)
	if err := w.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	ext := NewExtWriter(10)
	if err := ext.Attach(w, Pass); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	b, err := ext.GetExt(10, nil)
	if err != nil {
		t.Fatalf("GetExt: %v", err)
	}
	copy(b, "0123456789")
	if err := ext.CommitExt(); err != nil {
		t.Fatalf("CommitExt: %v", err)
	}
	if err := ext.CheckDone(); err != nil {
		t.Fatalf("CheckDone: %v", err)
	}
	committed, uncommitted := ext.Detach()
	if committed != 10 || uncommitted != 0 {
		t.Fatalf("Detach = %d, %d, want 10, 0", committed, uncommitted)
	}
	n, err := w.BytesWritten()
	if err != nil || n != 10 {
		t.Fatalf("writer BytesWritten = %d, %v, want 10, nil", n, err)
	}
}

func TestExtWriterBoundsViolation(t *testing.T) {
	w := NewWriter(nil)
	buf := make([]byte, 32)
	if err := w.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	ext := NewExtWriter(4)
	if err := ext.Attach(w, Pass); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if _, err := ext.GetExt(5, nil); err != ErrBoundsViolation {
		t.Fatalf("GetExt(5) over a 4-byte bound = %v, want ErrBoundsViolation", err)
	}
}

func TestExtWriterNestedGroups(t *testing.T) {
	w := NewWriter(nil)
	buf := make([]byte, 32)
	if err := w.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	ext := NewExtWriter(20)
	if err := ext.Attach(w, Pass); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := ext.GroupOpen(8); err != nil {
		t.Fatalf("GroupOpen: %v", err)
	}
	if _, err := ext.GetExt(8, nil); err != nil {
		t.Fatalf("GetExt: %v", err)
	}
	if err := ext.CommitExt(); err != nil {
		t.Fatalf("CommitExt: %v", err)
	}
	if err := ext.GroupClose(); err != nil {
		t.Fatalf("GroupClose: %v", err)
	}

	// Closing a group before its bytes are fetched fails.
	if err := ext.GroupOpen(5); err != nil {
		t.Fatalf("GroupOpen: %v", err)
	}
	if err := ext.GroupClose(); err != ErrBoundsViolation {
		t.Fatalf("GroupClose before reaching bound = %v, want ErrBoundsViolation", err)
	}
}

func TestExtWriterUnknownRootSizeBackfill(t *testing.T) {
	w := NewWriter(nil)
	buf := make([]byte, 64)
	if err := w.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	ext := NewExtWriter(Unknown)
	if err := ext.Attach(w, Hold); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	b, err := ext.GetExt(30, nil)
	if err != nil {
		t.Fatalf("GetExt: %v", err)
	}
	if len(b) != 30 {
		t.Fatalf("len(b) = %d, want 30", len(b))
	}
	if err := ext.CheckDone(); err != nil {
		t.Fatalf("CheckDone with Unknown root size: %v", err)
	}
	committed, uncommitted := ext.Detach()
	if committed != 0 || uncommitted != 30 {
		t.Fatalf("Detach = %d, %d, want 0, 30 (nothing was committed along the way)", committed, uncommitted)
	}
}

func TestExtWriterHoldLatchesBlockedOnPartialCommit(t *testing.T) {
	w := NewWriter(nil)
	buf := make([]byte, 32)
	if err := w.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	ext := NewExtWriter(Unknown)
	if err := ext.Attach(w, Hold); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if _, err := ext.GetExt(10, nil); err != nil {
		t.Fatalf("GetExt: %v", err)
	}
	if err := ext.CommitPartialExt(2); err != nil {
		t.Fatalf("CommitPartialExt: %v", err)
	}
	if _, err := ext.GetExt(1, nil); err != ErrOperationUnexpected {
		t.Fatalf("GetExt after partial commit under Hold = %v, want ErrOperationUnexpected", err)
	}
}
