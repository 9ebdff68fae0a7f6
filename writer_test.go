// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import "testing"

func TestWriterBasicFeedGetCommitReclaim(t *testing.T) {
	w := NewWriter(nil)
	if !w.Idle() {
		t.Fatal("new writer should be Idle")
	}
	buf := make([]byte, 16)
	if err := w.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if w.Idle() {
		t.Fatal("writer should not be Idle after Feed")
	}

	b, err := w.Get(5, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	copy(b, "hello")
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	n, err := w.BytesWritten()
	if err != nil || n != 5 {
		t.Fatalf("BytesWritten = %d, %v, want 5, nil", n, err)
	}

	written, queued, err := w.Reclaim(true)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if written != 5 || queued != 0 {
		t.Fatalf("Reclaim = %d, %d, want 5, 0", written, queued)
	}
	if !w.Idle() {
		t.Fatal("writer should be Idle after Reclaim")
	}
	if string(buf[:5]) != "hello" {
		t.Fatalf("buf = %q, want hello", buf[:5])
	}
}

func TestWriterReclaimDataLeft(t *testing.T) {
	w := NewWriter(nil)
	buf := make([]byte, 16)
	if err := w.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if _, err := w.Get(4, nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, _, err := w.Reclaim(false); err != ErrDataLeft {
		t.Fatalf("Reclaim force=false with uncommitted bytes = %v, want ErrDataLeft", err)
	}
	// Object is unchanged: still Consuming, can still commit and reclaim.
	// The 4 committed bytes still do not fill out, so the reclaim is forced.
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, _, err := w.Reclaim(true); err != nil {
		t.Fatalf("Reclaim after Commit: %v", err)
	}
}

func TestWriterOverflowQueueSpillAndDrain(t *testing.T) {
	queue := make([]byte, 32)
	w := NewWriter(queue)
	buf := make([]byte, 8)
	if err := w.Feed(buf); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	// Ask for more than fits in out; with a queue configured, Get spills
	// into it rather than truncating.
	b, err := w.Get(20, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(b) != 20 {
		t.Fatalf("len(b) = %d, want 20", len(b))
	}
	copy(b, "0123456789abcdefghij")

	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	written, queued, err := w.Reclaim(false)
	if err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if written != 8 || queued != 12 {
		t.Fatalf("Reclaim = %d, %d, want 8, 12", written, queued)
	}
	if string(buf) != "01234567" {
		t.Fatalf("buf = %q, want 01234567", buf)
	}

	// Feed a fresh buffer too small to drain the remaining 12 queued bytes.
	buf2 := make([]byte, 5)
	if err := w.Feed(buf2); err != ErrNeedMore {
		t.Fatalf("Feed(undersized) = %v, want ErrNeedMore", err)
	}
	if !w.Idle() {
		t.Fatal("writer should remain Idle while draining the queue")
	}
	if string(buf2) != "89abc" {
		t.Fatalf("buf2 = %q, want 89abc", buf2)
	}

	// Finish draining.
	buf3 := make([]byte, 16)
	if err := w.Feed(buf3); err != nil {
		t.Fatalf("Feed(final): %v", err)
	}
	if string(buf3[:7]) != "defghij" {
		t.Fatalf("buf3[:7] = %q, want defghij", buf3[:7])
	}
}

func TestWriterPreconditionViolationsLeaveStateUnchanged(t *testing.T) {
	w := NewWriter(nil)
	if _, err := w.Get(1, nil); err != ErrOperationUnexpected {
		t.Fatalf("Get on Idle writer = %v, want ErrOperationUnexpected", err)
	}
	if err := w.CommitPartial(0); err != ErrOperationUnexpected {
		t.Fatalf("CommitPartial on Idle writer = %v, want ErrOperationUnexpected", err)
	}
	if !w.Idle() {
		t.Fatal("writer should still be Idle after rejected operations")
	}
}
