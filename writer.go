// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

// writerState is the Writer's two-state machine: Providing (no output
// buffer held, waiting for the next one from the provider) and Consuming
// (an output buffer is held and the consumer is writing into it).
type writerState uint8

const (
	providing writerState = iota
	consuming
)

// Writer splices a consumer's variable-size writes across a sequence of
// provider-sized buffers, using an optional overflow queue to absorb a
// write that does not fit in the current buffer.
//
// A Writer's zero value is in Providing state with no overflow queue, the
// same as NewWriter(nil).
//
// State machine:
//
//	Providing --Feed(buf)--> Consuming --Reclaim(force=true), or
//	                                      Reclaim where committed==len(out)--> Providing
//
// Feed may return ErrNeedMore while remaining in Providing, when the
// queue has not yet been fully drained into the supplied buffer.
type Writer struct {
	out []byte // current outgoing buffer, nil when Providing
	queue []byte // optional overflow buffer, nil if absent

	committed int // offset up to which writes are final
	end       int // farthest offset handed out to the consumer

	// queueNext is dual-purpose: in Consuming once end > len(out) it is
	// the overlap length between the tail of out and the head of queue;
	// in Providing it is the read cursor into queue for the next buffer's
	// Feed. A tagged variant would express this more safely, but this
	// keeps one field instead of two mutually-exclusive ones.
	queueNext      int
	queueRemaining int // Providing only: bytes of queue not yet drained

	state writerState
}

// NewWriter returns a Writer in Providing state with the given optional
// overflow queue (nil disables overflow entirely: Get and Reclaim then
// behave as if no queue were configured).
func NewWriter(queue []byte) *Writer {
	w := &Writer{}
	w.Init(queue)
	return w
}

// Init resets w to Providing state with the given overflow queue,
// discarding any in-progress Consuming cycle. Safe to call on a reused
// Writer between connections.
func (w *Writer) Init(queue []byte) {
	w.out = nil
	w.queue = queue
	w.committed = 0
	w.end = 0
	w.queueNext = 0
	w.queueRemaining = 0
	w.state = providing
}

// Idle reports whether w is in Providing state.
func (w *Writer) Idle() bool { return w.state == providing }

// Feed adopts buf as the current outgoing buffer, transitioning
// Providing to Consuming.
//
// If a queue is configured and still holds undrained bytes from a
// previous Reclaim, Feed first copies as much of that overflow as fits
// in buf. If the overflow doesn't fully fit, Feed leaves w in Providing
// and returns ErrNeedMore; the caller must Feed another buffer to finish
// draining before any new data can be accepted.
func (w *Writer) Feed(buf []byte) error {
	if w.state != providing {
		return ErrOperationUnexpected
	}
	copied := 0
	if w.queue != nil && w.queueRemaining > 0 {
		n := w.queueRemaining
		if n > len(buf) {
			n = len(buf)
		}
		copy(buf[:n], w.queue[w.queueNext:w.queueNext+n])
		w.queueNext += n
		w.queueRemaining -= n
		copied = n
		if w.queueRemaining > 0 {
			return ErrNeedMore
		}
		w.queueNext = 0
	}
	w.out = buf
	w.committed = copied
	w.end = copied
	w.state = consuming
	// Note: when the drained overflow exactly fills buf, end == len(out)
	// here. That is a valid Consuming state; the next Get call's
	// "still in out" branch naturally sees avail == 0 and falls through
	// to the queue/truncate branches below instead of misreading it as
	// empty.
	return nil
}

// Get hands out the next chunk of the outgoing buffer (or, once out is
// exhausted, of the overflow queue) for the consumer to write into.
//
// If buflenP is nil, Get requires the full desired length to be
// available and fails with ErrOutOfData otherwise. If buflenP is
// non-nil, Get may return fewer bytes than desired, reporting the actual
// length through *buflenP.
func (w *Writer) Get(desired int, buflenP *int) ([]byte, error) {
	if w.state != consuming {
		return nil, ErrOperationUnexpected
	}
	ol := len(w.out)

	if w.end > ol {
		// Already serving from the queue.
		remaining := len(w.queue) - (w.queueNext + (w.end - ol))
		if remaining < desired {
			if buflenP == nil {
				return nil, ErrOutOfData
			}
			desired = remaining
		}
		start := w.queueNext + (w.end - ol)
		b := w.queue[start : start+desired]
		w.end += desired
		if buflenP != nil {
			*buflenP = desired
		}
		return b, nil
	}

	avail := ol - w.end
	if avail >= desired {
		b := w.out[w.end : w.end+desired]
		w.end += desired
		if buflenP != nil {
			*buflenP = desired
		}
		return b, nil
	}

	if w.queue != nil && len(w.queue) > avail {
		effective := desired
		if effective > len(w.queue) {
			if buflenP == nil {
				return nil, ErrOutOfData
			}
			effective = len(w.queue)
		}
		// The trailing `avail` bytes of out now logically equal the
		// leading `avail` bytes of queue; Commit physically copies them
		// into out when finalizing.
		w.queueNext = avail
		b := w.queue[0:effective]
		w.end += effective
		if buflenP != nil {
			*buflenP = effective
		}
		return b, nil
	}

	// No queue, or the queue adds no usable capacity: truncate to avail.
	if buflenP == nil {
		return nil, ErrOutOfData
	}
	b := w.out[w.end:ol]
	w.end = ol
	if buflenP != nil {
		*buflenP = len(b)
	}
	return b, nil
}

// CommitPartial marks end-omit bytes as final, dropping the trailing
// omit bytes that were handed out but never committed.
func (w *Writer) CommitPartial(omit int) error {
	if w.state != consuming {
		return ErrOperationUnexpected
	}
	if omit < 0 || omit > w.end-w.committed {
		return ErrInvalidArgument
	}
	newCommit := w.end - omit
	ol := len(w.out)

	if w.end > ol && w.committed < ol && newCommit > ol-w.queueNext {
		// Physically fold the queue/out overlap into out so that out
		// holds everything committed up to its own end.
		copy(w.out[ol-w.queueNext:ol], w.queue[0:w.queueNext])
	}
	if newCommit < ol {
		w.queueNext = 0
	}
	w.committed = newCommit
	w.end = newCommit
	return nil
}

// Commit is CommitPartial(0): it marks everything handed out so far as
// final. Calling Commit twice in a row is a no-op the second time.
func (w *Writer) Commit() error { return w.CommitPartial(0) }

// Reclaim returns w to Providing state, reporting how many committed
// bytes physically landed in the outgoing buffer (written) versus spilled
// into the overflow queue (queued) this cycle.
//
// If the committed bytes do not fill out (committed < len(out)) and force
// is false, Reclaim fails with ErrDataLeft and w stays in Consuming,
// unchanged. Passing force=true (or having committed at least len(out)
// bytes) always succeeds.
func (w *Writer) Reclaim(force bool) (written, queued int, err error) {
	if w.state != consuming {
		return 0, 0, ErrOperationUnexpected
	}
	commit := w.committed
	ol := len(w.out)

	if commit <= ol {
		written, queued = commit, 0
		w.queueNext = 0
		if commit < ol && !force {
			return written, queued, ErrDataLeft
		}
	} else {
		w.queueRemaining = commit - ol
		written, queued = ol, commit-ol
	}

	w.committed = 0
	w.end = 0
	w.out = nil
	w.state = providing
	return written, queued, nil
}

// BytesWritten returns the number of bytes committed to the current
// outgoing buffer so far. It requires Consuming state, the one in which
// `committed` is actually meaningful. See also Idle.
func (w *Writer) BytesWritten() (int, error) {
	if w.state != consuming {
		return 0, ErrOperationUnexpected
	}
	return w.committed, nil
}
