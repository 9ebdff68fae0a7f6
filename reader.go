// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

// readerState mirrors writerState for the read side.
type readerState uint8

const (
	rProviding readerState = iota
	rConsuming
)

// Reader splices a consumer's variable-size reads across a sequence of
// provider-sized incoming buffers.
//
// Reader is the concrete implementation of the read-side collaborator
// described only at the interface level by L2Reader: it is symmetric to
// Writer in state machine and commit/reclaim semantics, but it carries no
// overflow queue. Each incoming buffer is handed to the consumer exactly
// once; a Get that asks for more than the current buffer holds returns
// ErrOutOfData rather than spilling into a queue, because on the read
// side "more data" can only come from the next L2 record, not from
// anything this type can buffer up front. The content-framing driver is
// the layer that decides what ErrOutOfData means (retry the record in
// TLS mode, fail the content in DTLS mode).
type Reader struct {
	in []byte // current incoming buffer, nil when Providing

	committed int
	end       int

	state readerState
}

// NewReader returns a Reader in Providing state.
func NewReader() *Reader {
	r := &Reader{}
	r.Init()
	return r
}

// Init resets r to Providing state, discarding any in-progress Consuming
// cycle.
func (r *Reader) Init() {
	r.in = nil
	r.committed = 0
	r.end = 0
	r.state = rProviding
}

// Idle reports whether r is in Providing state.
func (r *Reader) Idle() bool { return r.state == rProviding }

// Feed adopts buf as the current incoming buffer, transitioning
// Providing to Consuming.
func (r *Reader) Feed(buf []byte) error {
	if r.state != rProviding {
		return ErrOperationUnexpected
	}
	r.in = buf
	r.committed = 0
	r.end = 0
	r.state = rConsuming
	return nil
}

// Get hands out the next chunk of the incoming buffer for the consumer
// to read from.
//
// If buflenP is nil, Get requires the full desired length to be
// available and fails with ErrOutOfData otherwise (the record-boundary
// signal the content-framing driver treats as retry-or-fatal). If
// buflenP is non-nil, Get may return fewer bytes than desired, reporting
// the actual length through *buflenP.
func (r *Reader) Get(desired int, buflenP *int) ([]byte, error) {
	if r.state != rConsuming {
		return nil, ErrOperationUnexpected
	}
	avail := len(r.in) - r.end
	if avail < desired {
		if buflenP == nil {
			return nil, ErrOutOfData
		}
		desired = avail
	}
	b := r.in[r.end : r.end+desired]
	r.end += desired
	if buflenP != nil {
		*buflenP = desired
	}
	return b, nil
}

// CommitPartial marks end-omit bytes as consumed for good, dropping the
// trailing omit bytes that were handed out but never committed.
func (r *Reader) CommitPartial(omit int) error {
	if r.state != rConsuming {
		return ErrOperationUnexpected
	}
	if omit < 0 || omit > r.end-r.committed {
		return ErrInvalidArgument
	}
	r.committed = r.end - omit
	r.end = r.committed
	return nil
}

// Commit is CommitPartial(0).
func (r *Reader) Commit() error { return r.CommitPartial(0) }

// Reclaim returns r to Providing state, reporting how many bytes were
// committed this cycle.
//
// If uncommitted bytes remain and force is false, Reclaim fails with
// ErrDataLeft and r stays in Consuming, unchanged. Any uncommitted tail
// is dropped on a forced Reclaim: there is nowhere for it to go, since
// record boundaries belong to L2, not to this type.
func (r *Reader) Reclaim(force bool) (written int, err error) {
	if r.state != rConsuming {
		return 0, ErrOperationUnexpected
	}
	if r.committed < len(r.in) && !force {
		return r.committed, ErrDataLeft
	}
	written = r.committed
	r.in = nil
	r.committed = 0
	r.end = 0
	r.state = rProviding
	return written, nil
}

// BytesRead returns the number of bytes committed from the current
// incoming buffer so far. Requires Consuming state; see Writer.BytesWritten
// for the symmetric design rationale.
func (r *Reader) BytesRead() (int, error) {
	if r.state != rConsuming {
		return 0, ErrOperationUnexpected
	}
	return r.committed, nil
}
