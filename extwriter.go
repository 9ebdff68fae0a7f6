// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import "math"

// Unknown is the sentinel logical size meaning "not known yet": the root
// group of an ExtWriter initialized with Unknown defers its final size:
// CheckDone accepts any committed amount, and Detach's committed count
// reports how much landed.
//
// An option type could represent this instead of a sentinel; ExtWriter
// keeps the sentinel (max int64) because its group stack is a flat
// []int64 and boxing every entry to carry an "unknown" tag would cost
// more clarity than it buys. See rootUnknown below for where the
// distinction actually has to be tracked explicitly, since Unknown
// itself can never compare equal to a real ofsCommit.
const Unknown int64 = math.MaxInt64

// Passthrough governs how ExtWriter commits propagate to the writer it
// is attached to.
type Passthrough uint8

const (
	// Pass forwards every commit to the underlying writer immediately.
	Pass Passthrough = iota
	// Hold accounts commits locally without forwarding; a partial commit
	// (one with omit > 0) latches the ExtWriter into Blocked.
	Hold
	// Blocked forbids any further Get/Commit until Detach/Attach.
	Blocked
)

// ExtWriter imposes a hierarchical, size-bounded logical view over a
// Writer: a stack of nested groups, each a byte-range sub-bound of its
// parent, with the root group's size either fixed up front or left
// Unknown until the caller learns it from how much was actually written
// (the mechanism a header-length backfill needs).
//
// ExtWriter's own offsets (ofsFetch, ofsCommit) track bytes handed out
// and committed from the *logical* stream; the attached Writer tracks
// bytes in the *physical* provider-buffer stream. Get/Commit on ExtWriter
// always delegate to the attached Writer (when Pass) to keep the two
// advancing together.
type ExtWriter struct {
	wr *Writer // attached writer, nil when detached

	grpEnd      []int64 // grpEnd[0..=curGrp], weakly descending
	curGrp      int
	rootUnknown bool

	ofsFetch  int64
	ofsCommit int64

	passthrough Passthrough
	maxGroups   int
}

// NewExtWriter returns a detached ExtWriter with the given root logical
// size (or Unknown), ready for Attach.
func NewExtWriter(size int64, opts ...Option) *ExtWriter {
	o := resolveOptions(opts)
	e := &ExtWriter{maxGroups: o.MaxGroups}
	e.InitExt(size)
	return e
}

// InitExt resets e to a fresh root group of the given logical size (or
// Unknown), detaching any currently attached writer without propagating
// its in-flight state.
func (e *ExtWriter) InitExt(size int64) {
	if e.maxGroups <= 0 {
		e.maxGroups = defaultMaxGroups
	}
	e.grpEnd = make([]int64, e.maxGroups)
	e.grpEnd[0] = size
	e.rootUnknown = size == Unknown
	e.curGrp = 0
	e.ofsFetch = 0
	e.ofsCommit = 0
	e.passthrough = Pass
	e.wr = nil
}

// Attach binds e to an underlying writer with the given commit
// propagation policy. Fails if e is already attached.
func (e *ExtWriter) Attach(wr *Writer, pass Passthrough) error {
	if e.wr != nil {
		return ErrOperationUnexpected
	}
	e.wr = wr
	e.passthrough = pass
	return nil
}

// Detach unbinds e from its writer, reporting the bytes committed from
// the logical stream and the bytes fetched-but-not-committed, which are
// dropped from the logical accounting (ofsFetch resets to ofsCommit).
func (e *ExtWriter) Detach() (committed, uncommitted int64) {
	committed = e.ofsCommit
	uncommitted = e.ofsFetch - e.ofsCommit
	e.ofsFetch = e.ofsCommit
	e.wr = nil
	return committed, uncommitted
}

// GetExt obtains the next chunk of the logical stream, bounded by the
// innermost open group, delegating to the attached writer's Get.
func (e *ExtWriter) GetExt(desired int, buflenP *int) ([]byte, error) {
	if e.wr == nil || e.passthrough == Blocked {
		return nil, ErrOperationUnexpected
	}
	logicAvail := e.grpEnd[e.curGrp] - e.ofsFetch
	if int64(desired) > logicAvail {
		return nil, ErrBoundsViolation
	}
	b, err := e.wr.Get(desired, buflenP)
	if err != nil {
		return nil, err
	}
	e.ofsFetch += int64(len(b))
	return b, nil
}

// CommitPartialExt marks ofsFetch-omit bytes as final in the logical
// stream. Under Pass, this forwards CommitPartial(omit) to the attached
// writer and immediately re-syncs ofsFetch to ofsCommit. Under Hold, a
// partial commit (omit > 0) latches e into Blocked instead of
// forwarding, so that the caller can defer the physical commit until a
// header field learned only now (e.g. a final length) has been written
// back — see Driver.Dispatch.
func (e *ExtWriter) CommitPartialExt(omit int64) error {
	if e.wr == nil || e.passthrough == Blocked {
		return ErrOperationUnexpected
	}
	if omit < 0 || omit > e.ofsFetch-e.ofsCommit {
		return ErrBoundsViolation
	}
	e.ofsCommit = e.ofsFetch - omit
	switch e.passthrough {
	case Pass:
		if err := e.wr.CommitPartial(int(omit)); err != nil {
			return err
		}
		e.ofsFetch = e.ofsCommit
	case Hold:
		if omit > 0 {
			e.passthrough = Blocked
		}
	}
	return nil
}

// CommitExt is CommitPartialExt(0).
func (e *ExtWriter) CommitExt() error { return e.CommitPartialExt(0) }

// GroupOpen pushes a new nested group of the given logical size, bounded
// by the currently innermost group's remaining space.
func (e *ExtWriter) GroupOpen(size int64) error {
	if e.curGrp == e.maxGroups-1 {
		return ErrTooManyGroups
	}
	if size > e.grpEnd[e.curGrp]-e.ofsFetch {
		return ErrBoundsViolation
	}
	e.grpEnd[e.curGrp+1] = e.ofsFetch + size
	e.curGrp++
	return nil
}

// GroupClose pops the innermost group. It fails unless ofsFetch has
// reached exactly that group's end.
func (e *ExtWriter) GroupClose() error {
	if e.grpEnd[e.curGrp] != e.ofsFetch {
		return ErrBoundsViolation
	}
	if e.curGrp > 0 {
		e.curGrp--
	}
	return nil
}

// Blocked reports whether e is latched into the Blocked passthrough
// state by a prior partial commit under Hold.
func (e *ExtWriter) Blocked() bool { return e.passthrough == Blocked }

// Committed reports the logical bytes committed so far, for callers that
// need to assert a precondition (e.g. WriteAbortHandshake's "nothing
// committed yet") without mutating state the way Detach does.
func (e *ExtWriter) Committed() int64 { return e.ofsCommit }

// CheckDone succeeds iff all groups are closed and (the root size was
// Unknown, or every logical byte of the root group has been committed).
func (e *ExtWriter) CheckDone() error {
	if e.curGrp != 0 {
		return ErrBoundsViolation
	}
	if !e.rootUnknown && e.ofsCommit != e.grpEnd[0] {
		return ErrBoundsViolation
	}
	return nil
}
