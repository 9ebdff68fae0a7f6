// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

// ExtReader imposes a single logical size bound over a Reader: the
// remaining bytes of a handshake message (TLS) or a handshake fragment
// (DTLS). Unlike ExtWriter, it carries no nested group stack: reads are
// never grouped, only bounded by the single length learned from the
// record-content header the Driver just parsed.
type ExtReader struct {
	rd *Reader // attached reader, nil when detached

	bound     int64 // logical end offset
	ofsFetch  int64
	ofsCommit int64
}

// NewExtReader returns a detached ExtReader bounded at the given logical
// size.
func NewExtReader(bound int64) *ExtReader {
	e := &ExtReader{}
	e.InitExt(bound)
	return e
}

// InitExt resets e to a fresh bound, detaching any attached reader.
func (e *ExtReader) InitExt(bound int64) {
	e.bound = bound
	e.ofsFetch = 0
	e.ofsCommit = 0
	e.rd = nil
}

// Attach binds e to an underlying reader. Fails if already attached.
func (e *ExtReader) Attach(rd *Reader) error {
	if e.rd != nil {
		return ErrOperationUnexpected
	}
	e.rd = rd
	return nil
}

// Detach unbinds e from its reader, reporting committed and
// fetched-but-uncommitted logical bytes, and drops the latter from the
// logical accounting.
func (e *ExtReader) Detach() (committed, uncommitted int64) {
	committed = e.ofsCommit
	uncommitted = e.ofsFetch - e.ofsCommit
	e.ofsFetch = e.ofsCommit
	e.rd = nil
	return committed, uncommitted
}

// GetExt obtains the next chunk of the logical stream, bounded by e's
// remaining logical size, delegating to the attached reader's Get.
func (e *ExtReader) GetExt(desired int, buflenP *int) ([]byte, error) {
	if e.rd == nil {
		return nil, ErrOperationUnexpected
	}
	logicAvail := e.bound - e.ofsFetch
	if int64(desired) > logicAvail {
		return nil, ErrBoundsViolation
	}
	b, err := e.rd.Get(desired, buflenP)
	if err != nil {
		return nil, err
	}
	e.ofsFetch += int64(len(b))
	return b, nil
}

// CommitPartialExt marks ofsFetch-omit bytes as final and forwards the
// commit to the attached reader.
func (e *ExtReader) CommitPartialExt(omit int64) error {
	if e.rd == nil {
		return ErrOperationUnexpected
	}
	if omit < 0 || omit > e.ofsFetch-e.ofsCommit {
		return ErrBoundsViolation
	}
	if err := e.rd.CommitPartial(int(omit)); err != nil {
		return err
	}
	e.ofsCommit = e.ofsFetch - omit
	e.ofsFetch = e.ofsCommit
	return nil
}

// CommitExt is CommitPartialExt(0).
func (e *ExtReader) CommitExt() error { return e.CommitPartialExt(0) }

// CheckDone succeeds iff every logical byte of the bound has been
// committed.
func (e *ExtReader) CheckDone() error {
	if e.ofsCommit != e.bound {
		return ErrBoundsViolation
	}
	return nil
}

// Remaining reports how many logical bytes are left before the bound.
func (e *ExtReader) Remaining() int64 { return e.bound - e.ofsFetch }
