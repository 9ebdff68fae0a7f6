// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package recbuf implements the record-content framing driver (L3) on
// top of the Writer/Reader buffer splicers and their ExtWriter/ExtReader
// bookkeeping layers: it parses and emits handshake, alert, and
// change-cipher-spec record content for a (D)TLS-shaped protocol stack,
// mediating every interaction with an L2 record-layer collaborator.
package recbuf

import "go.uber.org/zap"

// Alert is a parsed alert record's two fields.
type Alert struct {
	Level uint8
	Type  uint8
}

// hsPhase is the handshake sub-state machine shared by the in and out
// halves: None (no handshake message open), Active (one is being
// read/written through its extended reader/writer), Paused (TLS only:
// suspended across a record boundary, extended reader/writer retained).
type hsPhase uint8

const (
	hsNone hsPhase = iota
	hsActive
	hsPaused
)

type handshakeInState struct {
	phase hsPhase
	ext   *ExtReader
	epoch Epoch

	hdrType    uint8
	msgLen     int64 // TLS: total message length; DTLS: header's `length` field (informational)
	seqNr      uint16
	fragOffset int64
	fragLen    int64 // DTLS: the ext reader's bound
}

type handshakeOutState struct {
	phase hsPhase
	ext   *ExtWriter
	epoch Epoch

	hdrType     uint8
	length      *int64 // nil means the final length is not yet known, backfilled at Dispatch
	seqNr       uint16
	fragOffset  int64
	fragLen     *int64 // DTLS only; nil means not yet known, backfilled at Dispatch
	hdrBuf      []byte // reserved header slice, filled immediately if length known, backfilled otherwise
	hdrLenBytes int
}

// inHalf and outHalf hold the per-direction channel state of the in and
// out sides: which content type is currently open, and (out only) whether an
// L2 flush has been requested before the next dispatch.
type inHalf struct {
	state ContentType
	raw   *Reader
	epoch Epoch
	hs    handshakeInState
	alert Alert
}

type outHalf struct {
	state    ContentType
	raw      *Writer
	epoch    Epoch
	hs       handshakeOutState
	clearing bool
}

// Driver is the L3 record-content framing driver: it owns the in/out
// handshake sub-state and mediates every interaction with L2.
type Driver struct {
	l2r  L2Reader
	l2w  L2Writer
	mode Mode
	opts Options

	in  inHalf
	out outHalf
}

// NewDriver constructs a Driver over the given L2 collaborators for the
// given protocol mode (TLS or DTLS).
func NewDriver(l2r L2Reader, l2w L2Writer, mode Mode, opts ...Option) *Driver {
	return &Driver{
		l2r:  l2r,
		l2w:  l2w,
		mode: mode,
		opts: resolveOptions(opts),
	}
}

func (d *Driver) log() *zap.Logger { return d.opts.Logger }

// Read drives one read pass: it starts an L2 record, dispatches on its
// content type, and (for Alert/CCS/Handshake) parses the fixed-format
// record-content header before committing the channel as open.
//
// Read fails with ErrOperationUnexpected if a channel is already open on
// the read half; callers must ReadConsume (or, for a TLS handshake,
// ReadPauseHandshake) first.
func (d *Driver) Read() error {
	if d.in.state != None {
		return ErrOperationUnexpected
	}

	ct, epoch, rd, err := d.l2r.ReadStart()
	if err != nil {
		return err
	}

	switch ct {
	case Application:
		d.in.state = Application
		d.in.raw = rd
		d.in.epoch = epoch
		return nil
	case Ack:
		// Logged and rejected in this version; app data is surfaced
		// through the direct Application reader handle instead. The raw
		// reader obtained above is simply abandoned: this is a fatal
		// content error, and the driver's state is unspecified until the
		// caller tears down.
		d.log().Warn("rejecting ack record", zap.Uint16("epoch", uint16(epoch)))
		return ErrInvalidContent
	case Alert:
		return d.readAlert(rd, epoch)
	case CCS:
		return d.readCCS(rd, epoch)
	case Handshake:
		return d.readHandshake(rd, epoch)
	default:
		return ErrInternal
	}
}

// ReadConsume closes the current read channel: for Handshake it checks
// the extended reader reached its bound (ErrUnfinishedHandshakeMessage
// otherwise) and detaches it; other content types were already committed
// by their parser. On success it releases the L2 record via ReadDone; an
// unfinished handshake returns before the record is released.
func (d *Driver) ReadConsume() error {
	switch d.in.state {
	case None:
		return ErrOperationUnexpected
	case Handshake:
		hs := &d.in.hs
		if err := hs.ext.CheckDone(); err != nil {
			d.log().Debug("handshake message consumed before reaching its bound",
				zap.Uint8("type", hs.hdrType))
			return ErrUnfinishedHandshakeMessage
		}
		hs.ext.Detach()
		hs.ext = nil
		hs.phase = hsNone
	}
	d.in.raw = nil
	d.in.state = None
	return d.l2r.ReadDone()
}

// ReadPauseHandshake suspends an Active TLS handshake read across a
// record boundary: it detaches the raw reader from the extended reader
// (keeping the extended reader and its remaining bound), releases the
// L2 record, and marks the handshake sub-state Paused. DTLS has no
// pause: each record carries a self-contained fragment.
func (d *Driver) ReadPauseHandshake() error {
	if d.mode != TLS {
		return ErrOperationUnexpected
	}
	if d.in.state != Handshake || d.in.hs.phase != hsActive {
		return ErrOperationUnexpected
	}
	d.in.hs.ext.Detach()
	if err := d.l2r.ReadDone(); err != nil {
		return err
	}
	d.in.hs.phase = hsPaused
	d.in.state = None
	d.in.raw = nil
	return nil
}

// CurrentAlert returns the most recently parsed alert, valid while the
// read channel's state is Alert.
func (d *Driver) CurrentAlert() (Alert, bool) {
	if d.in.state != Alert {
		return Alert{}, false
	}
	return d.in.alert, true
}

// ApplicationReader returns the raw reader for a currently open
// Application read channel, for the caller to read application data
// directly; app data is surfaced through this reader handle rather than
// through the channel-commit mechanism the other content types use.
func (d *Driver) ApplicationReader() (*Reader, bool) {
	if d.in.state != Application {
		return nil, false
	}
	return d.in.raw, true
}

// HandshakeInfo describes the currently open handshake read channel's
// parsed header fields.
type HandshakeInfo struct {
	Type   uint8
	Length int64 // TLS: total message length; DTLS: this fragment's length

	// DTLS only.
	SeqNr      uint16
	FragOffset int64
	TotalLength int64 // DTLS: the header's total message length field
}

// HandshakeReader returns the extended reader and parsed header for a
// currently open Handshake read channel.
func (d *Driver) HandshakeReader() (*ExtReader, HandshakeInfo, bool) {
	if d.in.state != Handshake {
		return nil, HandshakeInfo{}, false
	}
	hs := &d.in.hs
	info := HandshakeInfo{Type: hs.hdrType}
	if d.mode == DTLS {
		info.Length = hs.fragLen
		info.SeqNr = hs.seqNr
		info.FragOffset = hs.fragOffset
		info.TotalLength = hs.msgLen
	} else {
		info.Length = hs.msgLen
	}
	return hs.ext, info, true
}

// prepareWrite begins an L2 record of the given content type and epoch,
// honoring the interleaving policy and draining any pending flush first.
func (d *Driver) prepareWrite(ct ContentType, epoch Epoch) error {
	if d.out.state != None {
		return ErrOperationUnexpected
	}
	if !d.opts.AllowInterleaving && d.out.hs.phase == hsPaused && ct != Handshake {
		return ErrNoInterleaving
	}
	if err := d.checkClear(); err != nil {
		return err
	}
	wr, err := d.l2w.WriteStart(ct, epoch)
	if err != nil {
		return err
	}
	d.out.raw = wr
	d.out.state = ct
	d.out.epoch = epoch
	return nil
}

func (d *Driver) checkClear() error {
	if !d.out.clearing {
		return nil
	}
	if err := d.l2w.WriteFlush(); err != nil {
		return err
	}
	d.out.clearing = false
	return nil
}

// retryWriteOpen abandons the just-opened write channel after a header
// (or alert/CCS payload) failed to fit in the current record, requesting
// an L2 flush before the caller's retry opens a fresh record.
func (d *Driver) retryWriteOpen() error {
	d.log().Debug("write channel open did not fit current record, retrying",
		zap.String("content_type", d.out.state.String()))
	d.out.clearing = true
	d.out.state = None
	d.out.raw = nil
	if err := d.l2w.WriteDone(); err != nil {
		return err
	}
	return ErrRetry
}

// WriteAlert opens, fills, and dispatches a 2-byte alert record.
func (d *Driver) WriteAlert(epoch Epoch, level, description uint8) error {
	if err := d.prepareWrite(Alert, epoch); err != nil {
		return err
	}
	b, err := d.out.raw.Get(alertLen, nil)
	if err != nil {
		if err == ErrOutOfData {
			return d.retryWriteOpen()
		}
		return err
	}
	if err := encodeAlert(b, level, description); err != nil {
		return err
	}
	return d.Dispatch()
}

// WriteCCS opens, fills, and dispatches a 1-byte change-cipher-spec
// record.
func (d *Driver) WriteCCS(epoch Epoch) error {
	if err := d.prepareWrite(CCS, epoch); err != nil {
		return err
	}
	b, err := d.out.raw.Get(ccsLen, nil)
	if err != nil {
		if err == ErrOutOfData {
			return d.retryWriteOpen()
		}
		return err
	}
	if err := encodeCCS(b); err != nil {
		return err
	}
	return d.Dispatch()
}

// OpenApplication opens an Application write channel and returns the raw
// writer for the caller to fill and commit directly; Dispatch then closes
// the channel without an additional commit.
func (d *Driver) OpenApplication(epoch Epoch) (*Writer, error) {
	if err := d.prepareWrite(Application, epoch); err != nil {
		return nil, err
	}
	return d.out.raw, nil
}

// Dispatch closes the current write channel. Alert/CCS commit their raw
// writer; Application has nothing left to commit (the caller already
// did); Handshake backfills the header if its length was deferred and
// performs the single commit that finalizes header and body together.
func (d *Driver) Dispatch() error {
	switch d.out.state {
	case None:
		return ErrOperationUnexpected
	case Handshake:
		if err := d.dispatchHandshake(); err != nil {
			return err
		}
	case Alert, CCS:
		if err := d.out.raw.Commit(); err != nil {
			return err
		}
	case Application:
		// Nothing to commit; the caller committed directly.
	default:
		return ErrInternal
	}
	d.out.raw = nil
	d.out.state = None
	return d.l2w.WriteDone()
}

// Flush requests an L2 flush, draining it immediately.
func (d *Driver) Flush() error {
	d.out.clearing = true
	return d.checkClear()
}
