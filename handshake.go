// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import "code.hybscloud.com/recbuf/internal/wire"

// HandshakeHeader is the caller-supplied header for opening a handshake
// write channel. Len nil means the final length is not yet known: the
// header is reserved now and backfilled at Dispatch from the committed
// byte count; such a message cannot be paused. FragOffset/FragLen are DTLS only; FragLen
// nil with Len non-nil means "this fragment runs to the end of the
// message".
type HandshakeHeader struct {
	Type uint8
	Len  *int64

	SeqNr      uint16
	FragOffset int64
	FragLen    *int64
}

func lenMatches(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// readHandshake parses a handshake record's header (TLS: 4 bytes; DTLS:
// 13 bytes) the first time a message is seen, or reattaches the raw
// reader to an already-parsed ExtReader when resuming a TLS message
// paused across a record boundary.
func (d *Driver) readHandshake(rd *Reader, epoch Epoch) error {
	hs := &d.in.hs

	switch hs.phase {
	case hsNone:
		if err := d.parseHandshakeHeader(rd, epoch); err != nil {
			return err
		}
	case hsPaused:
		if d.mode != TLS {
			return ErrInternal
		}
		if epoch != hs.epoch {
			return ErrInvalidContent
		}
	default:
		return ErrOperationUnexpected
	}

	if err := hs.ext.Attach(rd); err != nil {
		return err
	}
	hs.phase = hsActive
	d.in.state = Handshake
	d.in.raw = rd
	d.in.epoch = epoch
	return nil
}

func (d *Driver) parseHandshakeHeader(rd *Reader, epoch Epoch) error {
	hs := &d.in.hs

	if d.mode == TLS {
		b, err := rd.Get(wire.HandshakeHeaderLenTLS, nil)
		if err != nil {
			if err == ErrOutOfData {
				if e := d.l2r.ReadDone(); e != nil {
					return e
				}
				return ErrRetry
			}
			return err
		}
		h, derr := wire.DecodeTLSHandshakeHeader(b)
		if derr != nil {
			return ErrInvalidContent
		}
		if err := rd.Commit(); err != nil {
			return err
		}
		hs.hdrType = h.Type
		hs.msgLen = int64(h.Length)
		hs.epoch = epoch
		hs.ext = NewExtReader(hs.msgLen)
		return nil
	}

	// DTLS: each record is a self-contained fragment; the header never
	// crosses a record boundary, so any OUT_OF_DATA here is fatal.
	b, err := rd.Get(wire.HandshakeHeaderLenDTLS, nil)
	if err != nil {
		return ErrInvalidContent
	}
	h, derr := wire.DecodeDTLSHandshakeHeader(b)
	if derr != nil {
		return ErrInvalidContent
	}
	if uint64(h.FragOffset)+uint64(h.FragLen) > uint64(h.Length) {
		return ErrInvalidContent
	}
	if err := rd.Commit(); err != nil {
		return err
	}
	hs.hdrType = h.Type
	hs.msgLen = int64(h.Length)
	hs.seqNr = h.SeqNr
	hs.fragOffset = int64(h.FragOffset)
	hs.fragLen = int64(h.FragLen)
	hs.epoch = epoch
	hs.ext = NewExtReader(hs.fragLen)
	return nil
}

// WriteHandshake opens a handshake write channel, returning the extended
// writer the caller fills via GetExt/CommitExt. If hdr.Len is nil (in
// DTLS this also requires hdr.FragLen nil), the header is reserved but
// left unfilled until Dispatch learns the final count.
//
// Argument validation happens before any L2 interaction, so an
// ErrInvalidArgument here leaves the Driver's write half completely
// unchanged.
func (d *Driver) WriteHandshake(epoch Epoch, hdr HandshakeHeader) (*ExtWriter, error) {
	hs := &d.out.hs

	if hs.phase == hsPaused {
		if d.mode != TLS {
			return nil, ErrInternal
		}
		if epoch != hs.epoch || hdr.Type != hs.hdrType || !lenMatches(hdr.Len, hs.length) {
			return nil, ErrInvalidArgument
		}
	} else if d.mode == DTLS {
		if hdr.Len == nil && (hdr.FragOffset != 0 || hdr.FragLen != nil) {
			return nil, ErrInvalidArgument
		}
		if hdr.Len != nil {
			if hdr.FragOffset > *hdr.Len {
				return nil, ErrInvalidArgument
			}
			if hdr.FragLen != nil && hdr.FragOffset+*hdr.FragLen > *hdr.Len {
				return nil, ErrInvalidArgument
			}
		}
	}

	if err := d.prepareWrite(Handshake, epoch); err != nil {
		return nil, err
	}

	if hs.phase == hsNone {
		hdrLenBytes := wire.HandshakeHeaderLenTLS
		if d.mode == DTLS {
			hdrLenBytes = wire.HandshakeHeaderLenDTLS
		}
		hdrBuf, err := d.out.raw.Get(hdrLenBytes, nil)
		if err != nil {
			if err == ErrOutOfData {
				return nil, d.retryWriteOpen()
			}
			return nil, err
		}

		hs.hdrType = hdr.Type
		hs.epoch = epoch
		hs.hdrBuf = hdrBuf
		hs.hdrLenBytes = hdrLenBytes
		hs.length = hdr.Len
		var bound int64 = Unknown
		known := false
		if d.mode == TLS {
			if hdr.Len != nil {
				bound, known = *hdr.Len, true
			}
		} else {
			hs.seqNr = hdr.SeqNr
			hs.fragOffset = hdr.FragOffset
			fragLen := hdr.FragLen
			if fragLen == nil && hdr.Len != nil {
				// "Runs to the end of the message": derivable right now from
				// the already-known total length, so this is not actually a
				// deferred-length case at all.
				fl := *hdr.Len - hdr.FragOffset
				fragLen = &fl
			}
			hs.fragLen = fragLen
			if fragLen != nil {
				bound, known = *fragLen, true
			}
		}

		if known {
			if err := d.writeHandshakeHeaderNow(hs); err != nil {
				return nil, err
			}
		}

		hs.ext = NewExtWriter(bound, WithMaxGroups(d.opts.MaxGroups))
		pass := Hold
		if known {
			pass = Pass
		}
		if err := hs.ext.Attach(d.out.raw, pass); err != nil {
			return nil, err
		}
	} else {
		// Resuming a paused TLS message: length was already known (that's
		// a precondition of PauseHandshake), so passthrough resumes Pass.
		if err := hs.ext.Attach(d.out.raw, Pass); err != nil {
			return nil, err
		}
	}

	hs.phase = hsActive
	return hs.ext, nil
}

func (d *Driver) writeHandshakeHeaderNow(hs *handshakeOutState) error {
	if d.mode == TLS {
		return wire.EncodeTLSHandshakeHeader(hs.hdrBuf, wire.TLSHandshakeHeader{
			Type:   hs.hdrType,
			Length: uint32(*hs.length),
		})
	}
	return wire.EncodeDTLSHandshakeHeader(hs.hdrBuf, wire.DTLSHandshakeHeader{
		Type:       hs.hdrType,
		Length:     uint32(*hs.length),
		SeqNr:      hs.seqNr,
		FragOffset: uint32(hs.fragOffset),
		FragLen:    uint32(*hs.fragLen),
	})
}

// dispatchHandshake closes an Active handshake write channel. Unless the
// extended writer is already Blocked by an earlier deliberate partial
// commit (an abandon-a-trailing-reservation case), Dispatch first does
// the equivalent of a full CommitExt: reaching Dispatch with fetched-
// but-uncommitted bytes means "commit everything", not "abandon it". If
// the length was left unknown at open time, it is backfilled from the
// total now-committed byte count and the header is filled in only now.
func (d *Driver) dispatchHandshake() error {
	hs := &d.out.hs
	if !hs.ext.Blocked() {
		if err := hs.ext.CommitExt(); err != nil {
			return err
		}
	}
	if err := hs.ext.CheckDone(); err != nil {
		return ErrUnfinishedHandshakeMessage
	}
	committed, uncommitted := hs.ext.Detach()
	if hs.length == nil {
		hs.length = &committed
		if d.mode == DTLS {
			hs.fragLen = &committed
		}
		if err := d.writeHandshakeHeaderNow(hs); err != nil {
			return err
		}
	}
	if err := d.out.raw.CommitPartial(int(uncommitted)); err != nil {
		return err
	}
	hs.phase = hsNone
	hs.ext = nil
	return nil
}

// PauseHandshake suspends an Active TLS handshake write across a record
// boundary. It requires the message length to already be known: a
// message whose final length is still unknown cannot be paused, since
// the header would have nothing to backfill with on resume.
func (d *Driver) PauseHandshake() error {
	if d.mode != TLS {
		return ErrOperationUnexpected
	}
	hs := &d.out.hs
	if d.out.state != Handshake || hs.phase != hsActive {
		return ErrOperationUnexpected
	}
	if hs.length == nil {
		return ErrInvalidArgument
	}
	_, uncommitted := hs.ext.Detach()
	if err := d.out.raw.CommitPartial(int(uncommitted)); err != nil {
		return err
	}
	d.out.raw = nil
	if err := d.l2w.WriteDone(); err != nil {
		return err
	}
	hs.phase = hsPaused
	d.out.state = None
	return nil
}

// WriteAbortHandshake tears down an open handshake write channel (Active
// or Paused) without emitting anything further. It requires that nothing
// has been committed yet through the extended writer: aborting after
// bytes already reached the wire is a caller bug, not a recoverable
// condition, and the check happens before any mutation so the precondition
// failure leaves the Driver unchanged.
func (d *Driver) WriteAbortHandshake() error {
	hs := &d.out.hs
	if hs.ext == nil {
		return ErrOperationUnexpected
	}
	if hs.ext.Committed() != 0 {
		return ErrOperationUnexpected
	}
	hs.ext.Detach()
	hs.ext = nil
	hs.phase = hsNone
	if d.out.raw != nil {
		d.out.raw = nil
		if err := d.l2w.WriteDone(); err != nil {
			return err
		}
	}
	d.out.state = None
	return nil
}
