// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import (
	"encoding/binary"
	"io"

	"code.hybscloud.com/recbuf/internal/bo"
)

// StreamL2 is a concrete L2Reader/L2Writer pair over a plain io.Reader/
// io.Writer: it frames each record as a compact length-prefixed blob
// carrying a content type and epoch ahead of the payload, the way an
// actual record layer would, so that a Driver can be exercised and
// tested against something resembling a real transport instead of a
// hand-fed byte slice.
//
// The outer per-record framing here is StreamL2's own private wire
// format (content-type byte, epoch, compact length prefix) and is free
// to pick whichever byte order is cheapest, the same freedom the
// teacher's own stream-framing protocol exercised; it uses the host's
// native order via internal/bo. This is unrelated to the content-level
// headers internal/wire encodes, which are always big-endian because
// those are fixed external wire formats, not a private convenience
// framing.
type StreamL2 struct {
	rd io.Reader
	wr io.Writer
	bo binary.ByteOrder

	// read-side per-record state
	rHeader    [11]byte
	rCT        ContentType
	rEpoch     Epoch
	rLen       int64
	rBuf       []byte
	rActive    bool
	rPayloadRd *Reader

	// write-side per-record state
	wHeader [11]byte
	wActive bool
	wWr     *Writer
	wBuf    []byte
	wCT     ContentType
	wEpoch  Epoch
}

const (
	l2HeaderMinLen   = 1 + 2 // content type + epoch
	l2LenMaxShort    = 1<<8 - 3
	l2LenExtU16Tag   = l2LenMaxShort + 1
	l2LenExtU56Tag   = l2LenMaxShort + 2
	l2LenMaxU16      = 1<<16 - 1
	l2LenMaxU56      = 1<<56 - 1
	l2DefaultBufSize = 16 * 1024
)

// NewStreamL2 returns a StreamL2 that reads records from r and writes
// records to w, each record framed with its own length prefix.
func NewStreamL2(r io.Reader, w io.Writer) *StreamL2 {
	return &StreamL2{
		rd: r,
		wr: w,
		bo: bo.Native(),
	}
}

func (s *StreamL2) readFull(p []byte) error {
	n := 0
	for n < len(p) {
		rn, err := s.rd.Read(p[n:])
		if rn == 0 && err == nil {
			return io.ErrNoProgress
		}
		n += rn
		if err != nil {
			if err == io.EOF && n == len(p) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *StreamL2) writeFull(p []byte) error {
	n := 0
	for n < len(p) {
		wn, err := s.wr.Write(p[n:])
		if wn == 0 && err == nil {
			return io.ErrShortWrite
		}
		n += wn
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadStart reads one full record from the underlying reader, parsing
// its content-type/epoch/length prefix, and returns a Reader fed with
// the record's payload.
func (s *StreamL2) ReadStart() (ct ContentType, epoch Epoch, rd *Reader, err error) {
	if s.rActive {
		return None, 0, nil, ErrOperationUnexpected
	}

	if err := s.readFull(s.rHeader[:l2HeaderMinLen+1]); err != nil {
		return None, 0, nil, err
	}
	s.rCT = ContentType(s.rHeader[0])
	s.rEpoch = Epoch(s.bo.Uint16(s.rHeader[1:3]))
	lenTag := s.rHeader[3]

	var exLen int
	switch lenTag {
	case l2LenExtU16Tag:
		exLen = 2
	case l2LenExtU56Tag:
		exLen = 7
	}
	if exLen > 0 {
		if err := s.readFull(s.rHeader[4 : 4+exLen]); err != nil {
			return None, 0, nil, err
		}
	}

	switch {
	case lenTag == l2LenExtU16Tag:
		s.rLen = int64(s.bo.Uint16(s.rHeader[4:6]))
	case lenTag == l2LenExtU56Tag:
		var buf [8]byte
		copy(buf[1:], s.rHeader[4:11])
		u64 := s.bo.Uint64(buf[:])
		if s.bo == binary.LittleEndian {
			s.rLen = int64(u64 >> 8)
		} else {
			s.rLen = int64(u64 & l2LenMaxU56)
		}
	default:
		s.rLen = int64(lenTag)
	}
	if s.rLen < 0 || s.rLen > l2LenMaxU56 {
		return None, 0, nil, ErrInvalidContent
	}

	if cap(s.rBuf) < int(s.rLen) {
		s.rBuf = make([]byte, s.rLen)
	}
	payload := s.rBuf[:s.rLen]
	if err := s.readFull(payload); err != nil {
		return None, 0, nil, err
	}

	if s.rPayloadRd == nil {
		s.rPayloadRd = NewReader()
	}
	if err := s.rPayloadRd.Feed(payload); err != nil {
		return None, 0, nil, err
	}

	s.rActive = true
	return s.rCT, s.rEpoch, s.rPayloadRd, nil
}

// ReadDone reclaims the record's payload Reader, discarding any
// uncommitted tail, and returns StreamL2 to a state ready for the next
// ReadStart.
func (s *StreamL2) ReadDone() error {
	if !s.rActive {
		return ErrOperationUnexpected
	}
	if _, err := s.rPayloadRd.Reclaim(true); err != nil {
		return err
	}
	s.rActive = false
	return nil
}

// WriteStart begins a new outgoing record of the given content type and
// epoch, buffering its payload until WriteDone flushes the framed
// record to the underlying writer.
func (s *StreamL2) WriteStart(ct ContentType, epoch Epoch) (*Writer, error) {
	if s.wActive {
		return nil, ErrOperationUnexpected
	}
	if s.wWr == nil {
		s.wWr = NewWriter(nil)
	} else {
		s.wWr.Init(nil)
	}
	s.wBuf = make([]byte, l2DefaultBufSize)
	if err := s.wWr.Feed(s.wBuf); err != nil {
		return nil, err
	}
	s.wCT = ct
	s.wEpoch = epoch
	s.wActive = true
	return s.wWr, nil
}

// WriteDone finalizes the current outgoing record: it commits any
// outstanding bytes, frames the committed payload with its length
// prefix, and writes the whole record to the underlying writer.
func (s *StreamL2) WriteDone() error {
	if !s.wActive {
		return ErrOperationUnexpected
	}
	if err := s.wWr.Commit(); err != nil {
		return err
	}
	n, _, err := s.wWr.Reclaim(true)
	if err != nil {
		return err
	}

	s.wHeader[0] = byte(s.wCT)
	s.bo.PutUint16(s.wHeader[1:3], uint16(s.wEpoch))

	var hdrLen int
	switch {
	case n <= l2LenMaxShort:
		s.wHeader[3] = byte(n)
		hdrLen = l2HeaderMinLen + 1
	case n <= l2LenMaxU16:
		s.wHeader[3] = l2LenExtU16Tag
		s.bo.PutUint16(s.wHeader[4:6], uint16(n))
		hdrLen = l2HeaderMinLen + 1 + 2
	default:
		s.wHeader[3] = l2LenExtU56Tag
		var buf [8]byte
		if s.bo == binary.LittleEndian {
			s.bo.PutUint64(buf[:], uint64(n)<<8)
		} else {
			s.bo.PutUint64(buf[:], uint64(n)&l2LenMaxU56)
		}
		copy(s.wHeader[4:11], buf[1:])
		hdrLen = l2HeaderMinLen + 1 + 7
	}

	if err := s.writeFull(s.wHeader[:hdrLen]); err != nil {
		return err
	}
	// s.wWr's buffer was reclaimed above; Reclaim does not hand the
	// committed bytes back, but they are still sitting in the buffer we
	// fed it.
	if err := s.writeFull(s.wBuf[:n]); err != nil {
		return err
	}

	s.wActive = false
	return nil
}

// WriteFlush is a no-op for StreamL2: every WriteDone already writes its
// record straight through to the underlying writer.
func (s *StreamL2) WriteFlush() error { return nil }
