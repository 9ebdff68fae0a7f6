// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire encodes and decodes the bit-exact record-content headers
// that the content-framing driver parses and emits: the TLS and DTLS
// handshake headers, the alert header, and the change-cipher-spec byte.
//
// All multi-byte integer fields are big-endian (network byte order), per
// the wire formats fixed by the protocols this package serves; there is
// no byte-order choice here, unlike StreamL2's private record framing,
// which uses the host's native order via internal/bo.
package wire

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/cryptobyte"
)

// ErrShort reports that the supplied byte slice did not hold a complete
// header. The Driver fetches a full-length slice before decoding, so in
// this module a truncated header surfaces earlier as ErrOutOfData from
// Reader.Get; the Driver maps any decode error here to ErrInvalidContent.
var ErrShort = errors.New("wire: header incomplete")

// ErrMalformed reports that the supplied bytes violate the wire format
// (not a truncation): a field out of range or a structural invariant
// broken at the byte level.
var ErrMalformed = errors.New("wire: malformed header")

// HandshakeHeaderLenTLS is the size in bytes of a TLS handshake header:
// type:u8 | length:u24.
const HandshakeHeaderLenTLS = 4

// HandshakeHeaderLenDTLS is the size in bytes of a DTLS handshake header:
// type:u8 | length:u24 | seq:u16 | frag_off:u24 | frag_len:u24.
const HandshakeHeaderLenDTLS = 13

// AlertLen is the size in bytes of an alert: level:u8 | description:u8.
const AlertLen = 2

// CCSLen is the size in bytes of a change-cipher-spec record: a single
// byte whose value must be 1.
const CCSLen = 1

// TLSHandshakeHeader is the parsed form of a TLS handshake header.
type TLSHandshakeHeader struct {
	Type   uint8
	Length uint32 // fits in 24 bits; see EncodeTLSHandshakeHeader
}

// EncodeTLSHandshakeHeader writes a 4-byte TLS handshake header into dst,
// which must be at least HandshakeHeaderLenTLS bytes long.
func EncodeTLSHandshakeHeader(dst []byte, h TLSHandshakeHeader) error {
	if len(dst) < HandshakeHeaderLenTLS {
		return ErrShort
	}
	if h.Length > 1<<24-1 {
		return ErrMalformed
	}
	var b cryptobyte.Builder
	b.AddUint8(h.Type)
	b.AddUint24(h.Length)
	out, err := b.Bytes()
	if err != nil {
		return err
	}
	copy(dst, out)
	return nil
}

// DecodeTLSHandshakeHeader parses a 4-byte TLS handshake header from src.
func DecodeTLSHandshakeHeader(src []byte) (TLSHandshakeHeader, error) {
	if len(src) < HandshakeHeaderLenTLS {
		return TLSHandshakeHeader{}, ErrShort
	}
	s := cryptobyte.String(src[:HandshakeHeaderLenTLS])
	var h TLSHandshakeHeader
	if !s.ReadUint8(&h.Type) || !s.ReadUint24(&h.Length) {
		return TLSHandshakeHeader{}, ErrMalformed
	}
	return h, nil
}

// DTLSHandshakeHeader is the parsed form of a DTLS handshake header.
type DTLSHandshakeHeader struct {
	Type       uint8
	Length     uint32 // u24
	SeqNr      uint16
	FragOffset uint32 // u24
	FragLen    uint32 // u24
}

// EncodeDTLSHandshakeHeader writes a 13-byte DTLS handshake header into
// dst, which must be at least HandshakeHeaderLenDTLS bytes long.
func EncodeDTLSHandshakeHeader(dst []byte, h DTLSHandshakeHeader) error {
	if len(dst) < HandshakeHeaderLenDTLS {
		return ErrShort
	}
	if h.Length > 1<<24-1 || h.FragOffset > 1<<24-1 || h.FragLen > 1<<24-1 {
		return ErrMalformed
	}
	var b cryptobyte.Builder
	b.AddUint8(h.Type)
	b.AddUint24(h.Length)
	b.AddUint16(h.SeqNr)
	b.AddUint24(h.FragOffset)
	b.AddUint24(h.FragLen)
	out, err := b.Bytes()
	if err != nil {
		return err
	}
	copy(dst, out)
	return nil
}

// DecodeDTLSHandshakeHeader parses a 13-byte DTLS handshake header from
// src. It does not check frag_off+frag_len <= length; callers apply that
// post-check themselves, since it is a driver-level content check, not a
// wire-decode failure.
func DecodeDTLSHandshakeHeader(src []byte) (DTLSHandshakeHeader, error) {
	if len(src) < HandshakeHeaderLenDTLS {
		return DTLSHandshakeHeader{}, ErrShort
	}
	s := cryptobyte.String(src[:HandshakeHeaderLenDTLS])
	var h DTLSHandshakeHeader
	if !s.ReadUint8(&h.Type) || !s.ReadUint24(&h.Length) || !s.ReadUint16(&h.SeqNr) ||
		!s.ReadUint24(&h.FragOffset) || !s.ReadUint24(&h.FragLen) {
		return DTLSHandshakeHeader{}, ErrMalformed
	}
	return h, nil
}

// Alert levels.
const (
	AlertLevelFatal   uint8 = 1
	AlertLevelWarning uint8 = 2
)

// EncodeAlert writes a 2-byte alert header into dst.
func EncodeAlert(dst []byte, level, description uint8) error {
	if len(dst) < AlertLen {
		return ErrShort
	}
	dst[0], dst[1] = level, description
	return nil
}

// DecodeAlert parses a 2-byte alert header from src, validating that
// level is one of AlertLevelFatal or AlertLevelWarning.
func DecodeAlert(src []byte) (level, description uint8, err error) {
	if len(src) < AlertLen {
		return 0, 0, ErrShort
	}
	level, description = src[0], src[1]
	if level != AlertLevelFatal && level != AlertLevelWarning {
		return 0, 0, ErrMalformed
	}
	return level, description, nil
}

// CCSValue is the single valid byte value of a change-cipher-spec record.
const CCSValue uint8 = 1

// EncodeCCS writes the single CCS byte into dst.
func EncodeCCS(dst []byte) error {
	if len(dst) < CCSLen {
		return ErrShort
	}
	dst[0] = CCSValue
	return nil
}

// DecodeCCS validates the single CCS byte in src.
func DecodeCCS(src []byte) error {
	if len(src) < CCSLen {
		return ErrShort
	}
	if src[0] != CCSValue {
		return ErrMalformed
	}
	return nil
}

// PutUint16 and Uint16 are re-exported thin wrappers kept for symmetry
// with the DTLS sequence number field, the one u16 (not u24) field in
// this package's headers, so callers needing to patch SeqNr in place
// after the fact (e.g. on retransmission) don't have to import
// encoding/binary themselves just for this.
func PutUint16(dst []byte, v uint16) { binary.BigEndian.PutUint16(dst, v) }
func Uint16(src []byte) uint16       { return binary.BigEndian.Uint16(src) }
