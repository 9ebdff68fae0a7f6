// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import (
	"errors"

	"code.hybscloud.com/iox"
)

// Precondition violations: the receiver is left unchanged and remains
// usable after returning one of these. Callers should treat them as
// programmer error and assert against them in debug builds.
var (
	// ErrInvalidArgument reports an argument outside the operation's
	// documented domain, e.g. an omit larger than the uncommitted region.
	ErrInvalidArgument = errors.New("recbuf: invalid argument")

	// ErrOperationUnexpected reports a call made from the wrong state,
	// e.g. Get before Feed, or BytesWritten while Providing.
	ErrOperationUnexpected = errors.New("recbuf: operation unexpected in current state")

	// ErrBoundsViolation reports a fetch, commit, or group operation that
	// would cross a logical size boundary (message or group).
	ErrBoundsViolation = errors.New("recbuf: logical bounds violation")

	// ErrTooManyGroups reports that GroupOpen was called with the group
	// stack already at its configured depth (see WithMaxGroups).
	ErrTooManyGroups = errors.New("recbuf: too many nested groups")
)

// Recoverable progress signals: the receiver remains in the well-defined
// state documented on the operation that returned one of these. The
// caller is expected to retry after supplying more buffer space, flushing,
// or feeding another buffer.
var (
	// ErrDataLeft is returned by Reclaim when force was false and the
	// committed bytes do not reach the end of the current buffer; the
	// writer/reader stays in Consuming state.
	ErrDataLeft = errors.New("recbuf: uncommitted data left, reclaim not forced")

	// ErrNeedMore is returned by Writer.Feed when the overflow queue has
	// not yet been fully drained into the new buffer, because that buffer
	// is smaller than the queue's remaining content.
	//
	// This is deliberately the same sentinel as iox.ErrMore: both mean
	// "what you have is usable, call again to get the rest", so recbuf
	// reuses the library's signal instead of declaring a parallel one.
	ErrNeedMore = iox.ErrMore

	// ErrOutOfData is returned by Get when desired exceeds what remains
	// available and the caller passed a nil buflen (i.e. declined a short
	// result). On the read side this is also the record-boundary signal
	// consumed by the content-framing driver (see ErrRetry).
	ErrOutOfData = errors.New("recbuf: out of data for requested length")
)

// Fatal content errors: after one of these is returned from a Driver
// operation, the driver's state for that half is unspecified and the
// caller must tear the connection down.
var (
	// ErrInvalidContent reports a record-content parse failure: a bad
	// alert level, a non-1 CCS byte, a DTLS header spanning a record
	// boundary, or a fragment whose offset+length overruns the message.
	ErrInvalidContent = errors.New("recbuf: invalid record content")

	// ErrUnfinishedHandshakeMessage reports that ReadConsume or Dispatch
	// was called while the handshake extended reader/writer had not yet
	// reached its logical end.
	ErrUnfinishedHandshakeMessage = errors.New("recbuf: unfinished handshake message")

	// ErrNoInterleaving reports that the Driver refused to open a
	// non-handshake write channel while a handshake message was paused; see
	// Options.AllowInterleaving.
	ErrNoInterleaving = errors.New("recbuf: interleaving a paused handshake is not allowed")

	// ErrInternal reports a driver invariant violation that is not
	// attributable to a single documented caller mistake.
	ErrInternal = errors.New("recbuf: internal error")
)

// ErrRetry signals that the current Driver read or write operation hit an
// L2 record boundary (on the read side, in TLS mode only) and the record
// was released; the caller should call the operation again to obtain the
// next record.
//
// This is distinct from iox.ErrWouldBlock even though both mean "stop and
// try again": ErrWouldBlock is about transport readiness (this package
// never touches a transport directly), while ErrRetry is purely about
// content spanning more than one L2 record. Aliasing the two would make a
// caller's retry loop indistinguishable from an I/O readiness wait, which
// it is not -- so recbuf declares its own sentinel.
var ErrRetry = errors.New("recbuf: content spans a record boundary, retry")
