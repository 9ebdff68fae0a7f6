// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func pairedDrivers(t *testing.T, mode Mode, opts ...Option) (*Driver, *Driver) {
	t.Helper()
	var buf bytes.Buffer
	wl2 := NewStreamL2(nil, &buf)
	rl2 := NewStreamL2(&buf, nil)
	return NewDriver(nil, wl2, mode, opts...), NewDriver(rl2, nil, mode, opts...)
}

func TestDriverAlertRoundTrip(t *testing.T) {
	w, r := pairedDrivers(t, TLS)

	require.NoError(t, w.WriteAlert(1, AlertLevelWarning, 5))
	require.NoError(t, r.Read())
	a, ok := r.CurrentAlert()
	require.True(t, ok)
	require.Equal(t, Alert{Level: AlertLevelWarning, Type: 5}, a)
	require.NoError(t, r.ReadConsume())
}

func TestDriverCCSRoundTrip(t *testing.T) {
	w, r := pairedDrivers(t, TLS)

	require.NoError(t, w.WriteCCS(2))
	require.NoError(t, r.Read())
	require.Equal(t, CCS, driverInState(r))
	require.NoError(t, r.ReadConsume())
}

func TestDriverApplicationRoundTrip(t *testing.T) {
	w, r := pairedDrivers(t, TLS)

	wr, err := w.OpenApplication(0)
	require.NoError(t, err)
	b, err := wr.Get(7, nil)
	require.NoError(t, err)
	copy(b, "payload")
	require.NoError(t, wr.Commit())
	require.NoError(t, w.Dispatch())

	require.NoError(t, r.Read())
	rd, ok := r.ApplicationReader()
	require.True(t, ok)
	got, err := rd.Get(7, nil)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
	require.NoError(t, rd.Commit())
	require.NoError(t, r.ReadConsume())
}

func TestDriverHandshakeKnownLength(t *testing.T) {
	w, r := pairedDrivers(t, TLS)

	l := int64(11)
	ext, err := w.WriteHandshake(0, HandshakeHeader{Type: 1, Len: &l})
	require.NoError(t, err)
	b, err := ext.GetExt(11, nil)
	require.NoError(t, err)
	copy(b, "client hi!!")
	require.NoError(t, ext.CommitExt())
	require.NoError(t, w.Dispatch())

	require.NoError(t, r.Read())
	rext, info, ok := r.HandshakeReader()
	require.True(t, ok)
	require.EqualValues(t, 1, info.Type)
	require.EqualValues(t, 11, info.Length)
	got, err := rext.GetExt(11, nil)
	require.NoError(t, err)
	require.Equal(t, "client hi!!", string(got))
	require.NoError(t, rext.CommitExt())
	require.NoError(t, r.ReadConsume())
}

func TestDriverHandshakeUnknownLengthBackfill(t *testing.T) {
	w, r := pairedDrivers(t, TLS)

	ext, err := w.WriteHandshake(0, HandshakeHeader{Type: 0x0b})
	require.NoError(t, err)
	b, err := ext.GetExt(100, nil)
	require.NoError(t, err)
	for i := range b {
		b[i] = byte(i)
	}
	require.NoError(t, w.Dispatch())

	require.NoError(t, r.Read())
	_, info, ok := r.HandshakeReader()
	require.True(t, ok)
	require.EqualValues(t, 100, info.Length)
}

func TestDriverHandshakeUnfinishedRejected(t *testing.T) {
	w, r := pairedDrivers(t, TLS)

	l := int64(10)
	ext, err := w.WriteHandshake(0, HandshakeHeader{Type: 1, Len: &l})
	require.NoError(t, err)
	_, err = ext.GetExt(10, nil)
	require.NoError(t, err)
	require.NoError(t, ext.CommitExt())
	require.NoError(t, w.Dispatch())

	require.NoError(t, r.Read())
	_, _, ok := r.HandshakeReader()
	require.True(t, ok)
	// Consume without fully reading the body.
	require.ErrorIs(t, r.ReadConsume(), ErrUnfinishedHandshakeMessage)
}

func TestDriverTLSHandshakePauseResume(t *testing.T) {
	w, r := pairedDrivers(t, TLS)

	l := int64(20)
	ext, err := w.WriteHandshake(5, HandshakeHeader{Type: 2, Len: &l})
	require.NoError(t, err)
	b, err := ext.GetExt(10, nil)
	require.NoError(t, err)
	copy(b, "0123456789")
	require.NoError(t, ext.CommitExt())
	require.NoError(t, w.PauseHandshake())

	ext2, err := w.WriteHandshake(5, HandshakeHeader{Type: 2, Len: &l})
	require.NoError(t, err)
	require.Same(t, ext, ext2)
	b2, err := ext2.GetExt(10, nil)
	require.NoError(t, err)
	copy(b2, "ABCDEFGHIJ")
	require.NoError(t, ext2.CommitExt())
	require.NoError(t, w.Dispatch())

	require.NoError(t, r.Read())
	rext, _, _ := r.HandshakeReader()
	got1, err := rext.GetExt(10, nil)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(got1))
	require.NoError(t, rext.CommitExt())
	require.NoError(t, r.ReadPauseHandshake())

	require.NoError(t, r.Read())
	rext2, _, _ := r.HandshakeReader()
	got2, err := rext2.GetExt(10, nil)
	require.NoError(t, err)
	require.Equal(t, "ABCDEFGHIJ", string(got2))
	require.NoError(t, rext2.CommitExt())
	require.NoError(t, r.ReadConsume())
}

func TestDriverAckIsRejected(t *testing.T) {
	var buf bytes.Buffer
	wl2 := NewStreamL2(nil, &buf)
	rl2 := NewStreamL2(&buf, nil)

	wr, err := wl2.WriteStart(Ack, 0)
	require.NoError(t, err)
	b, err := wr.Get(1, nil)
	require.NoError(t, err)
	b[0] = 0
	require.NoError(t, wr.Commit())
	require.NoError(t, wl2.WriteDone())

	r := NewDriver(rl2, nil, TLS)
	require.ErrorIs(t, r.Read(), ErrInvalidContent)
}

func TestDriverAlertOutOfRangeLevelRejected(t *testing.T) {
	var buf bytes.Buffer
	wl2 := NewStreamL2(nil, &buf)
	rl2 := NewStreamL2(&buf, nil)

	wr, err := wl2.WriteStart(Alert, 0)
	require.NoError(t, err)
	b, err := wr.Get(2, nil)
	require.NoError(t, err)
	b[0], b[1] = 0, 5 // 0 is neither AlertLevelFatal nor AlertLevelWarning
	require.NoError(t, wr.Commit())
	require.NoError(t, wl2.WriteDone())

	r := NewDriver(rl2, nil, TLS)
	require.ErrorIs(t, r.Read(), ErrInvalidContent)
}

func TestDriverDTLSHandshakeFragmentBoundsViolation(t *testing.T) {
	w, _ := pairedDrivers(t, DTLS)
	l := int64(10)
	fl := int64(8)
	_, err := w.WriteHandshake(0, HandshakeHeader{Type: 1, Len: &l, FragOffset: 5, FragLen: &fl})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

// A DTLS fragment left to "run to the end of the message" (FragLen nil,
// Len non-nil) must derive its length immediately and write the real
// header at open time, not leave the record's header bytes unfilled.
func TestDriverDTLSHandshakeFragmentRunsToEnd(t *testing.T) {
	w, r := pairedDrivers(t, DTLS)

	l := int64(13)
	ext, err := w.WriteHandshake(0, HandshakeHeader{Type: 1, Len: &l, SeqNr: 3, FragOffset: 5})
	require.NoError(t, err)
	b, err := ext.GetExt(8, nil)
	require.NoError(t, err)
	copy(b, "runtoend")
	require.NoError(t, ext.CommitExt())
	require.NoError(t, w.Dispatch())

	require.NoError(t, r.Read())
	rext, info, ok := r.HandshakeReader()
	require.True(t, ok)
	require.EqualValues(t, 1, info.Type)
	require.EqualValues(t, 8, info.Length)
	require.EqualValues(t, 3, info.SeqNr)
	require.EqualValues(t, 5, info.FragOffset)
	require.EqualValues(t, 13, info.TotalLength)
	got, err := rext.GetExt(8, nil)
	require.NoError(t, err)
	require.Equal(t, "runtoend", string(got))
	require.NoError(t, rext.CommitExt())
	require.NoError(t, r.ReadConsume())
}

func driverInState(d *Driver) ContentType { return d.in.state }
