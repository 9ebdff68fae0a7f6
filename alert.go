// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import "code.hybscloud.com/recbuf/internal/wire"

const alertLen = wire.AlertLen

// Alert levels accepted by Read and passed to WriteAlert.
const (
	AlertLevelFatal   = wire.AlertLevelFatal
	AlertLevelWarning = wire.AlertLevelWarning
)

func encodeAlert(b []byte, level, description uint8) error {
	return wire.EncodeAlert(b, level, description)
}

// readAlert parses a fixed 2-byte alert record. Alert records never span
// a record boundary by design (they are two bytes); if the current
// record holds fewer than that, TLS treats it as a retry signal (the
// caller should release the record and read the next one), while DTLS
// treats it as fatal since a DTLS record is always self-contained.
func (d *Driver) readAlert(rd *Reader, epoch Epoch) error {
	b, err := rd.Get(alertLen, nil)
	if err != nil {
		if err == ErrOutOfData {
			if d.mode == DTLS {
				return ErrInvalidContent
			}
			if e := d.l2r.ReadDone(); e != nil {
				return e
			}
			return ErrRetry
		}
		return err
	}
	level, typ, err := wire.DecodeAlert(b)
	if err != nil {
		return ErrInvalidContent
	}
	if err := rd.Commit(); err != nil {
		return err
	}
	d.in.alert = Alert{Level: level, Type: typ}
	d.in.state = Alert
	d.in.raw = rd
	d.in.epoch = epoch
	return nil
}
