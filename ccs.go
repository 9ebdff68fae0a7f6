// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package recbuf

import "code.hybscloud.com/recbuf/internal/wire"

const ccsLen = wire.CCSLen

func encodeCCS(b []byte) error {
	return wire.EncodeCCS(b)
}

// readCCS parses the fixed single-byte change-cipher-spec record. L2 is
// assumed to filter empty records, so an undersized record here is
// always a content violation rather than a boundary condition worth
// retrying — there is no smaller unit to retry at.
func (d *Driver) readCCS(rd *Reader, epoch Epoch) error {
	b, err := rd.Get(ccsLen, nil)
	if err != nil {
		if err == ErrOutOfData {
			return ErrInvalidContent
		}
		return err
	}
	if err := wire.DecodeCCS(b); err != nil {
		return ErrInvalidContent
	}
	if err := rd.Commit(); err != nil {
		return err
	}
	d.in.state = CCS
	d.in.raw = rd
	d.in.epoch = epoch
	return nil
}
