// seehuhn.de/go/pdfrev - revision chains for incrementally updated PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package runlength implements the RunLengthDecode filter.
package runlength

import (
	"bufio"
	"io"
)

// EOD is the end-of-data marker of run-length encoded data.
const EOD = 128

// Decode returns a reader which decodes run-length encoded data read from r.
func Decode(r io.Reader) io.Reader {
	return &decoder{br: bufio.NewReader(r)}
}

type decoder struct {
	br  *bufio.Reader
	err error

	// The current run has count bytes left.  For literal runs these are
	// copied from the input, otherwise value is repeated.
	literal bool
	count   int
	value   byte
}

func (d *decoder) Read(p []byte) (n int, err error) {
	if d.err != nil {
		return 0, d.err
	}

	for len(p) > 0 {
		if d.count > 0 {
			count := min(d.count, len(p))
			if d.literal {
				k, err := io.ReadFull(d.br, p[:count])
				n += k
				d.count -= k
				p = p[k:]
				if err != nil {
					if err == io.EOF {
						err = io.ErrUnexpectedEOF
					}
					d.err = err
					return n, err
				}
			} else {
				for i := range count {
					p[i] = d.value
				}
				n += count
				d.count -= count
				p = p[count:]
			}
			continue
		}

		length, err := d.br.ReadByte()
		if err != nil {
			// A missing end-of-data marker is tolerated.
			d.err = err
			if err == io.EOF && n > 0 {
				err = nil
			}
			return n, err
		}

		switch {
		case length == EOD:
			d.err = io.EOF
			return n, io.EOF
		case length < EOD:
			d.count = int(length) + 1
			d.literal = true
		default:
			d.count = 257 - int(length)
			b, err := d.br.ReadByte()
			if err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				d.err = err
				return n, err
			}
			d.literal = false
			d.value = b
		}
	}

	return n, nil
}
