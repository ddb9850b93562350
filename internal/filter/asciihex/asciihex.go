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

// Package asciihex implements the ASCIIHexDecode filter.
package asciihex

import (
	"bufio"
	"fmt"
	"io"
)

// Decode returns a reader which decodes ASCII hexadecimal data read from r.
// White space is ignored and decoding stops at the end-of-data marker ">".
// A missing final digit is taken to be zero.
func Decode(r io.Reader) io.Reader {
	return &decoder{r: bufio.NewReader(r)}
}

type decoder struct {
	r   *bufio.Reader
	err error

	// high holds the first digit of an incomplete byte.
	high     byte
	haveHigh bool
}

func (d *decoder) Read(p []byte) (n int, err error) {
	if d.err != nil {
		return 0, d.err
	}

	for n < len(p) {
		c, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			d.err = err
			break
		}

		var b byte
		switch {
		case c >= '0' && c <= '9':
			b = c - '0'
		case c >= 'A' && c <= 'F':
			b = c - 'A' + 10
		case c >= 'a' && c <= 'f':
			b = c - 'a' + 10
		case c == 0 || c == 9 || c == 10 || c == 12 || c == 13 || c == 32:
			continue
		case c == '>':
			if d.haveHigh {
				p[n] = d.high << 4
				n++
				d.haveHigh = false
			}
			d.err = io.EOF
			return n, d.err
		default:
			d.err = fmt.Errorf("asciihex: invalid character %q", c)
			return n, d.err
		}

		if d.haveHigh {
			p[n] = d.high<<4 | b
			n++
			d.haveHigh = false
		} else {
			d.high = b
			d.haveHigh = true
		}
	}

	return n, d.err
}
