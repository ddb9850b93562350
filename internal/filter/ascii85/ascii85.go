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

// Package ascii85 implements the ASCII85Decode filter.
package ascii85

import (
	"errors"
	"io"
)

// Decode returns a reader which decodes ASCII base-85 data read from r.
// Decoding stops at the end-of-data marker "~>".
func Decode(r io.Reader) io.Reader {
	return &decoder{r: r}
}

type decoder struct {
	r io.Reader

	// err is returned once all decoded data has been delivered.
	// readErr is the error from the underlying reader, which is only
	// reported after the buffered input has been consumed.
	err     error
	readErr error

	buf       [512]byte
	pos, nbuf int

	out      [4]byte
	leftover []byte

	v     uint32
	k     int
	atEnd bool
}

func (d *decoder) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(d.leftover) > 0 {
		n = copy(p, d.leftover)
		d.leftover = d.leftover[n:]
	}
	if d.err != nil {
		if n > 0 {
			return n, nil
		}
		return 0, d.err
	}

	for n < len(p) {
		for d.pos == d.nbuf && d.readErr == nil {
			d.nbuf, d.readErr = d.r.Read(d.buf[:])
			d.pos = 0
			if d.readErr == io.EOF {
				d.readErr = io.ErrUnexpectedEOF
			}
		}
		if d.pos == d.nbuf {
			d.err = d.readErr
			return n, d.err
		}
		c := d.buf[d.pos]
		d.pos++

		if d.atEnd {
			if c == '>' {
				d.err = io.EOF
			} else {
				d.err = errInvalidEnd
			}
			return n, d.err
		}

		switch {
		case isSpace[c]:
			continue
		case c >= '!' && c < '!'+85:
			d.v = d.v*85 + uint32(c-'!')
			d.k++
		case c == 'z' && d.k == 0:
			d.v = 0
			d.k = 5
		case c == '~':
			switch d.k {
			case 0:
				// pass
			case 1:
				d.err = errInvalidEnd
				return n, d.err
			default:
				// pad the final group with 'u' and keep k-1 bytes
				for i := d.k; i < 5; i++ {
					d.v = d.v*85 + 84
				}
				n += d.emit(p[n:], d.k-1)
			}
			d.atEnd = true
			continue
		default:
			d.err = errInvalidChar
			return n, d.err
		}

		if d.k == 5 {
			n += d.emit(p[n:], 4)
		}
	}
	return n, nil
}

// emit writes the first m bytes of the current group to p.  Bytes which
// do not fit are kept for the next call to Read.
func (d *decoder) emit(p []byte, m int) int {
	d.out[0] = byte(d.v >> 24)
	d.out[1] = byte(d.v >> 16)
	d.out[2] = byte(d.v >> 8)
	d.out[3] = byte(d.v)
	d.v = 0
	d.k = 0

	l := copy(p, d.out[:m])
	if l < m {
		d.leftover = d.out[l:m]
	}
	return l
}

var (
	errInvalidChar = errors.New("ascii85: invalid character")
	errInvalidEnd  = errors.New("ascii85: invalid end marker")
)

var isSpace = [256]bool{
	0:  true,
	9:  true,
	10: true,
	12: true,
	13: true,
	32: true,
}
