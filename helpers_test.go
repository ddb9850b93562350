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

package pdfrev

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"testing"
)

// twoRevisions is a file with two revisions.  Object 2 is changed in the
// second revision.
const twoRevisions = "%PDF-1.7\n" +
	"1 0 obj\n10\nendobj\n\n" +
	"2 0 obj\n20\nendobj\n\n" +
	"xref\n" +
	"0 3\n" +
	"0000000000 65535 f \n" +
	"0000000009 00000 n \n" +
	"0000000028 00000 n \n" +
	"trailer\n<< /Size 3 >>\n" +
	"startxref\n47\n%%EOF\n\n" +
	"2 0 obj\n200\nendobj\n\n" +
	"xref\n" +
	"2 1\n" +
	"0000000158 00000 n \n" +
	"trailer\n<< /Size 3 /Prev 47 >>\n" +
	"startxref\n178\n%%EOF\n"

func openTwoRevisions(t testing.TB) *Chain {
	t.Helper()
	c, err := Open(bytes.NewReader([]byte(twoRevisions)), nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// fileBuilder assembles PDF files for tests, keeping track of object
// offsets.
type fileBuilder struct {
	buf     bytes.Buffer
	section map[uint32]string
	prev    int64
}

func newFileBuilder(version string) *fileBuilder {
	b := &fileBuilder{
		section: make(map[uint32]string),
		prev:    -1,
	}
	fmt.Fprintf(&b.buf, "%%PDF-%s\n", version)
	return b
}

func (b *fileBuilder) pos() int64 {
	return int64(b.buf.Len())
}

// object writes an indirect object and adds it to the current section.
func (b *fileBuilder) object(number uint32, gen uint16, body string) int64 {
	pos := b.pos()
	fmt.Fprintf(&b.buf, "%d %d obj\n%s\nendobj\n", number, gen, body)
	b.section[number] = fmt.Sprintf("%010d %05d n\r\n", pos, gen)
	return pos
}

// stream writes a stream object and adds it to the current section.
func (b *fileBuilder) stream(number uint32, dict string, data []byte) int64 {
	pos := b.pos()
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", number, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
	b.section[number] = fmt.Sprintf("%010d %05d n\r\n", pos, 0)
	return pos
}

// free adds a free entry to the current section.
func (b *fileBuilder) free(number uint32, gen uint16) {
	b.section[number] = fmt.Sprintf("%010d %05d f\r\n", 0, gen)
}

// table writes a cross-reference table for the current section, followed
// by the trailer and the end-of-file marker.  A /Prev entry is added when
// there is an earlier section.
func (b *fileBuilder) table(trailer string) int64 {
	pos := b.pos()
	b.buf.WriteString("xref\n")
	numbers := slices.Sorted(maps.Keys(b.section))
	for i := 0; i < len(numbers); {
		j := i + 1
		for j < len(numbers) && numbers[j] == numbers[j-1]+1 {
			j++
		}
		fmt.Fprintf(&b.buf, "%d %d\n", numbers[i], j-i)
		for _, n := range numbers[i:j] {
			b.buf.WriteString(b.section[n])
		}
		i = j
	}
	if b.prev >= 0 {
		trailer += fmt.Sprintf(" /Prev %d", b.prev)
	}
	fmt.Fprintf(&b.buf, "trailer\n<< %s >>\n", trailer)
	b.startxref(pos)

	b.prev = pos
	clear(b.section)
	return pos
}

func (b *fileBuilder) startxref(pos int64) {
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", pos)
}

func (b *fileBuilder) source() *bytes.Reader {
	return bytes.NewReader(b.buf.Bytes())
}

// xrefRecords encodes cross-reference stream records with the given field
// widths.
func xrefRecords(w [3]int, records ...[3]uint64) []byte {
	buf := &bytes.Buffer{}
	for _, rec := range records {
		for i, width := range w {
			encodeInt(buf, rec[i], width)
		}
	}
	return buf.Bytes()
}
