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
	"io"
	"math/bits"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
)

// Write writes the complete chain as a new PDF file.  Every revision is
// written as one cross-reference section, oldest first.
//
// Objects from object streams are written as plain objects, and the
// object streams themselves, as well as cross-reference streams, are
// omitted.
func (c *Chain) Write(w io.Writer, opt *WriterOptions) error {
	if opt == nil {
		opt = &WriterOptions{}
	}

	version := opt.Version
	if version == 0 {
		version = c.version
	}
	if version == 0 {
		version = V1_7
	}
	if opt.XRefStream && version < V1_5 {
		version = V1_5
	}
	versionString, err := version.ToString()
	if err != nil {
		return err
	}

	pw := &posWriter{w: w}
	_, err = fmt.Fprintf(pw, "%%PDF-%s\n%%\x80\x80\x80\x80\n", versionString)
	if err != nil {
		return err
	}

	sw := &sectionWriter{
		w:          pw,
		xrefStream: opt.XRefStream,
		prev:       -1,
		id:         c.documentID(),
	}
	if opt.XRefStream {
		// Cross-reference streams use object numbers above all objects in
		// the chain.
		for _, r := range c.revisions {
			sw.size = max(sw.size, r.Size())
		}
	}
	last := len(c.revisions) - 1
	for i := last; i >= 0; i-- {
		err = sw.writeRevision(c.revisions[i], i == last, i == 0)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteIncremental writes the original file, followed by the revisions
// which were added to the chain since it was opened.
//
// If any of the revisions read from the file have been changed, deleted
// or merged, [ErrNotIncremental] is returned.
func (c *Chain) WriteIncremental(w io.Writer, opt *WriterOptions) error {
	if opt == nil {
		opt = &WriterOptions{}
	}
	numNew, err := c.checkIncremental()
	if err != nil {
		return err
	}

	size := c.src.Size()
	_, err = io.Copy(w, io.NewSectionReader(c.src, 0, size))
	if err != nil {
		return err
	}
	pw := &posWriter{w: w, pos: size}

	if size > 0 {
		lastByte := make([]byte, 1)
		_, err = c.src.ReadAt(lastByte, size-1)
		if err != nil && err != io.EOF {
			return err
		}
		if lastByte[0] != '\n' && lastByte[0] != '\r' {
			_, err = pw.Write([]byte{'\n'})
			if err != nil {
				return err
			}
		}
	}

	sw := &sectionWriter{
		w:          pw,
		xrefStream: opt.XRefStream,
		prev:       c.original[0].pos,
		id:         c.documentID(),
	}
	for _, r := range c.revisions {
		sw.size = max(sw.size, r.Size())
	}
	for i := numNew - 1; i >= 0; i-- {
		err = sw.writeRevision(c.revisions[i], false, i == 0)
		if err != nil {
			return err
		}
	}
	return nil
}

// checkIncremental verifies that the revisions read from the file are
// still present and unchanged.  It returns the number of revisions added
// since the file was opened.
func (c *Chain) checkIncremental() (int, error) {
	if c.src == nil || c.recoveryErr != nil || len(c.original) == 0 {
		return 0, ErrNotIncremental
	}
	numNew := len(c.revisions) - len(c.original)
	if numNew < 0 {
		return 0, ErrNotIncremental
	}
	for i, r := range c.original {
		if c.revisions[numNew+i] != r || r.modified {
			return 0, ErrNotIncremental
		}
	}
	for _, r := range c.revisions[:numNew] {
		if r.kind != SectionMemory {
			return 0, ErrNotIncremental
		}
	}
	return numNew, nil
}

// documentID returns the file identifier of the chain.  If no revision has
// an identifier, a new one is generated.
func (c *Chain) documentID() Array {
	if id, ok := c.Trailer()["ID"].(Array); ok && len(id) == 2 {
		return id
	}
	u := uuid.New()
	return Array{String(u[:]), String(u[:])}
}

type sectionWriter struct {
	w          *posWriter
	xrefStream bool

	// prev is the offset of the previously written section, or -1.
	prev int64

	// size is the /Size value of the previously written section.
	size int

	id Array
}

// writeRevision writes the objects of r, followed by a cross-reference
// section and trailer.
func (sw *sectionWriter) writeRevision(r *Revision, oldest, newest bool) error {
	table := make(map[uint32]Entry, r.Len()+1)
	for n, e := range r.Entries() {
		if e.Type == EntryFree {
			table[n] = e
			continue
		}

		ref := NewReference(n, e.Generation)
		obj, _, err := r.Object(ref)
		if err != nil {
			return fmt.Errorf("writing %s: %w", ref, err)
		}
		if isContainer(obj) {
			table[n] = FreeEntry(0, e.Generation)
			continue
		}

		pos := sw.w.pos
		_, err = fmt.Fprintf(sw.w, "%d %d obj\n", n, e.Generation)
		if err != nil {
			return err
		}
		err = writeObject(sw.w, obj)
		if err != nil {
			return err
		}
		_, err = sw.w.Write([]byte("\nendobj\n"))
		if err != nil {
			return err
		}
		table[n] = InUseEntry(pos, e.Generation)
	}
	if _, has0 := table[0]; oldest && !has0 {
		table[0] = FreeEntry(0, 65535)
	}

	size := max(sw.size, r.Size())
	for n := range table {
		size = max(size, int(n)+1)
	}

	trailer := maps.Clone(r.trailer)
	if trailer == nil {
		trailer = Dict{}
	}
	delete(trailer, "Prev")
	delete(trailer, "XRefStm")
	if sw.prev >= 0 {
		trailer["Prev"] = Integer(sw.prev)
	}
	if _, hasID := trailer["ID"]; newest && !hasID && sw.id != nil {
		trailer["ID"] = sw.id
	}

	xrefPos := sw.w.pos
	var err error
	if sw.xrefStream {
		number := uint32(size)
		size++
		table[number] = InUseEntry(xrefPos, 0)
		trailer["Size"] = Integer(size)
		err = sw.writeXRefStream(number, table, trailer)
	} else {
		trailer["Size"] = Integer(size)
		err = sw.writeXRefTable(table, trailer)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(sw.w, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)
	if err != nil {
		return err
	}

	sw.prev = xrefPos
	sw.size = size
	return nil
}

func (sw *sectionWriter) writeXRefTable(table map[uint32]Entry, trailer Dict) error {
	_, err := sw.w.Write([]byte("xref\n"))
	if err != nil {
		return err
	}
	for _, run := range subsections(table) {
		_, err = fmt.Fprintf(sw.w, "%d %d\n", run.Start, run.Size)
		if err != nil {
			return err
		}
		for i := run.Start; i < run.Start+run.Size; i++ {
			e := table[uint32(i)]
			if e.Type == EntryFree {
				_, err = fmt.Fprintf(sw.w, "%010d %05d f\r\n", e.NextFree, e.Generation)
			} else {
				_, err = fmt.Fprintf(sw.w, "%010d %05d n\r\n", e.Offset, e.Generation)
			}
			if err != nil {
				return err
			}
		}
	}

	_, err = sw.w.Write([]byte("trailer\n"))
	if err != nil {
		return err
	}
	return trailer.PDF(sw.w)
}

func (sw *sectionWriter) writeXRefStream(number uint32, table map[uint32]Entry, trailer Dict) error {
	var maxField2 uint64
	var maxField3 uint64
	for _, e := range table {
		f2, f3 := xrefFields(e)
		maxField2 = max(maxField2, f2)
		maxField3 = max(maxField3, f3)
	}
	w2 := max((bits.Len64(maxField2)+7)/8, 1)
	w3 := max((bits.Len64(maxField3)+7)/8, 1)

	runs := subsections(table)
	index := make(Array, 0, 2*len(runs))
	data := &bytes.Buffer{}
	for _, run := range runs {
		index = append(index, Integer(run.Start), Integer(run.Size))
		for i := run.Start; i < run.Start+run.Size; i++ {
			e := table[uint32(i)]
			f2, f3 := xrefFields(e)
			switch e.Type {
			case EntryFree:
				data.WriteByte(0)
			case EntryInUse:
				data.WriteByte(1)
			case EntryPacked:
				data.WriteByte(2)
			}
			encodeInt(data, f2, w2)
			encodeInt(data, f3, w3)
		}
	}

	dict := maps.Clone(trailer)
	dict["Type"] = Name("XRef")
	dict["W"] = Array{Integer(1), Integer(w2), Integer(w3)}
	dict["Index"] = index
	dict["Filter"] = Name("FlateDecode")
	stream := NewStream(dict, deflate(data.Bytes()))

	_, err := fmt.Fprintf(sw.w, "%d 0 obj\n", number)
	if err != nil {
		return err
	}
	err = stream.PDF(sw.w)
	if err != nil {
		return err
	}
	_, err = sw.w.Write([]byte("\nendobj"))
	return err
}

// xrefFields returns the second and third field of the cross-reference
// stream record for e.
func xrefFields(e Entry) (uint64, uint64) {
	switch e.Type {
	case EntryFree:
		return uint64(e.NextFree), uint64(e.Generation)
	case EntryPacked:
		return uint64(e.Container), uint64(e.Index)
	default:
		return uint64(e.Offset), uint64(e.Generation)
	}
}

func encodeInt(data *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		data.WriteByte(byte(x >> (i * 8)))
	}
}

// subsections groups the object numbers of table into runs of consecutive
// numbers.
func subsections(table map[uint32]Entry) []xrefSubsection {
	numbers := make([]uint32, 0, len(table))
	for n := range table {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)

	var runs []xrefSubsection
	for _, n := range numbers {
		k := len(runs) - 1
		if k >= 0 && runs[k].Start+runs[k].Size == int64(n) {
			runs[k].Size++
			continue
		}
		runs = append(runs, xrefSubsection{Start: int64(n), Size: 1})
	}
	return runs
}

// isContainer checks whether obj is a cross-reference stream or an object
// stream.
func isContainer(obj Object) bool {
	stream, ok := obj.(*Stream)
	if !ok {
		return false
	}
	tp, _ := stream.Dict["Type"].(Name)
	return tp == "XRef" || tp == "ObjStm"
}

type posWriter struct {
	w   io.Writer
	pos int64
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}
