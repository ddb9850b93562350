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
	"errors"
	"fmt"
	"io"
	"math"
)

// SectionKind describes where the entries of a revision came from.
type SectionKind int

// These are the possible values of [SectionKind].
const (
	// SectionMemory is used for revisions created in memory.
	SectionMemory SectionKind = iota

	// SectionTable is a classic cross-reference table.
	SectionTable

	// SectionStream is a cross-reference stream.
	SectionStream

	// SectionHybrid is a cross-reference table, augmented by a
	// cross-reference stream given in the /XRefStm trailer entry.
	SectionHybrid

	// SectionRecovered is used for revisions reconstructed by scanning the
	// file for object definitions.
	SectionRecovered
)

func (k SectionKind) String() string {
	switch k {
	case SectionMemory:
		return "memory"
	case SectionTable:
		return "table"
	case SectionStream:
		return "stream"
	case SectionHybrid:
		return "hybrid"
	case SectionRecovered:
		return "recovered"
	default:
		return fmt.Sprintf("pdfrev.SectionKind(%d)", int(k))
	}
}

// xrefSection is the result of parsing one cross-reference section.
type xrefSection struct {
	kind    SectionKind
	pos     int64
	end     int64
	entries map[uint32]Entry
	trailer Dict

	// prev is the offset of the previous section, or -1.
	prev int64
}

// A sectionParser is one of the strategies for reading a cross-reference
// section.  handles must not consume input.
type sectionParser interface {
	handles(s *scanner) bool
	parse(sr *sectionReader, s *scanner) (*xrefSection, error)
}

// sectionReader reads cross-reference sections from a byte source.  The list
// of parser strategies is fixed when the sectionReader is created.
type sectionReader struct {
	src     ByteSource
	parsers []sectionParser
}

func newSectionReader(src ByteSource) *sectionReader {
	return &sectionReader{
		src: src,
		parsers: []sectionParser{
			xrefTableParser{},
			xrefStreamParser{},
		},
	}
}

// readSection reads the cross-reference section at the given offset.
// All errors are of type [*MalformedSectionError].
func (sr *sectionReader) readSection(pos int64) (*xrefSection, error) {
	size := sr.src.Size()
	if pos < 0 || pos >= size {
		return nil, &MalformedSectionError{
			Pos: pos,
			Err: fmt.Errorf("offset outside file (size %d)", size),
		}
	}

	s := newScanner(sr.src, pos, size)
	err := s.SkipWhiteSpace()
	if err != nil {
		return nil, malformedSection(pos, err)
	}

	for _, p := range sr.parsers {
		if !p.handles(s) {
			continue
		}
		sec, err := p.parse(sr, s)
		if err != nil {
			return nil, malformedSection(pos, err)
		}
		sec.pos = pos

		size, ok := sec.trailer["Size"].(Integer)
		if !ok || size < 0 {
			return nil, &MalformedSectionError{
				Pos: pos,
				Err: errors.New("trailer has no valid /Size"),
			}
		}

		sec.prev = -1
		if prev, present := sec.trailer["Prev"]; present {
			prevPos, ok := prev.(Integer)
			if !ok {
				return nil, &MalformedSectionError{
					Pos: pos,
					Err: fmt.Errorf("invalid /Prev value %s", Format(prev)),
				}
			}
			sec.prev = int64(prevPos)
		}

		sec.end = sr.sectionEnd(s)
		return sec, nil
	}

	return nil, &MalformedSectionError{
		Pos: pos,
		Err: errors.New("no cross-reference section found"),
	}
}

// sectionEnd returns the offset just after the "%%EOF" marker which follows
// a section.  If no marker is found nearby, the current position is used.
func (sr *sectionReader) sectionEnd(s *scanner) int64 {
	pos := s.currentPos()
	idx, err := s.find("%%EOF", pos+256)
	if err != nil {
		return pos
	}
	end := idx + 5
	s.seek(end)
	buf, _ := s.Peek(2)
	if len(buf) >= 2 && buf[0] == '\r' && buf[1] == '\n' {
		end += 2
	} else if len(buf) >= 1 && (buf[0] == '\r' || buf[0] == '\n') {
		end++
	}
	return end
}

// xrefTableParser reads cross-reference tables.
type xrefTableParser struct{}

func (xrefTableParser) handles(s *scanner) bool {
	return s.hasKeyword("xref")
}

func (xrefTableParser) parse(sr *sectionReader, s *scanner) (*xrefSection, error) {
	sec := &xrefSection{
		kind:    SectionTable,
		entries: make(map[uint32]Entry),
	}

	err := s.SkipString("xref")
	if err != nil {
		return nil, err
	}

	for {
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 || buf[0] < '0' || buf[0] > '9' {
			break
		}

		start, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		count, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		if start < 0 || count < 0 || start+count > 1<<32 {
			return nil, fmt.Errorf("invalid subsection header %d %d", start, count)
		}
		err = readXRefSubsection(sec.entries, s, uint32(start), int(count))
		if err != nil {
			return nil, err
		}
	}

	if !s.hasKeyword("trailer") {
		return nil, errors.New("trailer not found")
	}
	s.bufPos += len("trailer")
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	sec.trailer, err = s.ReadDict()
	if err != nil {
		return nil, err
	}

	if xRefStm, present := sec.trailer["XRefStm"]; present {
		streamPos, ok := xRefStm.(Integer)
		if !ok {
			return nil, errors.New("wrong type for /XRefStm (expected Integer)")
		}
		after := s.currentPos()
		stm, err := sr.readStreamAt(int64(streamPos))
		if err != nil {
			return nil, fmt.Errorf("/XRefStm: %w", err)
		}
		// the stream is newer than the table it augments
		for number, entry := range stm.entries {
			sec.entries[number] = entry
		}
		sec.kind = SectionHybrid
		s.seek(after)
	}

	return sec, nil
}

func readXRefSubsection(entries map[uint32]Entry, s *scanner, start uint32, count int) error {
	for i := 0; i < count; i++ {
		err := s.SkipWhiteSpace()
		if err != nil {
			return err
		}
		buf, err := s.Peek(1)
		if err != nil {
			return err
		}
		if len(buf) == 0 || buf[0] < '0' || buf[0] > '9' {
			return fmt.Errorf("subsection starting at %d: expected %d entries, found %d",
				start, count, i)
		}

		offset, err := s.ReadInteger()
		if err != nil {
			return err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return err
		}
		gen, err := s.ReadInteger()
		if err != nil {
			return err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return err
		}
		flag, err := s.Peek(1)
		if err != nil {
			return err
		}
		if len(flag) == 0 {
			return io.ErrUnexpectedEOF
		}
		c := flag[0]
		s.bufPos++

		// fix a common error in some PDF files
		if gen == 65536 && offset == 0 {
			gen = 65535
			c = 'f'
		}
		if gen < 0 || gen > 65535 || offset < 0 {
			return fmt.Errorf("invalid entry for object %d", start+uint32(i))
		}

		number := start + uint32(i)
		if _, seen := entries[number]; seen {
			continue
		}
		switch c {
		case 'f':
			entries[number] = FreeEntry(uint32(offset), uint16(gen))
		case 'n':
			entries[number] = InUseEntry(int64(offset), uint16(gen))
		default:
			return fmt.Errorf("invalid entry type %q for object %d", c, number)
		}
	}
	return nil
}

// xrefStreamParser reads cross-reference streams.
type xrefStreamParser struct{}

func (xrefStreamParser) handles(s *scanner) bool {
	buf, err := s.Peek(1)
	return err == nil && len(buf) > 0 && buf[0] >= '0' && buf[0] <= '9'
}

func (xrefStreamParser) parse(_ *sectionReader, s *scanner) (*xrefSection, error) {
	obj, _, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return nil, errors.New("invalid xref stream")
	}
	if tp, ok := stream.Dict["Type"].(Name); ok && tp != "XRef" {
		return nil, fmt.Errorf("wrong stream type /%s for xref stream", tp)
	}

	w, ss, err := checkXRefStreamDict(stream.Dict)
	if err != nil {
		return nil, err
	}

	r, err := stream.Decode()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedSize))
	if err != nil {
		return nil, err
	}

	sec := &xrefSection{
		kind:    SectionStream,
		entries: make(map[uint32]Entry),
		trailer: make(Dict, len(stream.Dict)),
	}
	err = decodeXRefStream(sec.entries, data, w, ss)
	if err != nil {
		return nil, err
	}

	for key, val := range stream.Dict {
		switch key {
		case "Type", "Length", "Filter", "DecodeParms", "W", "Index":
			continue
		}
		sec.trailer[key] = val
	}
	return sec, nil
}

// readStreamAt reads the cross-reference stream at pos.  This is used for
// the /XRefStm entry of hybrid files.
func (sr *sectionReader) readStreamAt(pos int64) (*xrefSection, error) {
	if pos <= 0 || pos >= sr.src.Size() {
		return nil, fmt.Errorf("offset %d outside file", pos)
	}
	s := newScanner(sr.src, pos, sr.src.Size())
	return xrefStreamParser{}.parse(sr, s)
}

type xrefSubsection struct {
	Start, Size int64
}

func checkXRefStreamDict(dict Dict) ([]int, []xrefSubsection, error) {
	size, ok := dict["Size"].(Integer)
	if !ok || size < 0 {
		return nil, nil, errors.New("xref stream has no valid /Size")
	}
	W, ok := dict["W"].(Array)
	if !ok || len(W) < 3 {
		return nil, nil, errors.New("xref stream has no valid /W")
	}
	w := make([]int, 3)
	for i := range w {
		wi, ok := W[i].(Integer)
		if !ok || wi < 0 || wi > 8 {
			return nil, nil, errors.New("xref stream has no valid /W")
		}
		w[i] = int(wi)
	}

	var ss []xrefSubsection
	switch index := dict["Index"].(type) {
	case nil:
		ss = append(ss, xrefSubsection{0, int64(size)})
	case Array:
		if len(index)%2 != 0 {
			return nil, nil, errors.New("malformed /Index in xref stream")
		}
		for i := 0; i < len(index); i += 2 {
			start, ok1 := index[i].(Integer)
			count, ok2 := index[i+1].(Integer)
			if !ok1 || !ok2 || start < 0 || count < 0 || start+count > 1<<32 {
				return nil, nil, errors.New("malformed /Index in xref stream")
			}
			ss = append(ss, xrefSubsection{int64(start), int64(count)})
		}
	default:
		return nil, nil, errors.New("malformed /Index in xref stream")
	}
	return w, ss, nil
}

func decodeXRefStream(entries map[uint32]Entry, data []byte, w []int, ss []xrefSubsection) error {
	w0, w1, w2 := w[0], w[1], w[2]
	recLen := w0 + w1 + w2
	if recLen == 0 {
		return errors.New("xref stream with zero-width records")
	}

	var total int64
	for _, sec := range ss {
		total += sec.Size
	}
	if total*int64(recLen) > int64(len(data)) {
		return fmt.Errorf("xref stream declares %d entries, but has data for %d",
			total, len(data)/recLen)
	}

	r := bytes.NewReader(data)
	buf := make([]byte, recLen)
	for _, sec := range ss {
		for i := sec.Start; i < sec.Start+sec.Size; i++ {
			_, err := io.ReadFull(r, buf)
			if err != nil {
				return err
			}

			number := uint32(i)
			if _, seen := entries[number]; seen {
				continue
			}

			tp := decodeInt(buf[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeInt(buf[w0 : w0+w1])
			b := decodeInt(buf[w0+w1:])
			switch tp {
			case 1:
				// a = byte offset of the object, b = generation number
				if b > math.MaxUint16 {
					return fmt.Errorf("object %d: invalid generation %d", number, b)
				}
				// Offsets beyond the end of the file are reported when
				// the object is loaded.
				entries[number] = InUseEntry(int64(min(a, math.MaxInt64)), uint16(b))
			case 2:
				// a = object number of the object stream, b = index
				if a > math.MaxUint32 {
					return fmt.Errorf("object %d: invalid object stream %d", number, a)
				}
				entries[number] = PackedEntry(uint32(a), int(min(b, math.MaxInt32)))
			default:
				// Type 0 are free objects, with a = next free object and
				// b = generation number.  Other types are treated as
				// references to the null object, i.e. as free.
				if a > math.MaxUint32 {
					a = 0
				}
				entries[number] = FreeEntry(uint32(a), uint16(min(b, math.MaxUint16)))
			}
		}
	}
	return nil
}

func decodeInt(buf []byte) (res uint64) {
	for _, x := range buf {
		res = res<<8 | uint64(x)
	}
	return res
}

// findStartXRef locates the offset given after the last "startxref" keyword
// in the file.
func findStartXRef(src ByteSource) (int64, error) {
	pos, err := lastOccurrence(src, "startxref")
	if err != nil {
		return 0, err
	}
	s := newScanner(src, pos+9, src.Size())
	err = s.SkipWhiteSpace()
	if err != nil {
		return 0, err
	}
	xRefPos, err := s.ReadInteger()
	if err != nil {
		return 0, err
	}
	if xRefPos <= 0 || int64(xRefPos) >= src.Size() {
		return 0, &MalformedSectionError{
			Pos: int64(xRefPos),
			Err: errors.New("invalid startxref position"),
		}
	}
	return int64(xRefPos), nil
}

func lastOccurrence(src ByteSource, pat string) (int64, error) {
	const chunkSize = 1024

	buf := make([]byte, chunkSize)
	k := int64(len(pat))
	pos := src.Size()
	for pos >= k {
		start := pos - chunkSize
		if start < 0 {
			start = 0
		}
		n, err := src.ReadAt(buf[:pos-start], start)
		if err != nil && err != io.EOF {
			return 0, err
		}

		idx := bytes.LastIndex(buf[:n], []byte(pat))
		if idx >= 0 {
			return start + int64(idx), nil
		}
		if start == 0 {
			break
		}
		pos = start + k - 1
	}
	return 0, &MalformedSectionError{
		Err: fmt.Errorf("%s not found", pat),
	}
}
