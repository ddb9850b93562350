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
	"cmp"
	"regexp"
	"slices"
	"strconv"
)

const (
	recoverChunkSize = 64 * 1024
	recoverOverlap   = 256
)

var (
	whiteSpacePat = `[\000\011\012\014\015 ]{1,32}`
	objectPat     = `([0-9]{1,10})` + whiteSpacePat + `([0-9]{1,5})` + whiteSpacePat + `obj\b`
	markerRegexp  = regexp.MustCompile(objectPat + `|\btrailer\b`)
)

// recoverRevision reconstructs a cross-reference table by scanning src for
// object definitions.  The last definition of each object number wins.
// This never fails; at worst, the returned revision is empty.
func recoverRevision(src ByteSource, objStmCache int) *Revision {
	rs := &recoveryScan{
		src:     src,
		objects: make(map[uint32]recoveredObject),
		trailer: -1,
	}
	rs.scan()

	r := newRevision(src, SectionRecovered, nil, objStmCache)
	r.end = src.Size()

	var maxNumber int64 = -1
	numbers := make([]uint32, 0, len(rs.objects))
	for n, obj := range rs.objects {
		r.entries[n] = InUseEntry(obj.pos, obj.generation)
		numbers = append(numbers, n)
		maxNumber = max(maxNumber, int64(n))
	}
	// Process objects in file order, so that later definitions take
	// precedence where the inspection below finds conflicting data.
	slices.SortFunc(numbers, func(a, b uint32) int {
		return cmp.Compare(rs.objects[a].pos, rs.objects[b].pos)
	})

	var catalog Reference
	var haveCatalog bool
	var xrefDict Dict
	for _, n := range numbers {
		info := rs.objects[n]
		ref := NewReference(n, info.generation)

		s := newScanner(src, info.pos, src.Size())
		obj, got, err := s.ReadIndirectObject()
		if err != nil || got != ref {
			continue
		}

		switch obj := obj.(type) {
		case Dict:
			if tp, _ := obj["Type"].(Name); tp == "Catalog" {
				catalog = ref
				haveCatalog = true
			}
		case *Stream:
			switch tp, _ := obj.Dict["Type"].(Name); tp {
			case "XRef":
				xrefDict = obj.Dict
			case "ObjStm":
				stm, err := decodeObjectStream(obj)
				if err != nil {
					continue
				}
				for i, m := range stm.numbers {
					if _, direct := rs.objects[m]; direct {
						continue
					}
					r.entries[m] = PackedEntry(n, i)
					maxNumber = max(maxNumber, int64(m))
				}
			}
		}
	}

	switch {
	case rs.trailer >= 0:
		s := newScanner(src, rs.trailer+int64(len("trailer")), src.Size())
		if s.SkipWhiteSpace() == nil {
			if dict, err := s.ReadDict(); err == nil {
				r.trailer = dict
			}
		}
	case xrefDict != nil:
		for key, val := range xrefDict {
			switch key {
			case "Type", "Length", "Filter", "DecodeParms", "W", "Index":
				continue
			}
			r.trailer[key] = val
		}
	}
	delete(r.trailer, "Prev")
	delete(r.trailer, "XRefStm")

	if _, hasRoot := r.trailer["Root"]; !hasRoot && haveCatalog {
		r.trailer["Root"] = catalog
	}
	if size, ok := r.trailer["Size"].(Integer); !ok || int64(size) <= maxNumber {
		r.trailer["Size"] = Integer(maxNumber + 1)
	}

	return r
}

type recoveredObject struct {
	pos        int64
	generation uint16
}

type recoveryScan struct {
	src     ByteSource
	objects map[uint32]recoveredObject
	trailer int64
}

// scan reads the source in overlapping chunks.  A match is only used in the
// chunk where it starts; the overlap makes sure it is seen completely.
func (rs *recoveryScan) scan() {
	size := rs.src.Size()
	buf := make([]byte, recoverChunkSize+recoverOverlap+1)
	for start := int64(0); start < size; start += recoverChunkSize {
		// One extra byte before the chunk is read, to check whether a
		// match is preceded by a digit.
		bufStart := max(start-1, 0)
		bufEnd := min(start+recoverChunkSize+recoverOverlap, size)
		n, _ := rs.src.ReadAt(buf[:bufEnd-bufStart], bufStart)
		data := buf[:n]

		for _, m := range markerRegexp.FindAllSubmatchIndex(data, -1) {
			pos := bufStart + int64(m[0])
			if pos < start || pos >= start+recoverChunkSize {
				continue
			}
			if m[2] < 0 {
				rs.trailer = pos
				continue
			}
			if m[0] > 0 && data[m[0]-1] >= '0' && data[m[0]-1] <= '9' {
				continue
			}

			number, err := strconv.ParseUint(string(data[m[2]:m[3]]), 10, 32)
			if err != nil {
				continue
			}
			generation, err := strconv.ParseUint(string(data[m[4]:m[5]]), 10, 16)
			if err != nil {
				continue
			}
			rs.objects[uint32(number)] = recoveredObject{
				pos:        pos,
				generation: uint16(generation),
			}
		}
	}
}
