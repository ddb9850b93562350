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
)

// maxLoadDepth limits the nesting of object loads, which can occur through
// indirect stream lengths and object streams.
const maxLoadDepth = 8

// maxObjStmObjects limits the number of objects in a single object stream.
const maxObjStmObjects = 1 << 20

// objectStream is the decoded form of an object stream.
type objectStream struct {
	numbers []uint32
	offsets []int
	data    []byte
}

// resolver returns the Getter used to resolve references which occur while
// loading objects of r, together with the load depth counter to use.
func (r *Revision) resolver() (Getter, *int) {
	if r.chain != nil {
		return r.chain, &r.chain.depth
	}
	return r, &r.depth
}

// getInt resolves indirect /Length values of streams.
func (r *Revision) getInt(obj Object) (Integer, error) {
	if x, ok := obj.(Integer); ok {
		return x, nil
	}

	getter, depth := r.resolver()
	if *depth >= maxLoadDepth {
		return 0, errors.New("nesting of stream lengths too deep")
	}
	*depth++
	defer func() { *depth-- }()

	return GetInteger(getter, obj)
}

// loadDirect reads the indirect object ref, stored at the given offset.
func (r *Revision) loadDirect(ref Reference, offset int64) (Object, error) {
	if r.src == nil {
		return nil, fmt.Errorf("%s: revision has no byte source", ref)
	}
	size := r.src.Size()
	if offset < 0 || offset >= size {
		return nil, &OutOfRangeError{Offset: offset, Length: 1, Size: size}
	}

	s := newScanner(r.src, offset, size)
	s.getInt = r.getInt
	obj, got, err := s.ReadIndirectObject()
	if err != nil {
		var malformed *MalformedFileError
		if !errors.As(err, &malformed) {
			err = &MalformedFileError{Pos: offset, Err: err}
		}
		return nil, err
	}
	if got != ref {
		return nil, &MalformedFileError{
			Pos: offset,
			Err: fmt.Errorf("xref corrupted: expected %s, found %s", ref, got),
		}
	}
	return obj, nil
}

// loadPacked reads object number n from the object stream given in e.
func (r *Revision) loadPacked(n uint32, e Entry) (Object, error) {
	stm, err := r.objectStream(e.Container)
	if err != nil {
		return nil, err
	}

	idx := e.Index
	if idx < 0 || idx >= len(stm.numbers) || stm.numbers[idx] != n {
		idx = -1
		for i, number := range stm.numbers {
			if number == n {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		if e.Index < 0 || e.Index >= len(stm.numbers) {
			return nil, fmt.Errorf("object stream %d: index %d: %w",
				e.Container, e.Index, &OutOfRangeError{
					Offset: int64(e.Index),
					Length: 1,
					Size:   int64(len(stm.numbers)),
				})
		}
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object %d missing from object stream %d", n, e.Container),
		}
	}

	data := stm.data
	s := newScanner(bytes.NewReader(data), int64(stm.offsets[idx]), int64(len(data)))
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	obj, err := s.ReadObject()
	if err == nil {
		obj, err = s.maybeReference(obj)
	}
	if err != nil {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object stream %d, object %d: %w", e.Container, n, err),
		}
	}
	if _, isStream := obj.(*Stream); isStream {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object stream %d contains stream object %d", e.Container, n),
		}
	}
	return obj, nil
}

// objectStream returns the decoded object stream with the given object
// number.  The stream itself is resolved through the chain.
func (r *Revision) objectStream(container uint32) (*objectStream, error) {
	if stm, ok := r.objStms.Get(container); ok {
		return stm, nil
	}

	getter, depth := r.resolver()
	if *depth >= maxLoadDepth {
		return nil, errors.New("nesting of object streams too deep")
	}
	*depth++
	obj, err := getter.Get(NewReference(container, 0))
	*depth--
	if err != nil {
		return nil, err
	}

	stream, ok := obj.(*Stream)
	if !ok {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object stream %d not found", container),
		}
	}
	stm, err := decodeObjectStream(stream)
	if err != nil {
		return nil, &MalformedFileError{
			Err: fmt.Errorf("object stream %d: %w", container, err),
		}
	}

	r.objStms.Put(container, stm)
	return stm, nil
}

func decodeObjectStream(stream *Stream) (*objectStream, error) {
	if tp, _ := stream.Dict["Type"].(Name); tp != "ObjStm" {
		return nil, errors.New("wrong type for object stream")
	}
	N, ok := stream.Dict["N"].(Integer)
	if !ok || N < 0 || N > maxObjStmObjects {
		return nil, errors.New("no valid /N for ObjStm")
	}
	first, ok := stream.Dict["First"].(Integer)
	if !ok || first < 0 {
		return nil, errors.New("no valid /First for ObjStm")
	}

	r, err := stream.Decode()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedSize))
	if err != nil {
		return nil, err
	}
	if int64(first) > int64(len(data)) {
		return nil, &OutOfRangeError{
			Offset: int64(first),
			Length: 0,
			Size:   int64(len(data)),
		}
	}

	n := int(N)
	stm := &objectStream{
		numbers: make([]uint32, 0, n),
		offsets: make([]int, 0, n),
		data:    data,
	}
	s := newScanner(bytes.NewReader(data[:first]), 0, int64(first))
	for i := 0; i < n; i++ {
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		number, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		offs, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		if number < 0 || number > 0xFFFFFFFF || offs < 0 || int64(first)+int64(offs) > int64(len(data)) {
			return nil, fmt.Errorf("invalid header entry %d", i)
		}
		stm.numbers = append(stm.numbers, uint32(number))
		stm.offsets = append(stm.offsets, int(first)+int(offs))
	}
	return stm, nil
}
