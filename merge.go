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
	"fmt"
	"io"
	"slices"

	"golang.org/x/exp/maps"
)

// Merge collapses the revisions lo, lo+1, ..., hi into a single revision,
// which takes the place of revision lo.  For every object number, the
// newest definition in the range is kept.
//
// Objects from older revisions are copied into memory, so every object in
// the range which is not shadowed by a newer definition must be loadable.
// If any of them cannot be loaded, the error names the revision and the
// object, and the chain is left unchanged.  To merge around a damaged
// object, use [Revision.Remove] or [Revision.Free] on the revision which
// holds it before calling Merge.
func (c *Chain) Merge(lo, hi int) error {
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo < 0 || lo >= len(c.revisions) {
		return &IndexOutOfRangeError{Index: lo, Len: len(c.revisions)}
	}
	if hi >= len(c.revisions) {
		return &IndexOutOfRangeError{Index: hi, Len: len(c.revisions)}
	}
	if lo == hi {
		return nil
	}

	merged, err := c.merged(lo, hi)
	if err != nil {
		return err
	}

	for _, r := range c.revisions[lo : hi+1] {
		r.chain = nil
		r.invalidate()
	}
	merged.chain = c
	c.revisions = slices.Replace(c.revisions, lo, hi+1, merged)
	c.invalidate()
	return nil
}

// MergeAll collapses the whole chain into a single revision.
func (c *Chain) MergeAll() error {
	return c.Merge(0, len(c.revisions)-1)
}

// merged computes the result of merging the revisions lo to hi, without
// changing the chain.
func (c *Chain) merged(lo, hi int) (*Revision, error) {
	newest := c.revisions[lo]
	res := newest.clone()
	res.modified = true

	size := newest.Size()
	for i := lo + 1; i <= hi; i++ {
		r := c.revisions[i]
		size = max(size, r.Size())

		for n, e := range r.Entries() {
			if _, done := res.entries[n]; done {
				continue
			}

			switch e.Type {
			case EntryFree:
				res.entries[n] = e
				continue
			case EntryInUse:
				if e.inMemory() {
					res.entries[n] = e
					res.objects[n] = r.objects[n]
					continue
				}
			case EntryPacked:
				// packed objects always have generation 0
			}

			ref := NewReference(n, e.Generation)
			obj, _, err := r.Object(ref)
			if err != nil {
				return nil, fmt.Errorf("merging revision %d: %s: %w", i, ref, err)
			}
			obj, err = materialize(obj)
			if err != nil {
				return nil, fmt.Errorf("merging revision %d: %s: %w", i, ref, err)
			}
			res.entries[n] = memoryEntry(e.Generation)
			res.objects[n] = obj
		}
	}

	delete(res.trailer, "Prev")
	delete(res.trailer, "XRefStm")
	res.trailer["Size"] = Integer(size)
	return res, nil
}

// materialize makes sure that the data of stream objects is held in memory,
// so that obj no longer depends on the position of the stream in the file.
func materialize(obj Object) (Object, error) {
	stream, ok := obj.(*Stream)
	if !ok {
		return obj, nil
	}
	data, err := io.ReadAll(stream.Raw())
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != stream.N {
		return nil, io.ErrUnexpectedEOF
	}
	return NewStream(maps.Clone(stream.Dict), data), nil
}
