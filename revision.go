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
	"iter"
	"slices"

	"golang.org/x/exp/maps"
)

// Status describes the outcome of looking up an object reference.
type Status int

// These are the possible values of [Status].
const (
	// StatusNotFound means that no revision defines the object, or that the
	// generation number does not match.
	StatusNotFound Status = iota

	// StatusFree means that the object has been deleted.
	StatusFree

	// StatusFound means that the object exists.
	StatusFound
)

func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "not found"
	case StatusFree:
		return "free"
	case StatusFound:
		return "found"
	default:
		return fmt.Sprintf("pdfrev.Status(%d)", int(s))
	}
}

// A Revision is one step of the incremental update history of a PDF file.
// A revision only knows about the objects it defines itself.
type Revision struct {
	chain *Chain
	src   ByteSource

	kind     SectionKind
	pos, end int64

	entries map[uint32]Entry
	objects map[uint32]Object
	trailer Dict

	loaded  map[Reference]Object
	objStms *lruCache[uint32, *objectStream]
	depth   int

	// modified is set when the revision has been changed after it was
	// read from a file.
	modified bool
}

func newRevision(src ByteSource, kind SectionKind, trailer Dict, objStmCache int) *Revision {
	if trailer == nil {
		trailer = Dict{}
	}
	return &Revision{
		src:     src,
		kind:    kind,
		pos:     -1,
		end:     -1,
		entries: make(map[uint32]Entry),
		objects: make(map[uint32]Object),
		trailer: trailer,
		loaded:  make(map[Reference]Object),
		objStms: newCache[uint32, *objectStream](objStmCache),
	}
}

// NewRevision allocates a new, empty revision which is not yet part of a
// chain.  Objects added to the revision are held in memory.
func NewRevision(size int) *Revision {
	return newRevision(nil, SectionMemory, Dict{"Size": Integer(size)}, defaultObjectStreamCache)
}

func revisionFromSection(src ByteSource, sec *xrefSection, objStmCache int) *Revision {
	r := newRevision(src, sec.kind, sec.trailer, objStmCache)
	r.pos = sec.pos
	r.end = sec.end
	r.entries = sec.entries
	return r
}

// Trailer returns the trailer dictionary of the revision.
// The dictionary is owned by the revision and can be modified in place.
func (r *Revision) Trailer() Dict {
	return r.trailer
}

// Entry returns the cross-reference entry for object number n.
// The second return value is false, if the revision does not define n.
func (r *Revision) Entry(n uint32) (Entry, bool) {
	e, ok := r.entries[n]
	return e, ok
}

// Entries iterates over the cross-reference entries of the revision,
// in order of increasing object number.
func (r *Revision) Entries() iter.Seq2[uint32, Entry] {
	return func(yield func(uint32, Entry) bool) {
		for _, n := range r.numbers() {
			e, ok := r.entries[n]
			if !ok {
				// removed during iteration
				continue
			}
			if !yield(n, e) {
				return
			}
		}
	}
}

func (r *Revision) numbers() []uint32 {
	numbers := make([]uint32, 0, len(r.entries))
	for n := range r.entries {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	return numbers
}

// Len returns the number of object numbers defined by the revision.
func (r *Revision) Len() int {
	return len(r.entries)
}

// Size returns the value of /Size in the trailer.
func (r *Revision) Size() int {
	size, _ := r.trailer["Size"].(Integer)
	return int(size)
}

// Offset returns the byte offset of the cross-reference section the
// revision was read from, or -1 for revisions created in memory.
func (r *Revision) Offset() int64 {
	return r.pos
}

// End returns the byte offset just after the end-of-file marker following
// the revision's cross-reference section, or -1 if this is not known.
func (r *Revision) End() int64 {
	return r.end
}

// Kind returns how the revision was read.
func (r *Revision) Kind() SectionKind {
	return r.kind
}

// Object returns the object ref as defined by this revision.
// Containing object streams and indirect stream lengths are resolved
// through the chain the revision belongs to.
func (r *Revision) Object(ref Reference) (Object, Status, error) {
	n := ref.Number()
	e, ok := r.entries[n]
	if !ok {
		return nil, StatusNotFound, nil
	}

	switch e.Type {
	case EntryFree:
		return nil, StatusFree, nil
	case EntryInUse:
		if e.Generation != ref.Generation() {
			return nil, StatusNotFound, nil
		}
		if e.inMemory() {
			return r.objects[n], StatusFound, nil
		}
	case EntryPacked:
		if ref.Generation() != 0 {
			return nil, StatusNotFound, nil
		}
	default:
		panic("unknown entry type")
	}

	if obj, ok := r.loaded[ref]; ok {
		return obj, StatusFound, nil
	}

	var obj Object
	var err error
	if e.Type == EntryInUse {
		obj, err = r.loadDirect(ref, e.Offset)
	} else {
		obj, err = r.loadPacked(n, e)
	}
	if err != nil {
		return nil, StatusFound, err
	}
	r.loaded[ref] = obj
	return obj, StatusFound, nil
}

// Get returns the object ref as defined by this revision.
// Objects which the revision does not define are returned as nil.
// This implements the [Getter] interface.
func (r *Revision) Get(ref Reference) (Object, error) {
	obj, _, err := r.Object(ref)
	return obj, err
}

// Add stores obj in the revision under the reference ref.
// Any previous definition of the object number in this revision is replaced.
func (r *Revision) Add(ref Reference, obj Object) {
	n := ref.Number()
	r.entries[n] = memoryEntry(ref.Generation())
	r.objects[n] = obj
	r.forget(n)
	r.modified = true
	r.growSize(n)
}

// Free marks the object ref as deleted in this revision.  The tombstone
// hides all definitions of the object number in older revisions.
func (r *Revision) Free(ref Reference) {
	n := ref.Number()
	gen := ref.Generation()
	if gen < 65535 {
		gen++
	}
	r.entries[n] = FreeEntry(0, gen)
	delete(r.objects, n)
	r.forget(n)
	r.modified = true
	r.growSize(n)
}

// Remove removes the definition of object number n from the revision,
// so that lookups fall through to older revisions.
func (r *Revision) Remove(n uint32) {
	if _, ok := r.entries[n]; !ok {
		return
	}
	delete(r.entries, n)
	delete(r.objects, n)
	r.forget(n)
	r.modified = true
}

func (r *Revision) growSize(n uint32) {
	if int64(n) >= int64(r.Size()) {
		r.trailer["Size"] = Integer(int64(n) + 1)
	}
	if r.chain != nil {
		r.chain.used(n)
	}
}

// forget removes all cached values for object number n.
func (r *Revision) forget(n uint32) {
	for ref := range r.loaded {
		if ref.Number() == n {
			delete(r.loaded, ref)
		}
	}
	r.objStms.Clear()
}

// invalidate drops all cached values.  This must be called whenever the
// set of revisions which can be reached from r changes.
func (r *Revision) invalidate() {
	clear(r.loaded)
	r.objStms.Clear()
}

// clone returns a copy of the revision's entries, objects and trailer,
// not attached to any chain.
func (r *Revision) clone() *Revision {
	c := newRevision(r.src, r.kind, maps.Clone(r.trailer), r.objStms.capacity)
	c.pos = r.pos
	c.end = r.end
	c.entries = maps.Clone(r.entries)
	c.objects = maps.Clone(r.objects)
	c.modified = r.modified
	return c
}
