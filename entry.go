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

import "fmt"

// EntryType distinguishes the three kinds of cross-reference entries.
type EntryType uint8

// These are the possible values of [EntryType].
const (
	// EntryFree marks an object number as not in use.
	EntryFree EntryType = iota

	// EntryInUse gives the byte offset of an object.
	EntryInUse

	// EntryPacked locates an object inside an object stream.
	EntryPacked
)

func (tp EntryType) String() string {
	switch tp {
	case EntryFree:
		return "free"
	case EntryInUse:
		return "in use"
	case EntryPacked:
		return "packed"
	default:
		return fmt.Sprintf("pdfrev.EntryType(%d)", uint8(tp))
	}
}

// Entry is a cross-reference entry, describing the state of one object
// number in one revision.
//
// The fields which are used depend on Type:
//   - EntryFree: Generation, and NextFree (the next free object number).
//   - EntryInUse: Offset and Generation.  Objects which are held in memory
//     by a revision have no offset; Offset is -1 for these.
//   - EntryPacked: Container and Index.  The generation of packed objects
//     is always 0.
type Entry struct {
	Type       EntryType
	Generation uint16

	Offset   int64
	NextFree uint32

	Container uint32
	Index     int

	// memory is set for objects held in memory by a revision.
	memory bool
}

// FreeEntry returns an entry for a deleted object.
func FreeEntry(nextFree uint32, generation uint16) Entry {
	return Entry{Type: EntryFree, NextFree: nextFree, Generation: generation}
}

// InUseEntry returns an entry for an object stored at the given byte offset.
func InUseEntry(offset int64, generation uint16) Entry {
	return Entry{Type: EntryInUse, Offset: offset, Generation: generation}
}

// PackedEntry returns an entry for an object stored in an object stream.
func PackedEntry(container uint32, index int) Entry {
	return Entry{Type: EntryPacked, Container: container, Index: index}
}

// memoryEntry returns the entry used for objects held in memory.
func memoryEntry(generation uint16) Entry {
	return Entry{Type: EntryInUse, Offset: -1, Generation: generation, memory: true}
}

// IsFree reports whether the entry marks a deleted object.
func (e Entry) IsFree() bool {
	return e.Type == EntryFree
}

// inMemory reports whether the object is held directly by its revision.
func (e Entry) inMemory() bool {
	return e.Type == EntryInUse && e.memory
}

func (e Entry) String() string {
	switch e.Type {
	case EntryFree:
		return fmt.Sprintf("free (next %d, gen %d)", e.NextFree, e.Generation)
	case EntryInUse:
		if e.memory {
			return fmt.Sprintf("in memory (gen %d)", e.Generation)
		}
		return fmt.Sprintf("offset %d (gen %d)", e.Offset, e.Generation)
	case EntryPacked:
		return fmt.Sprintf("object stream %d, index %d", e.Container, e.Index)
	default:
		return e.Type.String()
	}
}
