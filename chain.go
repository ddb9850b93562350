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
)

// A Chain is the sequence of revisions of an incrementally updated PDF file.
// Index 0 is the newest revision; new objects are stored there.
// A chain always contains at least one revision.
//
// Chains are not safe for concurrent use.
type Chain struct {
	src     ByteSource
	version Version

	revisions []*Revision

	// original holds the revisions read from src, newest first.
	original []*Revision

	recoveryErr error
	objStmCache int
	depth       int

	// nextNumber is the smallest object number above all numbers used in
	// the chain, or 0 if this needs to be recomputed.
	nextNumber uint32
}

// New returns a chain with a single, empty revision.
func New(v Version) *Chain {
	c := &Chain{
		version:     v,
		objStmCache: defaultObjectStreamCache,
	}
	r := newRevision(nil, SectionMemory, Dict{"Size": Integer(1)}, c.objStmCache)
	r.chain = c
	c.revisions = []*Revision{r}
	return c
}

// Open reads the revision chain of the PDF file in src.
//
// If the cross-reference information is damaged, and opt does not ask for
// errors to be reported, the file is scanned for object definitions instead
// and the resulting chain consists of a single revision.  The reason for
// the recovery can be retrieved using [Chain.RecoveryErr].
func Open(src ByteSource, opt *ReaderOptions) (*Chain, error) {
	if opt == nil {
		opt = &ReaderOptions{}
	}

	c := &Chain{
		src:         src,
		objStmCache: opt.objStmCacheSize(),
	}

	// A missing header is not fatal.
	s := newScanner(src, 0, src.Size())
	if v, err := s.readHeaderVersion(); err == nil {
		c.version = v
	}

	revisions, err := c.readRevisions()
	if err != nil {
		if opt.ErrorHandling == ErrorHandlingReport {
			return nil, err
		}

		r := recoverRevision(src, c.objStmCache)
		if r.Len() == 0 {
			return nil, fmt.Errorf("%w: %w", ErrDocumentCorrupt, err)
		}
		c.recoveryErr = err
		revisions = []*Revision{r}
	}

	for _, r := range revisions {
		r.chain = c
	}
	c.revisions = revisions
	c.original = slices.Clone(revisions)
	return c, nil
}

// readRevisions follows the chain of cross-reference sections, starting
// at the last startxref keyword in the file.
func (c *Chain) readRevisions() ([]*Revision, error) {
	pos, err := findStartXRef(c.src)
	if err != nil {
		return nil, err
	}

	sr := newSectionReader(c.src)
	seen := make(map[int64]bool)
	var revisions []*Revision
	for pos >= 0 && !seen[pos] {
		seen[pos] = true

		sec, err := sr.readSection(pos)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, revisionFromSection(c.src, sec, c.objStmCache))
		pos = sec.prev
	}
	return revisions, nil
}

// RecoveryErr returns the error which caused the cross-reference structure
// of the file to be reconstructed, or nil if the file was read normally.
func (c *Chain) RecoveryErr() error {
	return c.recoveryErr
}

// Version returns the PDF version from the file header.
// Zero is returned if the version is not known.
func (c *Chain) Version() Version {
	return c.version
}

// SetVersion sets the PDF version used when the chain is written.
func (c *Chain) SetVersion(v Version) {
	c.version = v
}

// Len returns the number of revisions in the chain.
func (c *Chain) Len() int {
	return len(c.revisions)
}

// Current returns the newest revision.
func (c *Chain) Current() *Revision {
	return c.revisions[0]
}

// Revision returns the i-th revision, where 0 is the newest one.
func (c *Chain) Revision(i int) (*Revision, error) {
	if i < 0 || i >= len(c.revisions) {
		return nil, &IndexOutOfRangeError{Index: i, Len: len(c.revisions)}
	}
	return c.revisions[i], nil
}

// All iterates over the revisions of the chain, newest first.
func (c *Chain) All() iter.Seq2[int, *Revision] {
	return func(yield func(int, *Revision) bool) {
		for i := 0; i < len(c.revisions); i++ {
			if !yield(i, c.revisions[i]) {
				return
			}
		}
	}
}

// Lookup finds the object ref.  The newest revision which defines the
// object number decides the outcome.  Errors which occur while loading the
// object only affect this reference.
func (c *Chain) Lookup(ref Reference) (Object, Status, error) {
	n := ref.Number()
	for _, r := range c.revisions {
		if _, ok := r.entries[n]; ok {
			return r.Object(ref)
		}
	}
	return nil, StatusNotFound, nil
}

// Get returns the object ref.  Deleted and missing objects are returned as
// nil, which represents the PDF null object.
// This implements the [Getter] interface.
func (c *Chain) Get(ref Reference) (Object, error) {
	obj, _, err := c.Lookup(ref)
	return obj, err
}

// Add starts a new, empty revision.  The new revision becomes the current
// revision.
func (c *Chain) Add() *Revision {
	r := newRevision(nil, SectionMemory, Dict{"Size": Integer(c.Current().Size())}, c.objStmCache)
	r.chain = c
	c.revisions = slices.Insert(c.revisions, 0, r)
	return r
}

// Delete removes the i-th revision from the chain.  The entries of the
// remaining revisions are not changed; objects which were only deleted in
// the removed revision become visible again.
func (c *Chain) Delete(i int) error {
	if i < 0 || i >= len(c.revisions) {
		return &IndexOutOfRangeError{Index: i, Len: len(c.revisions)}
	}
	if len(c.revisions) == 1 {
		return ErrLastRevision
	}

	r := c.revisions[i]
	c.revisions = slices.Delete(c.revisions, i, i+1)
	r.chain = nil
	r.invalidate()
	c.invalidate()
	return nil
}

// DeleteRevision removes r from the chain.
func (c *Chain) DeleteRevision(r *Revision) error {
	i := slices.Index(c.revisions, r)
	if i < 0 {
		return ErrUnknownRevision
	}
	return c.Delete(i)
}

func (c *Chain) invalidate() {
	for _, r := range c.revisions {
		r.invalidate()
	}
	c.nextNumber = 0
}

// used records that object number n is in use somewhere in the chain.
func (c *Chain) used(n uint32) {
	if c.nextNumber != 0 && n >= c.nextNumber {
		c.nextNumber = n + 1
	}
}

// Alloc allocates a new object number.  The /Size entry of the current
// revision is increased accordingly.
func (c *Chain) Alloc() Reference {
	if c.nextNumber == 0 {
		c.nextNumber = c.scanNextNumber()
	}
	next := c.nextNumber
	if size := c.Current().Size(); size > 0 && int64(size) > int64(next) {
		next = uint32(size)
	}
	c.nextNumber = next + 1
	c.Current().trailer["Size"] = Integer(int64(next) + 1)
	return NewReference(next, 0)
}

// scanNextNumber returns the smallest object number which is not below the
// /Size of any revision and not used by any revision.
func (c *Chain) scanNextNumber() uint32 {
	var next uint32
	for _, r := range c.revisions {
		if size := r.Size(); size > 0 && int64(size) > int64(next) {
			next = uint32(size)
		}
		for n := range r.entries {
			if n >= next {
				next = n + 1
			}
		}
	}
	if next == 0 {
		// object 0 is always free
		next = 1
	}
	return next
}

// Put stores obj as the new value of ref in the current revision.
// If obj is nil, the object is marked as deleted instead.
func (c *Chain) Put(ref Reference, obj Object) {
	cur := c.Current()
	if obj == nil {
		cur.Free(ref)
	} else {
		cur.Add(ref, obj)
	}
}

// Trailer returns the effective trailer dictionary of the chain.
// Entries which describe the document as a whole are taken from the newest
// revision which contains them.  /Size is the maximum over all revisions.
// The returned dictionary is a new object which can be modified freely.
func (c *Chain) Trailer() Dict {
	res := Dict{}
	size := 0
	for _, r := range c.revisions {
		size = max(size, r.Size())
		for _, key := range documentKeys {
			if _, have := res[key]; have {
				continue
			}
			if val, ok := r.trailer[key]; ok {
				res[key] = val
			}
		}
	}
	res["Size"] = Integer(size)
	return res
}

// documentKeys lists the trailer entries which describe the document as a
// whole, rather than one cross-reference section.
var documentKeys = []Name{"Root", "Info", "ID", "Encrypt"}
