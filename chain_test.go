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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOpenTwoRevisions(t *testing.T) {
	c := openTwoRevisions(t)

	if c.Len() != 2 {
		t.Fatalf("expected 2 revisions, got %d", c.Len())
	}
	if c.RecoveryErr() != nil {
		t.Errorf("unexpected recovery: %v", c.RecoveryErr())
	}
	if c.Version() != V1_7 {
		t.Errorf("wrong version %s", c.Version())
	}

	type info struct {
		Offset, End int64
		Kind        SectionKind
		Len, Size   int
	}
	var got []info
	for _, r := range c.All() {
		got = append(got, info{r.Offset(), r.End(), r.Kind(), r.Len(), r.Size()})
	}
	want := []info{
		{178, 258, SectionTable, 1, 3},
		{47, 157, SectionTable, 3, 3},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("revisions differ (-want +got):\n%s", d)
	}

	e, ok := c.Current().Entry(2)
	if !ok || e != InUseEntry(158, 0) {
		t.Errorf("wrong entry for object 2: %s", e)
	}
	e, _ = mustRevision(t, c, 1).Entry(0)
	if e != FreeEntry(0, 65535) {
		t.Errorf("wrong entry for object 0: %s", e)
	}
}

func TestLookup(t *testing.T) {
	c := openTwoRevisions(t)

	cases := []struct {
		ref    Reference
		obj    Object
		status Status
	}{
		{NewReference(1, 0), Integer(10), StatusFound},
		{NewReference(2, 0), Integer(200), StatusFound},
		{NewReference(0, 0), nil, StatusFree},
		{NewReference(1, 1), nil, StatusNotFound},
		{NewReference(3, 0), nil, StatusNotFound},
	}
	for _, test := range cases {
		obj, status, err := c.Lookup(test.ref)
		if err != nil {
			t.Errorf("%s: %v", test.ref, err)
			continue
		}
		if obj != test.obj || status != test.status {
			t.Errorf("%s: got %v (%s), want %v (%s)",
				test.ref, obj, status, test.obj, test.status)
		}
	}

	// the older revision still has the old value
	obj, status, err := mustRevision(t, c, 1).Object(NewReference(2, 0))
	if err != nil || status != StatusFound || obj != Integer(20) {
		t.Errorf("got %v, %s, %v", obj, status, err)
	}
}

func TestAddRevision(t *testing.T) {
	c := openTwoRevisions(t)

	r := c.Add()
	if d := cmp.Diff(Dict{"Size": Integer(3)}, r.Trailer()); d != "" {
		t.Error(d)
	}
	if c.Current() != r {
		t.Error("new revision is not current")
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 revisions, got %d", c.Len())
	}

	ref := c.Alloc()
	if ref != NewReference(3, 0) {
		t.Errorf("wrong reference %s", ref)
	}
	c.Put(ref, Name("new"))
	c.Put(NewReference(1, 0), Integer(11))

	for ref, want := range map[Reference]Object{
		NewReference(1, 0): Integer(11),
		NewReference(2, 0): Integer(200),
		NewReference(3, 0): Name("new"),
	} {
		got, err := c.Get(ref)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%s: got %v, want %v", ref, got, want)
		}
	}
	if r.Size() != 4 {
		t.Errorf("wrong size %d", r.Size())
	}
}

func TestDeleteRevision(t *testing.T) {
	c := openTwoRevisions(t)
	r := c.Current()
	err := c.Delete(0)
	if err != nil {
		t.Fatal(err)
	}
	for _, other := range c.All() {
		if other == r {
			t.Error("deleted revision still present")
		}
	}
	if obj, _ := c.Get(NewReference(2, 0)); obj != Integer(20) {
		t.Errorf("got %v", obj)
	}

	c = openTwoRevisions(t)
	r = c.Current()
	err = c.DeleteRevision(r)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 || c.Current() == r {
		t.Error("revision not deleted")
	}

	err = c.DeleteRevision(r)
	if !errors.Is(err, ErrUnknownRevision) {
		t.Errorf("expected ErrUnknownRevision, got %v", err)
	}
}

func TestDeleteLastRevision(t *testing.T) {
	c := openTwoRevisions(t)

	var err error
	for err == nil {
		err = c.Delete(0)
	}
	if !errors.Is(err, ErrLastRevision) {
		t.Errorf("expected ErrLastRevision, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("expected one revision, got %d", c.Len())
	}
}

func TestRevisionIndex(t *testing.T) {
	c := openTwoRevisions(t)

	for _, i := range []int{-1, 2, 100} {
		_, err := c.Revision(i)
		var rangeErr *IndexOutOfRangeError
		if !errors.As(err, &rangeErr) || rangeErr.Index != i || rangeErr.Len != 2 {
			t.Errorf("Revision(%d): got %v", i, err)
		}
		err = c.Delete(i)
		if !errors.As(err, &rangeErr) {
			t.Errorf("Delete(%d): got %v", i, err)
		}
	}
}

func TestTombstone(t *testing.T) {
	c := openTwoRevisions(t)
	ref := NewReference(1, 0)

	c.Add()
	c.Current().Free(ref)

	obj, status, err := c.Lookup(ref)
	if err != nil || obj != nil || status != StatusFree {
		t.Errorf("got %v, %s, %v", obj, status, err)
	}

	// Removing the revision with the tombstone makes the old value
	// visible again.
	err = c.Delete(0)
	if err != nil {
		t.Fatal(err)
	}
	obj, status, err = c.Lookup(ref)
	if err != nil || obj != Integer(10) || status != StatusFound {
		t.Errorf("got %v, %s, %v", obj, status, err)
	}
}

func TestRemoveEntry(t *testing.T) {
	c := openTwoRevisions(t)
	c.Current().Remove(2)
	if obj, _ := c.Get(NewReference(2, 0)); obj != Integer(20) {
		t.Errorf("got %v", obj)
	}
	if c.Current().Len() != 0 {
		t.Error("entry not removed")
	}
}

func TestPrecedence(t *testing.T) {
	c := New(V1_7)
	ref := NewReference(5, 0)

	// object 5 is defined in all revisions, with different values
	c.Put(ref, Integer(0))
	for i := 1; i < 5; i++ {
		c.Add()
		c.Put(ref, Integer(i))
	}
	for {
		got, err := c.Get(ref)
		if err != nil {
			t.Fatal(err)
		}
		want := Integer(c.Len() - 1)
		if got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if c.Len() == 1 {
			break
		}
		err = c.Delete(0)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestAllRestartable(t *testing.T) {
	c := openTwoRevisions(t)
	c.Add()

	seq := c.All()
	for range 2 {
		var idx []int
		for i := range seq {
			idx = append(idx, i)
		}
		if d := cmp.Diff([]int{0, 1, 2}, idx); d != "" {
			t.Error(d)
		}
	}

	count := 0
	for range seq {
		count++
		break
	}
	if count != 1 {
		t.Error("early exit failed")
	}
}

func TestLookupErrorIsolated(t *testing.T) {
	c := openTwoRevisions(t)

	// object 5 points into the file header
	old := mustRevision(t, c, 1)
	old.entries[5] = InUseEntry(3, 0)

	_, status, err := c.Lookup(NewReference(5, 0))
	var malformed *MalformedFileError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedFileError, got %v", err)
	}
	if status != StatusFound {
		t.Errorf("wrong status %s", status)
	}

	obj, err := c.Get(NewReference(1, 0))
	if err != nil || obj != Integer(10) {
		t.Errorf("got %v, %v", obj, err)
	}
}

func TestWrongObjectNumber(t *testing.T) {
	c := openTwoRevisions(t)

	// object 7 points to the definition of object 1
	c.Current().entries[7] = InUseEntry(9, 0)
	_, err := c.Get(NewReference(7, 0))
	var malformed *MalformedFileError
	if !errors.As(err, &malformed) {
		t.Errorf("expected MalformedFileError, got %v", err)
	}
}

func TestPrevCycle(t *testing.T) {
	b := newFileBuilder("1.4")
	b.object(1, 0, "<< /Type /Catalog >>")
	pos := b.pos()
	b.buf.WriteString("xref\n0 2\n0000000000 65535 f\r\n0000000009 00000 n\r\n")
	fmt.Fprintf(&b.buf, "trailer\n<< /Size 2 /Root 1 0 R /Prev %d >>\n", pos)
	b.startxref(pos)

	c, err := Open(b.source(), &ReaderOptions{ErrorHandling: ErrorHandlingReport})
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 revision, got %d", c.Len())
	}
}

func TestChainTrailer(t *testing.T) {
	c := New(V2_0)
	c.Current().Trailer()["Root"] = NewReference(1, 0)
	c.Current().Trailer()["Info"] = NewReference(2, 0)
	r := c.Add()
	r.Trailer()["Root"] = NewReference(3, 0)
	r.Trailer()["Prev"] = Integer(100)

	want := Dict{
		"Root": NewReference(3, 0),
		"Info": NewReference(2, 0),
		"Size": Integer(1),
	}
	if d := cmp.Diff(want, c.Trailer()); d != "" {
		t.Errorf("trailer differs (-want +got):\n%s", d)
	}
}

func TestObjectStreamCache(t *testing.T) {
	data := buildObjStmFile(t)
	for _, size := range []int{-1, 0, 1} {
		c, err := Open(bytes.NewReader(data), &ReaderOptions{ObjectStreamCache: size})
		if err != nil {
			t.Fatal(err)
		}
		for range 2 {
			obj, err := c.Get(NewReference(2, 0))
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff(String("packed"), obj); d != "" {
				t.Error(d)
			}
			c.Current().invalidate()
		}
		if size < 0 && c.Current().objStms.Len() != 0 {
			t.Error("disabled cache was used")
		}
	}
}

func TestPackedIndexOutOfRange(t *testing.T) {
	b := newFileBuilder("1.5")
	catPos := b.object(1, 0, "<< /Type /Catalog >>")
	stmPos := b.stream(3, "/Type /ObjStm /N 1 /First 4", []byte("2 0 (packed)"))
	xrefPos := b.pos()
	data := xrefRecords(xrefWidths,
		[3]uint64{0, 0, 255},
		[3]uint64{1, uint64(catPos), 0},
		[3]uint64{2, 3, 0},
		[3]uint64{1, uint64(stmPos), 0},
		[3]uint64{1, uint64(xrefPos), 0},
		[3]uint64{2, 3, 7},
	)
	b.stream(4, "/Type /XRef /Size 6 /W [1 2 1] /Root 1 0 R", data)
	b.startxref(xrefPos)

	c, err := Open(b.source(), &ReaderOptions{ErrorHandling: ErrorHandlingReport})
	if err != nil {
		t.Fatal(err)
	}

	_, status, err := c.Lookup(NewReference(5, 0))
	var rangeErr *OutOfRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if rangeErr.Offset != 7 || rangeErr.Size != 1 {
		t.Errorf("wrong range error %v", rangeErr)
	}
	if !strings.Contains(err.Error(), "object stream 3: index 7") {
		t.Errorf("unexpected message %q", err)
	}
	if status != StatusFound {
		t.Errorf("wrong status %s", status)
	}

	obj, err := c.Get(NewReference(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(String("packed"), obj); d != "" {
		t.Error(d)
	}
}

func TestAllocCached(t *testing.T) {
	c := openTwoRevisions(t)
	r := c.Add()

	for i := range 100 {
		ref := c.Alloc()
		if want := NewReference(uint32(3+i), 0); ref != want {
			t.Fatalf("got %s, want %s", ref, want)
		}
	}
	if r.Size() != 103 {
		t.Errorf("wrong size %d", r.Size())
	}

	// numbers used in older revisions are never handed out
	oldest := mustRevision(t, c, 2)
	oldest.Add(NewReference(200, 0), Integer(1))
	if ref := c.Alloc(); ref != NewReference(201, 0) {
		t.Errorf("got %s, want 201 0 R", ref)
	}

	// after deleting the revision which held the allocated numbers,
	// the numbers are recomputed from the remaining revisions
	err := c.Delete(0)
	if err != nil {
		t.Fatal(err)
	}
	if ref := c.Alloc(); ref != NewReference(201, 0) {
		t.Errorf("got %s, want 201 0 R", ref)
	}
}

func mustRevision(t *testing.T, c *Chain, i int) *Revision {
	t.Helper()
	r, err := c.Revision(i)
	if err != nil {
		t.Fatal(err)
	}
	return r
}
