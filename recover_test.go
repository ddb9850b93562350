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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRecoverBrokenStartXRef(t *testing.T) {
	broken := strings.Replace(twoRevisions, "startxref\n178", "startxref\n999", 1)

	_, err := Open(bytes.NewReader([]byte(broken)), &ReaderOptions{ErrorHandling: ErrorHandlingReport})
	var sectionErr *MalformedSectionError
	if !errors.As(err, &sectionErr) {
		t.Errorf("expected MalformedSectionError, got %v", err)
	}

	c, err := Open(bytes.NewReader([]byte(broken)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.RecoveryErr() == nil {
		t.Error("recovery not reported")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 revision, got %d", c.Len())
	}

	// the last definition of each object wins
	for ref, want := range map[Reference]Object{
		NewReference(1, 0): Integer(10),
		NewReference(2, 0): Integer(200),
	} {
		got, err := c.Get(ref)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%s: got %v, want %v", ref, got, want)
		}
	}

	// the last trailer is used, without the /Prev entry
	if d := cmp.Diff(Dict{"Size": Integer(3)}, c.Current().Trailer()); d != "" {
		t.Errorf("trailer differs (-want +got):\n%s", d)
	}
}

func TestRecoverNoTrailer(t *testing.T) {
	data := "%PDF-1.4\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"7 0 obj\n42\nendobj\n"
	c, err := Open(bytes.NewReader([]byte(data)), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := Dict{
		"Size": Integer(8),
		"Root": NewReference(1, 0),
	}
	if d := cmp.Diff(want, c.Trailer()); d != "" {
		t.Errorf("trailer differs (-want +got):\n%s", d)
	}
	if obj, _ := c.Get(NewReference(7, 0)); obj != Integer(42) {
		t.Errorf("got %v", obj)
	}
}

func TestRecoverSizeTooSmall(t *testing.T) {
	data := "%PDF-1.4\n" +
		"9 0 obj\n(x)\nendobj\n" +
		"trailer\n<< /Size 2 /Root 9 0 R >>\n%%EOF\n"
	c, err := Open(bytes.NewReader([]byte(data)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Current().Size() != 10 {
		t.Errorf("wrong size %d", c.Current().Size())
	}
}

func TestRecoverObjectStream(t *testing.T) {
	data := buildObjStmFile(t)
	// damage the startxref offset
	idx := bytes.LastIndex(data, []byte("startxref\n"))
	damaged := append(bytes.Clone(data[:idx]), "startxref\n1\n%%EOF\n"...)

	c, err := Open(bytes.NewReader(damaged), nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.RecoveryErr() == nil {
		t.Fatal("recovery not used")
	}
	r := c.Current()
	if e, _ := r.Entry(2); e != PackedEntry(3, 0) {
		t.Errorf("wrong entry for object 2: %s", e)
	}
	obj, err := c.Get(NewReference(2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(String("packed"), obj); d != "" {
		t.Error(d)
	}

	// the trailer comes from the cross-reference stream dictionary
	want := Dict{"Size": Integer(5), "Root": NewReference(1, 0)}
	if d := cmp.Diff(want, r.Trailer()); d != "" {
		t.Errorf("trailer differs (-want +got):\n%s", d)
	}
}

func TestRecoverChunkBoundary(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	for buf.Len() < recoverChunkSize-3 {
		buf.WriteString("% padding\n")
	}
	buf.Truncate(recoverChunkSize - 3)
	buf.WriteString("\n123 0 obj\n(boundary)\nendobj\n")

	src := bytes.NewReader(buf.Bytes())
	r := recoverRevision(src, 0)
	e, ok := r.Entry(123)
	if !ok || e != InUseEntry(recoverChunkSize-2, 0) {
		t.Fatalf("wrong entry %s", e)
	}
	if _, ok := r.Entry(23); ok {
		t.Error("partial object number recognised")
	}
	if _, ok := r.Entry(3); ok {
		t.Error("partial object number recognised")
	}

	obj, _, err := r.Object(NewReference(123, 0))
	if err != nil || Format(obj) != "(boundary)" {
		t.Errorf("got %s, %v", Format(obj), err)
	}
}

func TestRecoverCorrupt(t *testing.T) {
	for _, data := range []string{"", "hello world", "%PDF-1.7\n%%EOF\n"} {
		_, err := Open(bytes.NewReader([]byte(data)), nil)
		if !errors.Is(err, ErrDocumentCorrupt) {
			t.Errorf("%q: expected ErrDocumentCorrupt, got %v", data, err)
		}
	}
}

func TestRecoverEmpty(t *testing.T) {
	r := recoverRevision(bytes.NewReader(nil), 0)
	if r.Len() != 0 || r.Size() != 0 {
		t.Errorf("got %d entries, size %d", r.Len(), r.Size())
	}
}
