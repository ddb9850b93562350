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
	"testing"

	"seehuhn.de/go/pdfrev/internal/debug/memfile"
)

func FuzzParseObject(f *testing.F) {
	f.Add([]byte("null"))
	f.Add([]byte("<</Type/Catalog/Pages 2 0 R>>"))
	f.Add([]byte("[1 2.5 (a\\)b) <FEFF> /N#20x true]"))
	f.Add([]byte("(\\101\\n\r\n)"))

	f.Fuzz(func(t *testing.T, data []byte) {
		obj1, err := ParseObject(data)
		if err != nil {
			return
		}
		out1 := Format(obj1)

		obj2, err := ParseObject([]byte(out1))
		if err != nil {
			t.Fatalf("%q: %v", out1, err)
		}
		out2 := Format(obj2)

		if out1 != out2 {
			t.Errorf("results differ:\n%q\n%q", out1, out2)
		}
	})
}

func FuzzOpen(f *testing.F) {
	f.Add([]byte(twoRevisions))
	f.Add(buildXRefStreamFile(" /Filter /FlateDecode", deflate))
	f.Add(buildObjStmFile(f))

	c := New(V1_7)
	c.Put(c.Alloc(), Dict{"Type": Name("Catalog")})
	c.Add()
	c.Put(c.Alloc(), NewStream(Dict{"Test": Bool(true)}, []byte("test stream")))
	buf := &bytes.Buffer{}
	err := c.Write(buf, &WriterOptions{XRefStream: true})
	if err != nil {
		f.Fatal(err)
	}
	f.Add(buf.Bytes())

	f.Fuzz(func(t *testing.T, raw []byte) {
		c1, err := Open(bytes.NewReader(raw), nil)
		if err != nil {
			return
		}
		out := memfile.New()
		err = c1.Write(out, nil)
		if err != nil {
			return
		}

		c2, err := Open(out, &ReaderOptions{ErrorHandling: ErrorHandlingReport})
		if err != nil {
			t.Fatal(err)
		}
		if c2.Len() != c1.Len() {
			t.Fatalf("revision count changed from %d to %d", c1.Len(), c2.Len())
		}

		r := c1.Current()
		for n, e := range r.Entries() {
			if e.IsFree() {
				continue
			}
			ref := NewReference(n, e.Generation)
			obj1, err := c1.Get(ref)
			if err != nil {
				t.Fatal(err)
			}
			if _, isStream := obj1.(*Stream); isStream {
				continue
			}
			obj2, err := c2.Get(ref)
			if err != nil {
				t.Fatal(err)
			}
			if Format(obj1) != Format(obj2) {
				t.Errorf("%s changed from %s to %s", ref, Format(obj1), Format(obj2))
			}
		}
	})
}
