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

package mapfile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOpen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.pdf")
	contents := []byte("%PDF-1.7\n1 0 obj\n42\nendobj\n")
	err := os.WriteFile(name, contents, 0o644)
	if err != nil {
		t.Fatal(err)
	}

	f, err := Open(name)
	if err != nil {
		t.Fatal(err)
	}
	if f.Size() != int64(len(contents)) {
		t.Errorf("wrong size %d", f.Size())
	}

	all, err := io.ReadAll(io.NewSectionReader(f, 0, f.Size()))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(contents, all); d != "" {
		t.Error(d)
	}

	buf := make([]byte, 8)
	n, err := f.ReadAt(buf, f.Size()-4)
	if err != io.EOF || n != 4 {
		t.Errorf("got %d, %v", n, err)
	}

	err = f.Close()
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.ReadAt(buf, 0)
	if err == nil {
		t.Error("read after close succeeded")
	}
}

func TestOpenEmpty(t *testing.T) {
	name := filepath.Join(t.TempDir(), "empty")
	err := os.WriteFile(name, nil, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f, err := Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if f.Size() != 0 {
		t.Errorf("wrong size %d", f.Size())
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
