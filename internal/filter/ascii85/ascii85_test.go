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

package ascii85

import (
	"bytes"
	"encoding/ascii85"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
)

func encode(data []byte) []byte {
	buf := make([]byte, ascii85.MaxEncodedLen(len(data)))
	n := ascii85.Encode(buf, data)
	return append(buf[:n], '~', '>')
}

func TestDecode(t *testing.T) {
	cases := [][]byte{
		{},
		{1},
		{1, 2},
		{1, 2, 3},
		{1, 2, 3, 4},
		{0, 0, 0, 0},
		{0, 0, 0, 0, 0},
		[]byte("Man is distinguished, not only by his reason"),
		bytes.Repeat([]byte{0xFF, 0x00, 0x7F}, 700),
	}
	for _, data := range cases {
		got, err := io.ReadAll(Decode(bytes.NewReader(encode(data))))
		if err != nil {
			t.Errorf("%v: %v", data, err)
			continue
		}
		if d := cmp.Diff(data, got); d != "" {
			t.Errorf("(-want +got):\n%s", d)
		}

		r := Decode(iotest.OneByteReader(bytes.NewReader(encode(data))))
		got, err = io.ReadAll(iotest.OneByteReader(r))
		if err != nil {
			t.Errorf("%v: %v", data, err)
			continue
		}
		if d := cmp.Diff(data, got); d != "" {
			t.Errorf("one byte reads (-want +got):\n%s", d)
		}
	}
}

func TestDecodeWhiteSpace(t *testing.T) {
	got, err := io.ReadAll(Decode(strings.NewReader("9jqo^\nBlbD-\r\n BleB1 z~>")))
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("Man is disti\x00\x00\x00\x00")
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("(-want +got):\n%s", d)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []string{
		"9jqo^",    // missing end marker
		"9jqo^~x",  // broken end marker
		"9~>",      // single character in final group
		"9jqo^v~>", // invalid character
		"9jzo^~>",  // z inside a group
	}
	for _, in := range cases {
		_, err := io.ReadAll(Decode(strings.NewReader(in)))
		if err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}
