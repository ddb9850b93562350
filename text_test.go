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

import "testing"

func TestAsTextString(t *testing.T) {
	cases := []struct {
		in   String
		want string
	}{
		{String("plain ASCII"), "plain ASCII"},
		{String{0xFE, 0xFF, 0x00, 0x48, 0x00, 0x69, 0x20, 0xAC}, "Hi€"},
		{String{0xFE, 0xFF, 0xD8, 0x3D, 0xDE, 0x00}, "😀"},
		{String{0xEF, 0xBB, 0xBF, 'a', 0xC3, 0xA4}, "aä"},
		{String{'a', 0xE4, 0x80, 0x92}, "aä•™"},
		{String{0x84, 0xA0}, "—€"},
		{String{}, ""},
	}
	for _, test := range cases {
		got := test.in.AsTextString()
		if got != test.want {
			t.Errorf("%x: got %q, want %q", []byte(test.in), got, test.want)
		}
	}
}
