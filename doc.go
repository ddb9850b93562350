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

// Package pdfrev reads and edits the revision history of incrementally
// updated PDF files.
//
// A PDF file which has been updated incrementally consists of the original
// file, followed by one or more update sections.  Each section lists only
// the objects it adds, changes or deletes.  This package represents such a
// file as a [Chain] of [Revision] values, where index 0 is the newest
// revision:
//
//	fd, err := os.Open("in.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fd.Close()
//	src, err := pdfrev.NewFileSource(fd)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	chain, err := pdfrev.Open(src, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	root, err := chain.Get(chain.Trailer()["Root"].(pdfrev.Reference))
//	...
//
// Objects are looked up by walking the chain from the newest to the oldest
// revision.  The first revision which mentions an object number decides
// the result: a free entry means that the object has been deleted.
//
// Revisions can be added, deleted and merged.  The result can be written
// as a new file using [Chain.Write], or appended to the original file using
// [Chain.WriteIncremental].
//
// If the cross-reference information of a file is damaged, [Open] scans the
// file for object definitions and builds a single revision from these.
//
// The following types implement the native PDF object types.
// All of these implement the [Object] interface:
//
//	Array
//	Bool
//	Dict
//	Integer
//	Name
//	Real
//	Reference
//	*Stream
//	String
package pdfrev
