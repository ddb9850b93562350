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
	"errors"
	"strconv"
)

var (
	// ErrLastRevision is returned when an operation would remove the only
	// remaining revision of a document.
	ErrLastRevision = errors.New("cannot delete the only revision")

	// ErrUnknownRevision is returned when a revision is passed to a chain
	// which does not contain it.
	ErrUnknownRevision = errors.New("revision is not part of the chain")

	// ErrDocumentCorrupt indicates that no usable objects could be found in
	// a file, even after scanning the file for object definitions.
	ErrDocumentCorrupt = errors.New("document is corrupt")

	// ErrNotIncremental is returned by [Chain.WriteIncremental] if the
	// revisions read from the original file have been changed.
	ErrNotIncremental = errors.New("chain cannot be written as an incremental update")

	errVersion = errors.New("unsupported PDF version")
)

// MalformedFileError indicates that an object in a PDF file could not be
// parsed.
type MalformedFileError struct {
	Pos int64
	Err error
}

func (err *MalformedFileError) Error() string {
	middle := ""
	if err.Err != nil {
		middle = ": " + err.Err.Error()
	}
	tail := ""
	if err.Pos > 0 {
		tail = " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return "not a valid PDF file" + middle + tail
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// MalformedSectionError indicates that a cross-reference section or its
// trailer is inconsistent.
type MalformedSectionError struct {
	// Pos is the byte offset of the section.
	Pos int64
	Err error
}

func (err *MalformedSectionError) Error() string {
	msg := "malformed xref section at byte " + strconv.FormatInt(err.Pos, 10)
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *MalformedSectionError) Unwrap() error {
	return err.Err
}

// OutOfRangeError is returned when data is requested beyond the end of a
// byte source or of an object stream.
type OutOfRangeError struct {
	Offset int64
	Length int64
	Size   int64
}

func (err *OutOfRangeError) Error() string {
	return "range " + strconv.FormatInt(err.Offset, 10) + "+" +
		strconv.FormatInt(err.Length, 10) + " exceeds data size " +
		strconv.FormatInt(err.Size, 10)
}

// IndexOutOfRangeError is returned when a revision index does not exist.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (err *IndexOutOfRangeError) Error() string {
	return "revision index " + strconv.Itoa(err.Index) +
		" out of range [0," + strconv.Itoa(err.Len) + ")"
}

func malformedSection(pos int64, err error) error {
	var sectionErr *MalformedSectionError
	if errors.As(err, &sectionErr) {
		return err
	}
	return &MalformedSectionError{Pos: pos, Err: err}
}
