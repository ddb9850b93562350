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

// Package mapfile gives read-only random access to the contents of a file.
//
// On unix systems the file is memory mapped, so that large PDF files can be
// opened without reading them into memory.  On other systems the file
// contents are read completely.
package mapfile

import (
	"errors"
	"io"
)

// File is a read-only view of a file's contents.
// A File is safe for concurrent use by multiple goroutines, until Close is
// called.
type File struct {
	data   []byte
	closer func([]byte) error
}

// ReadAt implements the [io.ReaderAt] interface.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f.data == nil && f.closer == nil {
		return 0, errClosed
	}
	if off < 0 {
		return 0, errNegativeOffset
	}
	if off >= int64(len(f.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the length of the file.
func (f *File) Size() int64 {
	return int64(len(f.data))
}

// Close releases the resources associated with the file.
// After Close, the contents can no longer be accessed.
func (f *File) Close() error {
	data := f.data
	closer := f.closer
	f.data = nil
	f.closer = nil
	if closer == nil {
		return nil
	}
	return closer(data)
}

var (
	errClosed         = errors.New("mapfile: file already closed")
	errNegativeOffset = errors.New("mapfile: negative offset")
)
