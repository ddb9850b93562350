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

package memfile

import (
	"errors"
	"io"
)

// MemFile is a temporary in-memory file.
//
// This type implements the [io.ReadWriteSeeker] and [io.ReaderAt]
// interfaces.  Together with the Size method, this makes a MemFile usable
// as a pdfrev.ByteSource.
type MemFile struct {
	// Data are the file contents.
	Data []byte

	// Offset is the current file offset, used by Read, Write and Seek.
	Offset int64
}

// New creates a new, empty MemFile.
func New() *MemFile {
	return &MemFile{}
}

// FromBytes returns a MemFile with the given contents.
// The data is not copied.
func FromBytes(data []byte) *MemFile {
	return &MemFile{Data: data}
}

// Size returns the current length of the file.
func (f *MemFile) Size() int64 {
	return int64(len(f.Data))
}

// Write writes data at the current offset.
// This implements the [io.Writer] interface.
func (f *MemFile) Write(p []byte) (n int, err error) {
	if f.Offset > int64(len(f.Data)) {
		f.Data = append(f.Data, make([]byte, f.Offset-int64(len(f.Data)))...)
	}

	if f.Offset == int64(len(f.Data)) {
		f.Data = append(f.Data, p...)
	} else {
		n = copy(f.Data[f.Offset:], p)
		f.Data = append(f.Data, p[n:]...)
	}

	f.Offset += int64(len(p))
	return len(p), nil
}

// Read reads data from the current offset.
// This implements the [io.Reader] interface.
func (f *MemFile) Read(p []byte) (n int, err error) {
	n, err = f.ReadAt(p, f.Offset)
	f.Offset += int64(n)
	return n, err
}

// ReadAt reads len(p) bytes starting at offset off.  The current offset is
// not used or changed.
// This implements the [io.ReaderAt] interface.
func (f *MemFile) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errInvalidOffset
	}
	if off >= int64(len(f.Data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n = copy(p, f.Data[off:])
	if n < len(p) {
		err = io.EOF
	}
	return n, err
}

// Seek sets the offset in the file.
// This implements the [io.Seeker] interface.
func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = f.Offset + offset
	case io.SeekEnd:
		newOffset = int64(len(f.Data)) + offset
	default:
		return 0, errInvalidWhence
	}

	if newOffset < 0 {
		return 0, errInvalidOffset
	}

	f.Offset = newOffset
	return newOffset, nil
}

var (
	errInvalidWhence = errors.New("invalid whence")
	errInvalidOffset = errors.New("invalid offset")
)
