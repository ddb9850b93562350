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
	"io"
	"os"
)

// ByteSource gives random access to the bytes of a PDF file.
//
// [*bytes.Reader] implements this interface.  Files can be wrapped using
// [NewFileSource], or can be memory mapped using the mapfile package.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// ReadRange reads length bytes, starting at offset.  If the requested range
// extends beyond the end of src, an [*OutOfRangeError] is returned.
func ReadRange(src ByteSource, offset int64, length int) ([]byte, error) {
	size := src.Size()
	if offset < 0 || length < 0 || offset+int64(length) > size {
		return nil, &OutOfRangeError{
			Offset: offset,
			Length: int64(length),
			Size:   size,
		}
	}
	buf := make([]byte, length)
	n, err := src.ReadAt(buf, offset)
	if n == length {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

// FileSource is a [ByteSource] which reads from an open file.
type FileSource struct {
	*os.File
	size int64
}

// NewFileSource wraps an open file as a [ByteSource].  The size of the file
// is determined once, when NewFileSource is called.
func NewFileSource(fd *os.File) (*FileSource, error) {
	fi, err := fd.Stat()
	if err != nil {
		return nil, err
	}
	return &FileSource{File: fd, size: fi.Size()}, nil
}

// Size returns the size of the file in bytes.
func (f *FileSource) Size() int64 {
	return f.size
}
