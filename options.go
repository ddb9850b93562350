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

// ErrorHandling determines how problems with the cross-reference structure
// of a file are dealt with.
type ErrorHandling int

// These are the possible values of [ErrorHandling].
const (
	// ErrorHandlingRecover replaces a damaged cross-reference chain by the
	// result of scanning the file for object definitions.
	ErrorHandlingRecover ErrorHandling = iota

	// ErrorHandlingReport returns errors in the cross-reference chain to
	// the caller.
	ErrorHandlingReport
)

// ReaderOptions control how a PDF file is opened.
// A nil *ReaderOptions is equivalent to the zero value.
type ReaderOptions struct {
	ErrorHandling ErrorHandling

	// ObjectStreamCache is the number of decoded object streams each
	// revision keeps in memory.  If this is zero, a default value is used.
	// Use a negative value to disable caching.
	ObjectStreamCache int
}

const defaultObjectStreamCache = 16

func (opt *ReaderOptions) objStmCacheSize() int {
	if opt == nil || opt.ObjectStreamCache == 0 {
		return defaultObjectStreamCache
	}
	if opt.ObjectStreamCache < 0 {
		return 0
	}
	return opt.ObjectStreamCache
}

// WriterOptions control how a chain is written.
// A nil *WriterOptions is equivalent to the zero value.
type WriterOptions struct {
	// Version is the PDF version written in the file header.
	// If this is zero, the version of the chain is used, or PDF 1.7 for
	// chains which have no version.
	Version Version

	// XRefStream selects cross-reference streams instead of
	// cross-reference tables.  This requires PDF 1.5 or newer.
	XRefStream bool
}
