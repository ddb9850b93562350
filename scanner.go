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
	"errors"
	"fmt"
	"io"
	"strconv"
)

const scannerBufSize = 1024

// scanner reads PDF tokens from a random-access byte source.  All positions
// are absolute offsets into the source.
type scanner struct {
	r    io.ReaderAt
	size int64

	buf            []byte
	bufStart       int64
	bufPos, bufEnd int

	// getInt is used to resolve indirect /Length entries of streams.
	// If getInt is nil, only direct lengths can be used.
	getInt func(Object) (Integer, error)
}

func newScanner(r io.ReaderAt, pos, size int64) *scanner {
	return &scanner{
		r:        r,
		size:     size,
		buf:      make([]byte, scannerBufSize),
		bufStart: pos,
	}
}

func (s *scanner) currentPos() int64 {
	return s.bufStart + int64(s.bufPos)
}

// seek moves the read position to the absolute offset pos.
func (s *scanner) seek(pos int64) {
	if pos >= s.bufStart && pos <= s.bufStart+int64(s.bufEnd) {
		s.bufPos = int(pos - s.bufStart)
		return
	}
	s.bufStart = pos
	s.bufPos = 0
	s.bufEnd = 0
}

// refill discards the consumed part of the buffer and reads as much new data
// as possible.  At the end of the input, fewer bytes than requested are
// available, but no error is returned.
func (s *scanner) refill() error {
	s.bufStart += int64(s.bufPos)
	copy(s.buf, s.buf[s.bufPos:s.bufEnd])
	s.bufEnd -= s.bufPos
	s.bufPos = 0

	readPos := s.bufStart + int64(s.bufEnd)
	want := int64(len(s.buf) - s.bufEnd)
	if avail := s.size - readPos; avail < want {
		want = avail
	}
	if want <= 0 {
		return nil
	}
	n, err := s.r.ReadAt(s.buf[s.bufEnd:s.bufEnd+int(want)], readPos)
	s.bufEnd += n
	if err == io.EOF {
		err = nil
	}
	return err
}

// Peek returns a view of the next n bytes of input.  The function panics, if n
// is larger than scannerBufSize.  At the end of input, short buffers without
// an error are returned.
func (s *scanner) Peek(n int) ([]byte, error) {
	if n > scannerBufSize {
		panic("peek window too large")
	}
	if s.bufPos+n > s.bufEnd {
		err := s.refill()
		if err != nil {
			return nil, err
		}
	}
	if s.bufPos+n > s.bufEnd {
		return s.buf[s.bufPos:s.bufEnd], nil
	}
	return s.buf[s.bufPos : s.bufPos+n], nil
}

// ScanBytes calls accept for every input byte, until accept returns false or
// the end of input is reached.  The byte rejected by accept is not consumed.
func (s *scanner) ScanBytes(accept func(c byte) bool) error {
	for {
		for s.bufPos < s.bufEnd {
			if !accept(s.buf[s.bufPos]) {
				return nil
			}
			s.bufPos++
		}
		err := s.refill()
		if err != nil {
			return err
		}
		if s.bufEnd == 0 {
			return nil
		}
	}
}

// SkipWhiteSpace skips all white space and comments.
func (s *scanner) SkipWhiteSpace() error {
	isComment := false
	return s.ScanBytes(func(c byte) bool {
		if isComment {
			if c == '\r' || c == '\n' {
				isComment = false
			}
		} else if c == '%' {
			isComment = true
		} else {
			return isSpace[c]
		}
		return true
	})
}

// SkipString consumes pat, or returns an error if the input does not
// continue with pat.
func (s *scanner) SkipString(pat string) error {
	n := len(pat)
	buf, err := s.Peek(n)
	if err != nil {
		return err
	}
	if string(buf) != pat {
		return &MalformedFileError{
			Pos: s.currentPos(),
			Err: fmt.Errorf("expected %q but found %q", pat, string(buf)),
		}
	}
	s.bufPos += n
	return nil
}

// hasKeyword checks whether the input continues with the keyword pat,
// followed by a white space character, a delimiter, or the end of input.
// The read position is not changed.
func (s *scanner) hasKeyword(pat string) bool {
	buf, err := s.Peek(len(pat) + 1)
	if err != nil || len(buf) < len(pat) || string(buf[:len(pat)]) != pat {
		return false
	}
	return len(buf) == len(pat) || isSpace[buf[len(pat)]] || isDelimiter[buf[len(pat)]]
}

// find returns the position of the next occurrence of pat, at or after the
// current position.  The read position is not changed.  If pat does not occur
// before limit, io.EOF is returned.
func (s *scanner) find(pat string, limit int64) (int64, error) {
	const chunkSize = 4096
	if limit > s.size {
		limit = s.size
	}
	k := int64(len(pat))
	buf := make([]byte, chunkSize)
	pos := s.currentPos()
	for pos+k <= limit {
		end := pos + chunkSize
		if end > limit {
			end = limit
		}
		n, err := s.r.ReadAt(buf[:end-pos], pos)
		if err != nil && err != io.EOF {
			return 0, err
		}
		idx := bytes.Index(buf[:n], []byte(pat))
		if idx >= 0 {
			return pos + int64(idx), nil
		}
		if n < int(end-pos) {
			break
		}
		pos = end - k + 1
	}
	return 0, io.EOF
}

// ReadInteger reads an integer.
func (s *scanner) ReadInteger() (Integer, error) {
	first := true
	var res []byte
	err := s.ScanBytes(func(c byte) bool {
		if first && (c == '+' || c == '-') {
			res = append(res, c)
		} else if c >= '0' && c <= '9' {
			res = append(res, c)
		} else {
			return false
		}
		first = false
		return true
	})
	if err != nil {
		return 0, err
	}

	x, err := strconv.ParseInt(string(res), 10, 64)
	if err != nil {
		return 0, &MalformedFileError{
			Pos: s.currentPos(),
			Err: errMalformedInteger,
		}
	}
	return Integer(x), nil
}

// ReadNumber reads an integer or real number.
func (s *scanner) ReadNumber() (Object, error) {
	pos := s.currentPos()
	hasDot := false
	first := true
	var res []byte
	err := s.ScanBytes(func(c byte) bool {
		if !hasDot && c == '.' {
			hasDot = true
			res = append(res, c)
		} else if first && (c == '+' || c == '-') {
			res = append(res, c)
		} else if c >= '0' && c <= '9' {
			res = append(res, c)
		} else {
			return false
		}
		first = false
		return true
	})
	if err != nil {
		return nil, err
	}

	if hasDot {
		if len(res) > 0 && res[len(res)-1] == '.' {
			res = append(res, '0')
		}
		x, err := strconv.ParseFloat(string(res), 64)
		if err != nil {
			return nil, &MalformedFileError{Pos: pos, Err: err}
		}
		return Real(x), nil
	}

	x, err := strconv.ParseInt(string(res), 10, 64)
	if err != nil {
		return nil, &MalformedFileError{Pos: pos, Err: errMalformedInteger}
	}
	return Integer(x), nil
}

// ReadQuotedString reads a ()-delimited string, starting after the opening
// bracket.
func (s *scanner) ReadQuotedString() (String, error) {
	res := []byte{}
	parenCount := 0
	escape := false
	ignoreLF := false
	isOctal := 0
	octalVal := byte(0)
	closed := false
	err := s.ScanBytes(func(c byte) bool {
		if ignoreLF {
			ignoreLF = false
			if c == '\n' {
				return true
			}
		}
		if isOctal > 0 {
			if c >= '0' && c <= '7' {
				octalVal = octalVal*8 + (c - '0')
				isOctal--
				if isOctal == 0 {
					res = append(res, octalVal)
				}
				return true
			}
			res = append(res, octalVal)
			isOctal = 0
		}
		if escape {
			escape = false
			switch c {
			case '\n':
				return true
			case '\r':
				ignoreLF = true
				return true
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			}
			if c >= '0' && c <= '7' {
				isOctal = 2
				octalVal = c - '0'
				return true
			}
		} else if c == '\\' {
			escape = true
			return true
		} else if c == '(' {
			parenCount++
		} else if c == ')' {
			if parenCount == 0 {
				closed = true
				return false
			}
			parenCount--
		} else if c == '\r' {
			c = '\n'
			ignoreLF = true
		}
		res = append(res, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	if isOctal > 0 {
		res = append(res, octalVal)
	}
	if !closed {
		return nil, &MalformedFileError{
			Pos: s.currentPos(),
			Err: io.ErrUnexpectedEOF,
		}
	}

	s.bufPos++ // we have already seen the closing ")".
	return String(res), nil
}

// ReadHexString reads a <>-delimited string, starting after the opening
// angled bracket.
func (s *scanner) ReadHexString() (String, error) {
	res := []byte{}
	var hexVal byte
	first := true
	err := s.ScanBytes(func(c byte) bool {
		var d byte
		if c >= '0' && c <= '9' {
			d = c - '0'
		} else if c >= 'A' && c <= 'F' {
			d = c - 'A' + 10
		} else if c >= 'a' && c <= 'f' {
			d = c - 'a' + 10
		} else if c == '>' {
			return false
		} else {
			return true
		}
		if first {
			hexVal = d
		} else {
			res = append(res, 16*hexVal+d)
		}
		first = !first
		return true
	})
	if err != nil {
		return nil, err
	}
	if !first {
		res = append(res, 16*hexVal)
	}

	// If we reach the end of the file, the trailing ">" will be missing.
	_ = s.SkipString(">")

	return String(res), nil
}

// ReadName reads a PDF name object.
func (s *scanner) ReadName() (Name, error) {
	err := s.SkipString("/")
	if err != nil {
		return "", err
	}

	hex := 0
	var hexByte byte
	var res []byte
	err = s.ScanBytes(func(c byte) bool {
		if hex > 0 {
			var val byte
			if c >= '0' && c <= '9' {
				val = c - '0'
			} else if c >= 'A' && c <= 'F' {
				val = c - 'A' + 10
			} else if c >= 'a' && c <= 'f' {
				val = c - 'a' + 10
			}
			hexByte = 16*hexByte + val
			hex--
			if hex == 0 {
				res = append(res, hexByte)
			}
		} else if c == '#' {
			hexByte = 0
			hex = 2
		} else if isSpace[c] || isDelimiter[c] {
			return false
		} else {
			res = append(res, c)
		}
		return true
	})
	if err != nil {
		return "", err
	}

	return Name(res), nil
}

// ReadArray reads an array, starting after the opening "[".
func (s *scanner) ReadArray() (Array, error) {
	array := Array{}
	for {
		err := s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 {
			return nil, &MalformedFileError{
				Pos: s.currentPos(),
				Err: io.ErrUnexpectedEOF,
			}
		}
		if buf[0] == ']' {
			break
		}

		obj, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		obj, err = s.maybeReference(obj)
		if err != nil {
			return nil, err
		}
		array = append(array, obj)
	}
	s.bufPos++ // we have already seen the closing "]"

	return array, nil
}

// ReadDict reads a PDF dictionary.
func (s *scanner) ReadDict() (Dict, error) {
	err := s.SkipString("<<")
	if err != nil {
		return nil, err
	}

	dict := Dict{}
	for {
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		buf, err := s.Peek(2)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 {
			return nil, &MalformedFileError{
				Pos: s.currentPos(),
				Err: io.ErrUnexpectedEOF,
			}
		}
		if buf[0] != '/' {
			break
		}

		key, err := s.ReadName()
		if err != nil {
			return nil, err
		}
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}

		val, err := s.ReadObject()
		if err != nil {
			return nil, err
		}
		val, err = s.maybeReference(val)
		if err != nil {
			return nil, err
		}

		if val != nil {
			dict[key] = val
		}
	}

	err = s.SkipString(">>")
	if err != nil {
		return nil, err
	}
	return dict, nil
}

// ReadObject reads a direct object.  If an integer is read, it is the
// caller's responsibility to check whether this is the start of a reference,
// using [scanner.maybeReference].
func (s *scanner) ReadObject() (Object, error) {
	pos := s.currentPos()
	buf, err := s.Peek(5) // len("false") == 5
	if err != nil {
		return nil, err
	}

	switch {
	case len(buf) == 0:
		return nil, &MalformedFileError{Pos: pos, Err: io.ErrUnexpectedEOF}
	case bytes.HasPrefix(buf, []byte("null")):
		s.bufPos += 4
		return nil, nil
	case bytes.HasPrefix(buf, []byte("true")):
		s.bufPos += 4
		return Bool(true), nil
	case bytes.HasPrefix(buf, []byte("false")):
		s.bufPos += 5
		return Bool(false), nil
	case buf[0] == '/':
		return s.ReadName()
	case buf[0] >= '0' && buf[0] <= '9', buf[0] == '+', buf[0] == '-', buf[0] == '.':
		return s.ReadNumber()
	case bytes.HasPrefix(buf, []byte("<<")):
		dict, err := s.ReadDict()
		if err != nil {
			return nil, err
		}

		// check whether this is the start of a stream
		afterDict := s.currentPos()
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		if !s.hasKeyword("stream") {
			s.seek(afterDict)
			return dict, nil
		}
		return s.ReadStreamData(dict)
	case buf[0] == '(':
		s.bufPos++
		return s.ReadQuotedString()
	case buf[0] == '<':
		s.bufPos++
		return s.ReadHexString()
	case buf[0] == '[':
		s.bufPos++
		return s.ReadArray()
	}
	return nil, &MalformedFileError{
		Pos: pos,
		Err: fmt.Errorf("unexpected character %q", buf[0]),
	}
}

// maybeReference checks whether the integer obj is the start of an indirect
// reference "n g R".  If so, the rest of the reference is consumed and the
// reference is returned.  Otherwise, obj is returned and the read position is
// left unchanged.
func (s *scanner) maybeReference(obj Object) (Object, error) {
	number, ok := obj.(Integer)
	if !ok || number < 0 || number > 0xFFFFFFFF {
		return obj, nil
	}
	start := s.currentPos()

	err := s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	buf, err := s.Peek(1)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 || buf[0] < '0' || buf[0] > '9' {
		s.seek(start)
		return obj, nil
	}
	generation, err := s.ReadInteger()
	if err != nil || generation > 0xFFFF {
		s.seek(start)
		return obj, nil
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, err
	}
	if !s.hasKeyword("R") {
		s.seek(start)
		return obj, nil
	}
	s.bufPos++
	return NewReference(uint32(number), uint16(generation)), nil
}

// ReadIndirectObject reads an indirect object "n g obj ... endobj".
func (s *scanner) ReadIndirectObject() (Object, Reference, error) {
	// Some files point the xref entries at the end of the previous line.
	// Try to fix this up by skipping any leading white space.
	err := s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}
	pos := s.currentPos()

	number, err := s.ReadInteger()
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}
	generation, err := s.ReadInteger()
	if err != nil {
		return nil, 0, err
	}
	if number < 0 || number > 0xFFFFFFFF || generation < 0 || generation > 0xFFFF {
		return nil, 0, &MalformedFileError{
			Pos: pos,
			Err: errors.New("invalid object number"),
		}
	}
	ref := NewReference(uint32(number), uint16(generation))

	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipString("obj")
	if err != nil {
		return nil, 0, err
	}
	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}

	if s.hasKeyword("endobj") {
		// empty objects are treated as null
		s.bufPos += len("endobj")
		return nil, ref, nil
	}

	obj, err := s.ReadObject()
	if err != nil {
		return nil, 0, err
	}
	obj, err = s.maybeReference(obj)
	if err != nil {
		return nil, 0, err
	}

	err = s.SkipWhiteSpace()
	if err != nil {
		return nil, 0, err
	}
	// A missing "endobj" is tolerated.
	if s.hasKeyword("endobj") {
		s.bufPos += len("endobj")
	}

	return obj, ref, nil
}

// ReadStreamData reads the data of a PDF Stream, starting after the Dict.
func (s *scanner) ReadStreamData(dict Dict) (*Stream, error) {
	err := s.SkipString("stream")
	if err != nil {
		return nil, err
	}
	buf, err := s.Peek(2)
	if err != nil {
		return nil, err
	}
	if len(buf) >= 2 && buf[0] == '\r' && buf[1] == '\n' {
		s.bufPos += 2
	} else if len(buf) >= 1 && (buf[0] == '\n' || buf[0] == '\r') {
		s.bufPos++
	}
	start := s.currentPos()

	length := int64(-1)
	if lengthObj, ok := dict["Length"]; ok {
		var l Integer
		if x, isInt := lengthObj.(Integer); isInt {
			l = x
		} else if s.getInt != nil {
			l, err = s.getInt(lengthObj)
			if err != nil {
				l = -1
			}
		} else {
			l = -1
		}
		if l >= 0 && start+int64(l) <= s.size {
			length = int64(l)
		}
	}

	if length >= 0 {
		s.seek(start + length)
		err = s.SkipWhiteSpace()
		if err != nil {
			return nil, err
		}
		if !s.hasKeyword("endstream") {
			length = -1
		}
	}
	if length < 0 {
		// The /Length is missing or wrong.  Use the position of the
		// "endstream" keyword instead.
		s.seek(start)
		end, err := s.find("endstream", s.size)
		if err != nil {
			return nil, &MalformedFileError{
				Pos: start,
				Err: errors.New("stream without endstream"),
			}
		}
		length = end - start
		eol := make([]byte, 2)
		if end-2 >= start {
			_, err = s.r.ReadAt(eol, end-2)
		} else {
			err = io.ErrUnexpectedEOF
		}
		if err == nil {
			if eol[0] == '\r' && eol[1] == '\n' {
				length -= 2
			} else if eol[1] == '\n' || eol[1] == '\r' {
				length--
			}
		}
		s.seek(end)
	}
	err = s.SkipString("endstream")
	if err != nil {
		return nil, err
	}

	return &Stream{
		Dict: dict,
		R:    io.NewSectionReader(s.r, start, length),
		N:    length,
	}, nil
}

// readHeaderVersion reads the "%PDF-x.y" header at the start of the file.
func (s *scanner) readHeaderVersion() (Version, error) {
	buf, err := s.Peek(16)
	if err != nil {
		return 0, err
	}
	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 || len(buf) < idx+8 {
		return 0, &MalformedFileError{
			Err: errors.New("PDF header not found"),
		}
	}
	buf = buf[idx+5:]
	if len(buf) > 3 && buf[3] >= '0' && buf[3] <= '9' {
		return 0, &MalformedFileError{Pos: int64(idx + 5), Err: errVersion}
	}
	return ParseVersion(string(buf[:3]))
}

var errMalformedInteger = errors.New("malformed integer")

var isSpace = [256]bool{
	0:  true,
	9:  true,
	10: true,
	12: true,
	13: true,
	32: true,
}

var isDelimiter = [256]bool{
	'(': true,
	')': true,
	'<': true,
	'>': true,
	'[': true,
	']': true,
	'{': true,
	'}': true,
	'/': true,
	'%': true,
}
