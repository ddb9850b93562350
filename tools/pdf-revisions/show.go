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

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"seehuhn.de/go/pdfrev"
)

type showCmd struct {
	File     string `arg:"" help:"PDF file to inspect." type:"existingfile"`
	Object   string `arg:"" help:"Object to show, as NUMBER or NUMBER.GENERATION."`
	Revision int    `short:"r" default:"-1" help:"Only consult the given revision, instead of the whole chain."`
	Data     bool   `help:"Write the decoded stream data to standard output."`
}

func (c *showCmd) Run() error {
	ref, err := parseReference(c.Object)
	if err != nil {
		return err
	}

	doc, err := openDocument(c.File)
	if err != nil {
		return err
	}
	defer doc.Close()

	var obj pdfrev.Object
	var status pdfrev.Status
	if c.Revision >= 0 {
		r, err := doc.chain.Revision(c.Revision)
		if err != nil {
			return err
		}
		obj, status, err = r.Object(ref)
		if err != nil {
			return err
		}
	} else {
		obj, status, err = doc.chain.Lookup(ref)
		if err != nil {
			return err
		}
	}

	if status != pdfrev.StatusFound {
		fmt.Printf("%s: %s\n", ref, status)
		return nil
	}

	stream, isStream := obj.(*pdfrev.Stream)
	if c.Data {
		if !isStream {
			return fmt.Errorf("%s is not a stream", ref)
		}
		r, err := stream.Decode()
		if err != nil {
			return err
		}
		_, err = io.Copy(os.Stdout, r)
		return err
	}

	if isStream {
		fmt.Println(pdfrev.Format(stream.Dict))
		fmt.Printf("... %d bytes of stream data ...\n", stream.N)
		return nil
	}
	fmt.Println(pdfrev.Format(obj))
	return nil
}

func parseReference(s string) (pdfrev.Reference, error) {
	numberString, genString, hasGen := strings.Cut(s, ".")
	number, err := strconv.ParseUint(numberString, 10, 32)
	if err != nil {
		return 0, errInvalidReference
	}
	var gen uint64
	if hasGen {
		gen, err = strconv.ParseUint(genString, 10, 16)
		if err != nil {
			return 0, errInvalidReference
		}
	}
	return pdfrev.NewReference(uint32(number), uint16(gen)), nil
}

var errInvalidReference = errors.New("invalid object reference (expected NUMBER or NUMBER.GENERATION)")
