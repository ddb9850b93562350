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
	"os"

	"seehuhn.de/go/pdfrev"
)

// output holds the options shared by all commands which write a new file.
type output struct {
	Output     string `short:"o" required:"" help:"Name of the output file." type:"path"`
	XRefStream bool   `name:"xref-stream" help:"Use cross-reference streams instead of tables."`
}

// checkInput makes sure that the output file is different from the input
// file, which is still mapped into memory while the output is written.
func (o *output) checkInput(in string) error {
	fiOut, err := os.Stat(o.Output)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	fiIn, err := os.Stat(in)
	if err != nil {
		return err
	}
	if os.SameFile(fiIn, fiOut) {
		return errSameFile
	}
	return nil
}

var errSameFile = errors.New("output file must be different from the input file")

func (o *output) write(chain *pdfrev.Chain) error {
	out, err := os.Create(o.Output)
	if err != nil {
		return err
	}
	opt := &pdfrev.WriterOptions{
		XRefStream: o.XRefStream,
	}
	err = chain.Write(out, opt)
	if err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type deleteCmd struct {
	File     string `arg:"" help:"PDF file to read." type:"existingfile"`
	Revision int    `arg:"" help:"Index of the revision to remove, 0 is the newest."`
	Out      output `embed:""`
}

func (c *deleteCmd) Run() error {
	err := c.Out.checkInput(c.File)
	if err != nil {
		return err
	}
	doc, err := openDocument(c.File)
	if err != nil {
		return err
	}
	defer doc.Close()

	err = doc.chain.Delete(c.Revision)
	if err != nil {
		return err
	}
	return c.Out.write(doc.chain)
}

type mergeCmd struct {
	File string `arg:"" help:"PDF file to read." type:"existingfile"`
	From int    `arg:"" optional:"" default:"0" help:"Newest revision of the range."`
	To   int    `arg:"" optional:"" default:"-1" help:"Oldest revision of the range, -1 for the oldest revision of the file."`
	Out  output `embed:""`
}

func (c *mergeCmd) Run() error {
	err := c.Out.checkInput(c.File)
	if err != nil {
		return err
	}
	doc, err := openDocument(c.File)
	if err != nil {
		return err
	}
	defer doc.Close()

	to := c.To
	if to < 0 {
		to = doc.chain.Len() - 1
	}
	err = doc.chain.Merge(c.From, to)
	if err != nil {
		return err
	}
	return c.Out.write(doc.chain)
}
