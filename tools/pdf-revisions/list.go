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
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/term"

	"seehuhn.de/go/pdfrev"
	"seehuhn.de/go/pdfrev/mapfile"
)

// document is a PDF file opened for reading.
type document struct {
	file  *mapfile.File
	chain *pdfrev.Chain
}

func openDocument(name string) (*document, error) {
	file, err := mapfile.Open(name)
	if err != nil {
		return nil, err
	}

	opt := &pdfrev.ReaderOptions{}
	if cli.Strict {
		opt.ErrorHandling = pdfrev.ErrorHandlingReport
	}
	chain, err := pdfrev.Open(file, opt)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &document{file: file, chain: chain}, nil
}

func (doc *document) Close() error {
	return doc.file.Close()
}

type listCmd struct {
	File   string `arg:"" help:"PDF file to inspect." type:"existingfile"`
	Digest bool   `help:"Show a BLAKE3 digest of the file contents up to the end of each revision."`
}

func (c *listCmd) Run() error {
	doc, err := openDocument(c.File)
	if err != nil {
		return err
	}
	defer doc.Close()
	chain := doc.chain

	if err := chain.RecoveryErr(); err != nil {
		fmt.Printf("cross-reference data damaged, objects recovered by scanning\n  (%v)\n", err)
	}
	fmt.Printf("PDF version %s, %d revision(s)\n", chain.Version(), chain.Len())
	if producer := doc.producer(); producer != "" {
		fmt.Printf("producer: %s\n", producer)
	}
	fmt.Println()

	width := 0
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		width, _, _ = term.GetSize(fd)
	}

	header := fmt.Sprintf("%3s  %-9s  %10s  %7s  %7s  %5s", "#", "kind", "offset", "objects", "size", "free")
	if c.Digest {
		header += "  digest"
	}
	printLine(header, width)

	for i, r := range chain.All() {
		free := 0
		for _, e := range r.Entries() {
			if e.IsFree() {
				free++
			}
		}
		offset := "-"
		if r.Offset() >= 0 {
			offset = strconv.FormatInt(r.Offset(), 10)
		}
		line := fmt.Sprintf("%3d  %-9s  %10s  %7d  %7d  %5d",
			i, r.Kind(), offset, r.Len(), r.Size(), free)
		if c.Digest && r.End() > 0 {
			sum, err := digest(doc.file, r.End())
			if err != nil {
				return err
			}
			line += "  " + sum
		}
		printLine(line, width)
	}
	return nil
}

func (doc *document) producer() string {
	info, err := pdfrev.GetDict(doc.chain, doc.chain.Trailer()["Info"])
	if err != nil || info == nil {
		return ""
	}
	producer, err := pdfrev.GetString(doc.chain, info["Producer"])
	if err != nil {
		return ""
	}
	return producer.AsTextString()
}

// digest returns the BLAKE3 hash of the first n bytes of src.
func digest(src io.ReaderAt, n int64) (string, error) {
	h := blake3.New()
	_, err := io.Copy(h, io.NewSectionReader(src, 0, n))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}

// printLine prints s, truncated to the terminal width if width is positive.
func printLine(s string, width int) {
	if width > 0 && len(s) > width {
		s = s[:width-1] + "…"
	}
	fmt.Println(strings.TrimRight(s, " "))
}
