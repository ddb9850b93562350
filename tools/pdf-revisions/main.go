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
	"log"

	"github.com/alecthomas/kong"

	"seehuhn.de/go/pdfrev/tools/internal/buildinfo"
	"seehuhn.de/go/pdfrev/tools/internal/profile"
)

var cli struct {
	CPUProfile string `name:"cpuprofile" help:"Write cpu profile to file." type:"path" placeholder:"FILE"`
	MemProfile string `name:"memprofile" help:"Write memory profile to file." type:"path" placeholder:"FILE"`
	Strict     bool   `help:"Fail on damaged cross-reference data, instead of scanning the file."`

	List    listCmd    `cmd:"" help:"List the revisions of a PDF file."`
	Show    showCmd    `cmd:"" help:"Show an object, as seen by the chain or by one revision."`
	Delete  deleteCmd  `cmd:"" help:"Remove a revision and write the result to a new file."`
	Merge   mergeCmd   `cmd:"" help:"Merge a range of revisions and write the result to a new file."`
	Version versionCmd `cmd:"" help:"Print version information."`
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("pdf-revisions: ")

	ctx := kong.Parse(&cli,
		kong.Name("pdf-revisions"),
		kong.Description("Inspect and edit the revision history of incrementally updated PDF files."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	stop, err := profile.Start(cli.CPUProfile, cli.MemProfile)
	if err != nil {
		log.Fatal(err)
	}
	err = ctx.Run()
	stop()
	ctx.FatalIfErrorf(err)
}

type versionCmd struct{}

func (versionCmd) Run() error {
	log.SetPrefix("")
	log.Print(buildinfo.Short("pdf-revisions"))
	return nil
}
