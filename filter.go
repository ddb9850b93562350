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
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"seehuhn.de/go/pdfrev/internal/filter/ascii85"
	"seehuhn.de/go/pdfrev/internal/filter/asciihex"
	"seehuhn.de/go/pdfrev/internal/filter/runlength"
)

// maxDecodedSize limits the size of decoded streams which are read into
// memory, as protection against compression bombs.
const maxDecodedSize = 1 << 30

// decodeStream undoes the filters listed in a stream dictionary.
func decodeStream(dict Dict, raw io.Reader) (io.Reader, error) {
	var filters []Name
	var parms []Dict
	switch f := dict["Filter"].(type) {
	case nil:
		return raw, nil
	case Name:
		filters = []Name{f}
		p, _ := dict["DecodeParms"].(Dict)
		parms = []Dict{p}
	case Array:
		pa, _ := dict["DecodeParms"].(Array)
		for i, fi := range f {
			name, ok := fi.(Name)
			if !ok {
				return nil, fmt.Errorf("invalid filter %s", Format(fi))
			}
			filters = append(filters, name)
			var p Dict
			if i < len(pa) {
				p, _ = pa[i].(Dict)
			}
			parms = append(parms, p)
		}
	default:
		return nil, fmt.Errorf("invalid filter %s", Format(f))
	}

	r := raw
	for i, name := range filters {
		var err error
		r, err = applyFilter(r, name, parms[i])
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func applyFilter(r io.Reader, name Name, parms Dict) (io.Reader, error) {
	switch name {
	case "FlateDecode", "Fl":
		data, err := inflate(r)
		if err != nil {
			return nil, err
		}
		p, err := getPredictorParams(parms)
		if err != nil {
			return nil, err
		}
		data, err = p.undo(data)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	case "ASCIIHexDecode", "AHx":
		return asciihex.Decode(r), nil
	case "ASCII85Decode", "A85":
		return ascii85.Decode(r), nil
	case "RunLengthDecode", "RL":
		return runlength.Decode(r), nil
	default:
		return nil, fmt.Errorf("unsupported filter %q", name)
	}
}

// inflate reads zlib compressed data.  Some PDF writers produce truncated
// data or wrong checksums; whatever could be decompressed is returned in
// this case.
func inflate(r io.Reader) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	buf := &bytes.Buffer{}
	_, err = io.Copy(buf, io.LimitReader(zr, maxDecodedSize))
	if err != nil && buf.Len() == 0 {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deflate compresses data using the zlib format.
func deflate(data []byte) []byte {
	buf := &bytes.Buffer{}
	zw := zlib.NewWriter(buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

type predictorParams struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
}

func getPredictorParams(parms Dict) (*predictorParams, error) {
	p := &predictorParams{
		Predictor:        1,
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
	}
	for key, dst := range map[Name]*int{
		"Predictor":        &p.Predictor,
		"Colors":           &p.Colors,
		"BitsPerComponent": &p.BitsPerComponent,
		"Columns":          &p.Columns,
	} {
		if val, ok := parms[key].(Integer); ok {
			*dst = int(val)
		}
	}

	if p.Predictor == 1 {
		return p, nil
	}
	if p.Colors < 1 || p.Colors > 256 || p.Columns < 1 || p.Columns > 1<<20 {
		return nil, errInvalidPredictor
	}
	switch p.BitsPerComponent {
	case 1, 2, 4, 8, 16:
	default:
		return nil, errInvalidPredictor
	}
	if p.Predictor != 2 && (p.Predictor < 10 || p.Predictor > 15) {
		return nil, fmt.Errorf("unsupported predictor %d", p.Predictor)
	}
	return p, nil
}

func (p *predictorParams) bytesPerPixel() int {
	return (p.Colors*p.BitsPerComponent + 7) / 8
}

func (p *predictorParams) bytesPerRow() int {
	return (p.Colors*p.BitsPerComponent*p.Columns + 7) / 8
}

// undo reverses the effect of a TIFF or PNG predictor.
func (p *predictorParams) undo(data []byte) ([]byte, error) {
	switch {
	case p.Predictor == 1:
		return data, nil
	case p.Predictor == 2:
		if p.BitsPerComponent != 8 {
			return nil, errors.New("TIFF predictor only supported for 8 bits per component")
		}
		rowLen := p.bytesPerRow()
		for start := 0; start+rowLen <= len(data); start += rowLen {
			row := data[start : start+rowLen]
			for i := p.Colors; i < len(row); i++ {
				row[i] += row[i-p.Colors]
			}
		}
		return data, nil
	}

	// PNG predictors: every row is prefixed by a filter type byte
	bpp := p.bytesPerPixel()
	rowLen := p.bytesPerRow()
	prev := make([]byte, rowLen)
	res := make([]byte, 0, len(data))
	for start := 0; start < len(data); start += rowLen + 1 {
		if start+rowLen+1 > len(data) {
			return nil, errTruncatedPredictor
		}
		tp := data[start]
		row := data[start+1 : start+1+rowLen]
		for i := range row {
			var left, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch tp {
			case 0:
				// None
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d", tp)
			}
		}
		res = append(res, row...)
		copy(prev, row)
	}
	return res, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

var (
	errInvalidPredictor   = errors.New("invalid predictor parameters")
	errTruncatedPredictor = errors.New("truncated predictor data")
)
