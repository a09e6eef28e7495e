// Package pixelformat is the lookup table for pixel format identifiers.
//
// Identifiers follow the GenICam PFNC layout: bits 16..23 carry the
// effective bits per pixel and bits 24..31 the color class.
package pixelformat

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// Format is a PFNC pixel format identifier.
type Format uint32

const (
	Mono1p   Format = 0x01010037
	Mono2p   Format = 0x01020038
	Mono4p   Format = 0x01040039
	Mono8    Format = 0x01080001
	Mono10   Format = 0x01100003
	Mono10p  Format = 0x010A0046
	Mono12   Format = 0x01100005
	Mono12p  Format = 0x010C0047
	Mono16   Format = 0x01100007
	BayerGR8 Format = 0x01080008
	BayerRG8 Format = 0x01080009
	BayerGB8 Format = 0x0108000A
	BayerBG8 Format = 0x0108000B

	BayerGR10  Format = 0x0110000C
	BayerRG10  Format = 0x0110000D
	BayerGB10  Format = 0x0110000E
	BayerBG10  Format = 0x0110000F
	BayerGR12  Format = 0x01100010
	BayerRG12  Format = 0x01100011
	BayerGB12  Format = 0x01100012
	BayerBG12  Format = 0x01100013
	BayerGR16  Format = 0x0110002E
	BayerRG16  Format = 0x0110002F
	BayerGB16  Format = 0x01100030
	BayerBG16  Format = 0x01100031
	RGB8       Format = 0x02180014
	BGR8       Format = 0x02180015
	RGBa8      Format = 0x02200016
	BGRa8      Format = 0x02200017
	RGB16      Format = 0x02300033
	YUV411_8   Format = 0x020C001E
	YUV422_8   Format = 0x02100032
	YCbCr8     Format = 0x0218005B
	Coord3DABC Format = 0x02600094
)

type info struct {
	name  string
	bayer bool
	// depth is the number of significant bits when it is smaller than
	// the container size, as for unpacked 10 and 12 bit formats.
	depth int
}

var table = map[Format]info{
	Mono1p:     {name: "Mono1p"},
	Mono2p:     {name: "Mono2p"},
	Mono4p:     {name: "Mono4p"},
	Mono8:      {name: "Mono8"},
	Mono10:     {name: "Mono10", depth: 10},
	Mono10p:    {name: "Mono10p"},
	Mono12:     {name: "Mono12", depth: 12},
	Mono12p:    {name: "Mono12p"},
	Mono16:     {name: "Mono16"},
	BayerGR8:   {name: "BayerGR8", bayer: true},
	BayerRG8:   {name: "BayerRG8", bayer: true},
	BayerGB8:   {name: "BayerGB8", bayer: true},
	BayerBG8:   {name: "BayerBG8", bayer: true},
	BayerGR10:  {name: "BayerGR10", bayer: true, depth: 10},
	BayerRG10:  {name: "BayerRG10", bayer: true, depth: 10},
	BayerGB10:  {name: "BayerGB10", bayer: true, depth: 10},
	BayerBG10:  {name: "BayerBG10", bayer: true, depth: 10},
	BayerGR12:  {name: "BayerGR12", bayer: true, depth: 12},
	BayerRG12:  {name: "BayerRG12", bayer: true, depth: 12},
	BayerGB12:  {name: "BayerGB12", bayer: true, depth: 12},
	BayerBG12:  {name: "BayerBG12", bayer: true, depth: 12},
	BayerGR16:  {name: "BayerGR16", bayer: true},
	BayerRG16:  {name: "BayerRG16", bayer: true},
	BayerGB16:  {name: "BayerGB16", bayer: true},
	BayerBG16:  {name: "BayerBG16", bayer: true},
	RGB8:       {name: "RGB8"},
	BGR8:       {name: "BGR8"},
	RGBa8:      {name: "RGBa8"},
	BGRa8:      {name: "BGRa8"},
	RGB16:      {name: "RGB16"},
	YUV411_8:   {name: "YUV411_8_UYYVYY"},
	YUV422_8:   {name: "YUV422_8"},
	YCbCr8:     {name: "YCbCr8"},
	Coord3DABC: {name: "Coord3D_ABC32f"},
}

var byName = func() map[string]Format {
	m := make(map[string]Format, len(table))
	for f, i := range table {
		m[strings.ToLower(i.name)] = f
	}
	return m
}()

// BitsPerPixel returns the effective bits per pixel encoded in f.
func (f Format) BitsPerPixel() int { return int(f>>16) & 0xFF }

// Depth returns the number of significant bits per pixel. It equals
// BitsPerPixel except for unpacked formats stored in a wider container.
func (f Format) Depth() int {
	if d := table[f].depth; d > 0 {
		return d
	}
	return f.BitsPerPixel()
}

// IsBayer reports whether f is a Bayer mosaic format.
func (f Format) IsBayer() bool { return table[f].bayer }

// IsMono reports whether f is a single-channel monochrome format.
func (f Format) IsMono() bool {
	i, ok := table[f]
	return ok && strings.HasPrefix(i.name, "Mono")
}

// Known reports whether f is in the table.
func (f Format) Known() bool {
	_, ok := table[f]
	return ok
}

func (f Format) String() string {
	if i, ok := table[f]; ok {
		return i.name
	}
	return fmt.Sprintf("PixelFormat(0x%08X)", uint32(f))
}

// Parse looks up a format by name, ignoring case.
func Parse(name string) (Format, error) {
	if f, ok := byName[strings.ToLower(name)]; ok {
		return f, nil
	}
	return 0, errkind.New(errkind.ErrInvalidValue, "pixelformat.Parse", "unknown pixel format %q", name)
}

// All returns every known format, ordered by identifier.
func All() []Format {
	out := make([]Format, 0, len(table))
	for f := range table {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}
