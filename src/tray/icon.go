package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"

	"golang.org/x/image/draw"
)

const (
	glyphSize = 64
	iconSize  = 16
)

var (
	iconOnce  sync.Once
	iconBytes []byte
)

// IconBytes returns the tray icon in the format the platform tray expects:
// ICO on Windows, PNG elsewhere. Rendered once and cached.
func IconBytes() []byte {
	iconOnce.Do(func() {
		pngData := renderIconPNG()
		if runtime.GOOS == "windows" {
			iconBytes = icoWrapPNG(pngData, iconSize)
		} else {
			iconBytes = pngData
		}
	})
	return iconBytes
}

// renderIconPNG draws the glyph oversized and downsamples so the dashed
// border stays crisp at 16px.
func renderIconPNG() []byte {
	big := renderGlyph(glyphSize)
	small := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	draw.CatmullRom.Scale(small, small.Bounds(), big, big.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, small); err != nil {
		return nil
	}
	return buf.Bytes()
}

// renderGlyph draws a dashed selection rectangle with a capture dot in the
// lower-right corner.
func renderGlyph(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	border := color.RGBA{R: 0x00, G: 0x78, B: 0xD4, A: 0xFF}
	dot := color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xFF}

	inset := size / 8
	dash := size / 8
	thick := size / 16
	if thick < 1 {
		thick = 1
	}
	lo, hi := inset, size-inset

	on := func(pos int) bool { return (pos/dash)%2 == 0 }
	for x := lo; x < hi; x++ {
		if !on(x - lo) {
			continue
		}
		for t := 0; t < thick; t++ {
			img.SetRGBA(x, lo+t, border)
			img.SetRGBA(x, hi-1-t, border)
		}
	}
	for y := lo; y < hi; y++ {
		if !on(y - lo) {
			continue
		}
		for t := 0; t < thick; t++ {
			img.SetRGBA(lo+t, y, border)
			img.SetRGBA(hi-1-t, y, border)
		}
	}

	// Capture dot overlapping the lower-right corner.
	cx, cy := hi-2*thick, hi-2*thick
	r := size / 10
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if x < 0 || y < 0 || x >= size || y >= size {
				continue
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, dot)
			}
		}
	}
	return img
}

// icoWrapPNG wraps PNG bytes in a single-image ICO container: a 6-byte
// ICONDIR plus one 16-byte ICONDIRENTRY. Windows accepts PNG-compressed
// entries for sizes up to 256.
func icoWrapPNG(pngData []byte, size int) []byte {
	var buf bytes.Buffer

	// ICONDIR: reserved, type 1 (icon), count 1.
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))

	dim := uint8(size)
	if size >= 256 {
		dim = 0
	}
	buf.WriteByte(dim) // width
	buf.WriteByte(dim) // height
	buf.WriteByte(0)   // palette count
	buf.WriteByte(0)   // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1))  // color planes
	binary.Write(&buf, binary.LittleEndian, uint16(32)) // bits per pixel
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&buf, binary.LittleEndian, uint32(6+16)) // data offset

	buf.Write(pngData)
	return buf.Bytes()
}
