package tray

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"testing"
)

func TestRenderIconPNG(t *testing.T) {
	data := renderIconPNG()
	if len(data) == 0 {
		t.Fatalf("renderIconPNG returned no data")
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode error = %v", err)
	}
	b := img.Bounds()
	if b.Dx() != iconSize || b.Dy() != iconSize {
		t.Errorf("icon size = %dx%d, want %dx%d", b.Dx(), b.Dy(), iconSize, iconSize)
	}
}

func TestIcoWrapPNG(t *testing.T) {
	pngData := renderIconPNG()
	ico := icoWrapPNG(pngData, iconSize)

	if len(ico) != 6+16+len(pngData) {
		t.Fatalf("ico length = %d, want %d", len(ico), 6+16+len(pngData))
	}
	if binary.LittleEndian.Uint16(ico[2:4]) != 1 {
		t.Errorf("ico type = %d, want 1", binary.LittleEndian.Uint16(ico[2:4]))
	}
	if binary.LittleEndian.Uint16(ico[4:6]) != 1 {
		t.Errorf("ico count = %d, want 1", binary.LittleEndian.Uint16(ico[4:6]))
	}
	if got := binary.LittleEndian.Uint32(ico[14:18]); got != uint32(len(pngData)) {
		t.Errorf("payload length field = %d, want %d", got, len(pngData))
	}
	if got := binary.LittleEndian.Uint32(ico[18:22]); got != 22 {
		t.Errorf("payload offset = %d, want 22", got)
	}
	if !bytes.Equal(ico[22:], pngData) {
		t.Errorf("payload does not match PNG data")
	}
}

func TestIconBytesCached(t *testing.T) {
	a := IconBytes()
	b := IconBytes()
	if len(a) == 0 {
		t.Fatalf("IconBytes returned no data")
	}
	if &a[0] != &b[0] {
		t.Errorf("IconBytes re-rendered instead of caching")
	}
}
