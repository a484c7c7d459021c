package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// Result is a decoded capture bitmap. Width and Height are native capture
// pixels, which may be a device-scale multiple of the logical rectangle that
// was requested. The pixel buffer is straight (non-premultiplied) RGBA and is
// exclusively owned by the caller until handed to a sink.
type Result struct {
	Image  *image.RGBA
	Width  int
	Height int
	Scale  float64
}

// EncodePNG serializes the bitmap for sinks that take encoded bytes
// (clipboard, delegation responses, stdout).
func (r *Result) EncodePNG() ([]byte, error) {
	if r == nil || r.Image == nil {
		return nil, fmt.Errorf("%w: empty result", ErrCaptureFailed)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Image); err != nil {
		return nil, fmt.Errorf("%w: png encode: %v", ErrCaptureFailed, err)
	}
	return buf.Bytes(), nil
}
