package icons

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Encode decodes a PNG, scales it to fit a size x size square keeping its
// aspect ratio, and returns the re-encoded PNG as base64.
func Encode(raw []byte, size int) (string, error) {
	src, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode icon: %w", err)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, fitRect(src.Bounds(), size), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", fmt.Errorf("encode icon: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// fitRect centres the scaled source inside the square canvas.
func fitRect(b image.Rectangle, size int) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, size, size)
	}
	if w >= h {
		sh := h * size / w
		y := (size - sh) / 2
		return image.Rect(0, y, size, y+sh)
	}
	sw := w * size / h
	x := (size - sw) / 2
	return image.Rect(x, 0, x+sw, size)
}
