package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Thumbnail scales data down so that its longest side is at most maxDim
// pixels. Images already small enough are returned unchanged. The second
// return value is the content type of the result.
func Thumbnail(data []byte, maxDim int) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	contentType := "image/" + format
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return data, contentType, nil
	}

	tw, th := maxDim, h*maxDim/w
	if h > w {
		tw, th = w*maxDim/h, maxDim
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&out, dst, &jpeg.Options{Quality: 85})
	default:
		contentType = "image/png"
		err = png.Encode(&out, dst)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return out.Bytes(), contentType, nil
}
