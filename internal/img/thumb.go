// internal/img/thumb.go
package img

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Cover decodes src, scales and crops it to exactly w x h around the center
// and encodes the result as PNG.
func Cover(src []byte, w, h int) ([]byte, error) {
	decoded, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return encodePNG(imaging.Fill(decoded, w, h, imaging.Center, imaging.Lanczos))
}

func encodePNG(m image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, m, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
