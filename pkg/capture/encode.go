package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Decoders for DirSource inputs.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

// EncodeFrame scales img to FrameWidth×FrameHeight and JPEG-encodes it.
// The image is stretched, not letterboxed, matching a fixed-size canvas.
func EncodeFrame(img image.Image) ([]byte, error) {
	dst := image.NewRGBA(image.Rect(0, 0, FrameWidth, FrameHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: FrameQuality}); err != nil {
		return nil, fmt.Errorf("capture: encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes any registered image format.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
