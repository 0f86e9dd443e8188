// Package imaging decodes clinical images and converts them into the normalized
// tensor layout the vision encoder expects.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// InputSize is the square edge length the vision encoder was trained on.
const InputSize = 224

// ImageNet channel statistics used at training time.
var (
	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}
)

// DefaultMaxPixels bounds width*height when no limit is configured.
const DefaultMaxPixels = 40_000_000

// ErrDecode is returned when the input is not a readable image.
var ErrDecode = errors.New("image decode failed")

// Tensor is a single image in CHW order with RGB channels.
type Tensor struct {
	Data   []float32
	Height int
	Width  int
}

// Shape returns the NCHW shape of the tensor with a batch size of one.
func (t *Tensor) Shape() []int64 {
	return []int64{1, 3, int64(t.Height), int64(t.Width)}
}

// Decode reads and decodes an image with DefaultMaxPixels, returning the detected
// format name. Any failure wraps ErrDecode.
func Decode(r io.Reader) (image.Image, string, error) {
	return DecodeLimit(r, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel limit. The header is checked
// before any pixel data is allocated. maxPixels <= 0 uses DefaultMaxPixels.
func DecodeLimit(r io.Reader, maxPixels int) (image.Image, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrDecode)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, format, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(data))
}

// Preprocess resizes img to InputSize x InputSize with bilinear interpolation,
// drops alpha, scales to [0,1], and normalizes each channel with Mean and Std.
// Colour is read unpremultiplied, so translucent pixels keep their stored RGB.
func Preprocess(img image.Image) *Tensor {
	dst := image.NewNRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := InputSize * InputSize
	data := make([]float32, 3*plane)
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			off := dst.PixOffset(x, y)
			i := y*InputSize + x
			for c := 0; c < 3; c++ {
				v := float32(dst.Pix[off+c]) / 255
				data[c*plane+i] = (v - Mean[c]) / Std[c]
			}
		}
	}
	return &Tensor{Data: data, Height: InputSize, Width: InputSize}
}

// Load decodes r and preprocesses the result.
func Load(r io.Reader) (*Tensor, error) {
	return LoadLimit(r, DefaultMaxPixels)
}

// LoadLimit is Load with an explicit pixel limit.
func LoadLimit(r io.Reader, maxPixels int) (*Tensor, error) {
	img, _, err := DecodeLimit(r, maxPixels)
	if err != nil {
		return nil, err
	}
	return Preprocess(img), nil
}
