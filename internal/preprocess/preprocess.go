package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

var (
	ErrImageDecode          = errors.New("image could not be decoded")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
)

// MaxPixels caps width*height of a decoded image. Larger headers are rejected
// before any pixel data is decoded.
const MaxPixels = 89_478_485

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
}

// AllowedFile reports whether name has a png, jpg or jpeg extension, ignoring case.
func AllowedFile(name string) bool {
	ext := filepath.Ext(name)
	if ext == "" {
		return false
	}
	return allowedExtensions[strings.ToLower(ext[1:])]
}

// Interpolation resolves a resample filter name; the empty string means bicubic.
func Interpolation(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return resize.NearestNeighbor, nil
	case "bilinear":
		return resize.Bilinear, nil
	case "", "bicubic":
		return resize.Bicubic, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	default:
		return 0, fmt.Errorf("unknown resample filter %q", name)
	}
}

// Preprocessor turns images into NHWC float32 tensors of shape [1, Size, Size, 3]
// with channel values scaled to [0, 1].
type Preprocessor struct {
	Size      int
	Filter    resize.InterpolationFunction
	MaxPixels int
}

func New(size int, filter string) (*Preprocessor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %d", size)
	}
	interp, err := Interpolation(filter)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{Size: size, Filter: interp, MaxPixels: MaxPixels}, nil
}

// TensorLen is the number of float32 values in one preprocessed image.
func (p *Preprocessor) TensorLen() int {
	return p.Size * p.Size * 3
}

// Shape is the tensor shape including the leading batch dimension.
func (p *Preprocessor) Shape() []int64 {
	return []int64{1, int64(p.Size), int64(p.Size), 3}
}

// File decodes the image at path and preprocesses it.
func (p *Preprocessor) File(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return p.Reader(f)
}

// Reader decodes an image from r and preprocesses it. The header is checked
// against MaxPixels first so oversized images never reach the decoder.
func (p *Preprocessor) Reader(r io.Reader) ([]float32, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	if limit := p.MaxPixels; limit > 0 && cfg.Width*cfg.Height > limit {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageDecode, cfg.Width, cfg.Height, limit)
	}

	img, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return p.Image(img), nil
}

// Image converts img to opaque RGB, resizes it to Size x Size and normalizes it.
// Alpha is dropped rather than composited, so transparent pixels keep their color.
func (p *Preprocessor) Image(img image.Image) []float32 {
	var resized *image.RGBA
	b := img.Bounds()
	switch {
	case b.Dx() == p.Size && b.Dy() == p.Size:
		resized = toOpaqueRGBA(img)
	case isOpaque(img):
		// Nothing to drop, so only the small result needs converting.
		resized = toOpaqueRGBA(resize.Resize(uint(p.Size), uint(p.Size), img, p.Filter))
	default:
		rgb := toOpaqueRGBA(img)
		resized = toOpaqueRGBA(resize.Resize(uint(p.Size), uint(p.Size), rgb, p.Filter))
	}

	out := make([]float32, p.TensorLen())
	rb := resized.Bounds()
	i := 0
	for y := rb.Min.Y; y < rb.Max.Y; y++ {
		row := resized.Pix[resized.PixOffset(rb.Min.X, y):]
		for x := 0; x < rb.Dx(); x++ {
			px := row[x*4 : x*4+3]
			out[i] = float32(px[0]) / 255.0
			out[i+1] = float32(px[1]) / 255.0
			out[i+2] = float32(px[2]) / 255.0
			i += 3
		}
	}
	return out
}

func isOpaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}

// toOpaqueRGBA copies img into an RGBA image with every alpha forced to 255.
func toOpaqueRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Opaque() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):][:b.Dx()*4]
			out := dst.Pix[dst.PixOffset(0, y):][:b.Dx()*4]
			copy(out, row)
			for x := 3; x < len(out); x += 4 {
				out[x] = 255
			}
		}
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return dst
}
