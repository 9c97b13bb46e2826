package utils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	ico "github.com/sergeymakinen/go-ico"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"genico/internal/domain"
)

// MaxDimension bounds the width and height accepted for decoding.
const MaxDimension = 8192

type ImageProcessor struct {
	log *zap.Logger
}

func NewImageProcessor(log *zap.Logger) *ImageProcessor {
	return &ImageProcessor{log: log}
}

// Decode sniffs the format of data and decodes the full bitmap.
func (p *ImageProcessor) Decode(data []byte) (*domain.DecodedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: dimensions %dx%d exceed %dpx", domain.ErrDecode, cfg.Width, cfg.Height, MaxDimension)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	b := img.Bounds()
	p.log.Debug("Image decoded",
		zap.String("format", format),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()))

	return &domain.DecodedImage{
		Format:   format,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Image:    img,
		HasAlpha: hasAlpha(img),
	}, nil
}

// EncodeIcon resamples img to every size in domain.IconSizes and packs the
// results into an ICO container, keeping that order in the directory.
func (p *ImageProcessor) EncodeIcon(img *domain.DecodedImage) ([]byte, error) {
	if img == nil || img.Image == nil || img.Image.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", domain.ErrEncoding)
	}

	src := ToNRGBA(img.Image)

	icons := make([]image.Image, 0, len(domain.IconSizes))
	for _, size := range domain.IconSizes {
		icons = append(icons, Resize(src, size))
	}

	var out bytes.Buffer
	if err := ico.EncodeAll(&out, icons); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}

	p.log.Debug("Icon encoded",
		zap.Int("entries", len(icons)),
		zap.Int("size", out.Len()))

	return out.Bytes(), nil
}

// ToNRGBA returns src as a zero-origin NRGBA image. Sources without an alpha
// channel come out fully opaque.
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}

// Resize scales src into a size x size square using Catmull-Rom.
func Resize(src image.Image, size int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64, *image.Alpha, *image.Alpha16, *image.NYCbCrA:
		return true
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
