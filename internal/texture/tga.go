package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

// TGA errors.
var (
	ErrTruncatedTGA   = errors.New("TGA data truncated")
	ErrUnsupportedTGA = errors.New("unsupported TGA")
)

func init() {
	// TGA has no magic; match a true-color header without a color map.
	image.RegisterFormat("tga", "?\x00\x02", decodeTGA, decodeTGAConfig)
	image.RegisterFormat("tga", "?\x00\x0a", decodeTGA, decodeTGAConfig)
}

type tgaHeader struct {
	idLength    int
	imageType   byte
	width       int
	height      int
	bpp         int
	topToBottom bool
}

func parseTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < 18 {
		return tgaHeader{}, ErrTruncatedTGA
	}

	h := tgaHeader{
		idLength:  int(data[0]),
		imageType: data[2],
		width:     int(data[12]) | int(data[13])<<8,
		height:    int(data[14]) | int(data[15])<<8,
		bpp:       int(data[16]),
		// Bit 5 of the descriptor marks top-to-bottom rows
		topToBottom: data[17]&0x20 != 0,
	}

	if data[1] != 0 {
		return tgaHeader{}, fmt.Errorf("%w: color-mapped", ErrUnsupportedTGA)
	}
	if h.imageType != TGATypeUncompressed && h.imageType != TGATypeRLE {
		return tgaHeader{}, fmt.Errorf("%w: type %d", ErrUnsupportedTGA, h.imageType)
	}
	if h.bpp != 24 && h.bpp != 32 {
		return tgaHeader{}, fmt.Errorf("%w: bit depth %d", ErrUnsupportedTGA, h.bpp)
	}
	return h, nil
}

func decodeTGAConfig(r io.Reader) (image.Config, error) {
	var hdr [18]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return image.Config{}, ErrTruncatedTGA
	}
	h, err := parseTGAHeader(hdr[:])
	if err != nil {
		return image.Config{}, err
	}
	return image.Config{ColorModel: color.RGBAModel, Width: h.width, Height: h.height}, nil
}

func decodeTGA(r io.Reader) (image.Image, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("reading TGA: %w", err)
	}
	return DecodeTGA(buf.Bytes())
}

// DecodeTGA decodes an uncompressed (type 2) or RLE compressed (type 10)
// true-color TGA image.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	h, err := parseTGAHeader(data)
	if err != nil {
		return nil, err
	}

	// Skip ID field
	offset := 18 + h.idLength
	if offset > len(data) {
		return nil, ErrTruncatedTGA
	}
	pixelData := data[offset:]

	img := image.NewRGBA(image.Rect(0, 0, h.width, h.height))
	d := tgaDecoder{img: img, h: h, bytesPerPixel: h.bpp / 8}

	if h.imageType == TGATypeUncompressed {
		if len(pixelData) < h.width*h.height*d.bytesPerPixel {
			return nil, ErrTruncatedTGA
		}
		for i := 0; i < h.width*h.height; i++ {
			d.set(i, d.pixel(pixelData[i*d.bytesPerPixel:]))
		}
		return img, nil
	}

	if err := d.decodeRLE(pixelData); err != nil {
		return nil, err
	}
	return img, nil
}

type tgaDecoder struct {
	img           *image.RGBA
	h             tgaHeader
	bytesPerPixel int
}

// pixel reads one BGR(A) pixel.
func (d *tgaDecoder) pixel(p []byte) color.RGBA {
	c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if d.bytesPerPixel == 4 {
		c.A = p[3]
	}
	return c
}

func (d *tgaDecoder) set(i int, c color.RGBA) {
	x := i % d.h.width
	y := i / d.h.width
	if !d.h.topToBottom {
		y = d.h.height - 1 - y
	}
	d.img.SetRGBA(x, y, c)
}

// decodeRLE decodes RLE-compressed pixel data. Each packet header holds a
// repeat flag in bit 7 and count-1 in the low bits.
func (d *tgaDecoder) decodeRLE(data []byte) error {
	pixelCount := d.h.width * d.h.height
	pixelIdx, dataIdx := 0, 0

	for pixelIdx < pixelCount {
		if dataIdx >= len(data) {
			return ErrTruncatedTGA
		}
		packet := data[dataIdx]
		dataIdx++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// Repeat a single pixel
			if dataIdx+d.bytesPerPixel > len(data) {
				return ErrTruncatedTGA
			}
			c := d.pixel(data[dataIdx:])
			dataIdx += d.bytesPerPixel
			for i := 0; i < count && pixelIdx < pixelCount; i++ {
				d.set(pixelIdx, c)
				pixelIdx++
			}
			continue
		}

		// Raw packet
		for i := 0; i < count && pixelIdx < pixelCount; i++ {
			if dataIdx+d.bytesPerPixel > len(data) {
				return ErrTruncatedTGA
			}
			d.set(pixelIdx, d.pixel(data[dataIdx:]))
			dataIdx += d.bytesPerPixel
			pixelIdx++
		}
	}
	return nil
}
