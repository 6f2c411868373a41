// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package augment

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ColorMode of the loaded images.
//
//go:generate go tool enumer -type=ColorMode -transform=snake -output=gen_colormode_enumer.go
type ColorMode int

const (
	// Grayscale images have 1 channel.
	Grayscale ColorMode = iota

	// RGB images have 3 channels.
	RGB
)

// Channels returns the number of channels of the color mode.
func (m ColorMode) Channels() int {
	if m == RGB {
		return 3
	}
	return 1
}

// Image is a float32 image in row-major order, with channels last: the value of
// channel ch of pixel (x, y) is Pix[(y*Width+x)*Channels+ch].
//
// Loaded images hold values in the [0, 255] range, until rescaled.
type Image struct {
	Width, Height, Channels int
	Pix                     []float32
}

// NewImage creates a zero (black) image.
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float32, width*height*channels),
	}
}

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	c := *img
	c.Pix = make([]float32, len(img.Pix))
	copy(c.Pix, img.Pix)
	return &c
}

// At returns the value of channel ch at column x and row y.
func (img *Image) At(x, y, ch int) float32 {
	return img.Pix[(y*img.Width+x)*img.Channels+ch]
}

// LoadFile reads and decodes the image in filePath, converts it to the colorMode and resizes it to
// exactly width x height using nearest-neighbor interpolation (aspect ratio is not preserved).
//
// Decoding supports PNG, JPEG, GIF, BMP and TIFF.
func LoadFile(filePath string, colorMode ColorMode, width, height int) (*Image, error) {
	img, err := imaging.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode image %q", filePath)
	}
	return FromImage(Resize(img, width, height), colorMode), nil
}

// Resize img to width x height with nearest-neighbor interpolation.
// If width or height is <= 0, the image size is kept.
func Resize(img image.Image, width, height int) *image.NRGBA {
	size := img.Bounds().Size()
	if width <= 0 || height <= 0 || (size.X == width && size.Y == height) {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, width, height, imaging.NearestNeighbor)
}

// FromImage converts a Go image to an Image with values in [0, 255].
//
// Grayscale conversion uses the ITU-R 601-2 luma transform (L = R*299/1000 + G*587/1000 + B*114/1000),
// rounded to the nearest integer, over the non-premultiplied colors. The alpha channel is dropped.
func FromImage(img image.Image, colorMode ColorMode) *Image {
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = imaging.Clone(img)
	}
	bounds := nrgba.Bounds()
	out := NewImage(bounds.Dx(), bounds.Dy(), colorMode.Channels())
	pos := 0
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			px := nrgba.Pix[nrgba.PixOffset(bounds.Min.X+x, bounds.Min.Y+y):]
			r, g, b := uint32(px[0]), uint32(px[1]), uint32(px[2])
			if colorMode == Grayscale {
				out.Pix[pos] = float32((r*299 + g*587 + b*114 + 500) / 1000)
				pos++
			} else {
				out.Pix[pos] = float32(r)
				out.Pix[pos+1] = float32(g)
				out.Pix[pos+2] = float32(b)
				pos += 3
			}
		}
	}
	return out
}

// ToImage converts the Image back to a Go image, mapping maxValue to 255 and clipping values out of range.
// Use maxValue=255 for images not rescaled, and maxValue=1 for images rescaled by 1/255.
//
// Single channel images are converted to *image.Gray, 3 channel images to *image.NRGBA.
func (img *Image) ToImage(maxValue float64) image.Image {
	toByte := func(v float32) uint8 {
		f := math.Round(float64(v) / maxValue * 255)
		return uint8(max(0, min(255, f)))
	}
	rect := image.Rect(0, 0, img.Width, img.Height)
	if img.Channels == 1 {
		gray := image.NewGray(rect)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				gray.SetGray(x, y, color.Gray{Y: toByte(img.At(x, y, 0))})
			}
		}
		return gray
	}
	nrgba := image.NewNRGBA(rect)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := color.NRGBA{A: 255}
			c.R = toByte(img.At(x, y, 0))
			if img.Channels >= 3 {
				c.G = toByte(img.At(x, y, 1))
				c.B = toByte(img.At(x, y, 2))
			} else {
				c.G, c.B = c.R, c.R
			}
			nrgba.SetNRGBA(x, y, c)
		}
	}
	return nrgba
}
