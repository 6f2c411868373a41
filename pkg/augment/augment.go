// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package augment implements the image preprocessing used to feed the classifier: loading,
// resizing, random affine augmentation (rotation, shift, shear, zoom), flips and rescaling.
//
// A Config describes the ranges of the random transformations. For each image a Params is
// drawn with Config.RandomParams and applied with Config.Apply:
//
//	cfg := augment.TrainingConfig()
//	img, err := augment.LoadFile(path, augment.Grayscale, 224, 224)
//	...
//	img = cfg.Transform(img, rng)
package augment

import (
	"math"
	"math/rand"
)

// FillMode defines how points outside the boundaries of the input are filled during affine transformations.
//
//go:generate go tool enumer -type=FillMode -trimprefix=Fill -transform=snake -output=gen_fillmode_enumer.go
type FillMode int

const (
	// FillNearest repeats the closest edge pixel: aaaaaaaa|abcd|dddddddd.
	FillNearest FillMode = iota

	// FillConstant uses Config.CVal: kkkkkkkk|abcd|kkkkkkkk.
	FillConstant

	// FillReflect mirrors the image around its edges: abcddcba|abcd|dcbaabcd.
	FillReflect

	// FillWrap tiles the image: abcdabcd|abcd|abcdabcd.
	FillWrap
)

// Config of the image transformations.
type Config struct {
	// Rescale multiplies every pixel value after all the other transformations. 0 is taken as 1.
	Rescale float64

	// RotationRange in degrees: rotation angle is drawn from [-RotationRange, +RotationRange].
	RotationRange float64

	// WidthShiftRange and HeightShiftRange: if < 1 it is a fraction of the image width (height),
	// otherwise a number of pixels. The shift is drawn from [-range, +range].
	WidthShiftRange, HeightShiftRange float64

	// ShearRange is the shear angle range in degrees (counter-clockwise).
	ShearRange float64

	// ZoomRange: the zoom factor of each axis is drawn independently from [ZoomRange[0], ZoomRange[1]].
	// A zero value means no zoom.
	ZoomRange [2]float64

	// HorizontalFlip and VerticalFlip flip the image with probability 0.5.
	HorizontalFlip, VerticalFlip bool

	// FillMode for points outside of the image after the affine transformation.
	FillMode FillMode

	// CVal is the value used for FillConstant, in the pixel scale before rescaling.
	CVal float64
}

// TrainingConfig returns the augmentation used for the training split of the X-ray datasets.
func TrainingConfig() *Config {
	return &Config{
		Rescale:          1.0 / 255.0,
		RotationRange:    15,
		WidthShiftRange:  0.1,
		HeightShiftRange: 0.1,
		ShearRange:       0.1,
		ZoomRange:        ZoomRangeFromFactor(0.1),
		HorizontalFlip:   true,
		FillMode:         FillNearest,
	}
}

// EvalConfig returns the preprocessing used for the validation and test splits: only rescaling.
func EvalConfig() *Config {
	return &Config{Rescale: 1.0 / 255.0}
}

// ZoomRangeFromFactor returns the zoom range [1-factor, 1+factor].
func ZoomRangeFromFactor(factor float64) [2]float64 {
	return [2]float64{1 - factor, 1 + factor}
}

// hasZoom returns whether the zoom range is set to something other than the identity.
func (c *Config) hasZoom() bool {
	return c.ZoomRange != [2]float64{} && c.ZoomRange != [2]float64{1, 1}
}

// IsIdentity returns whether no random transformation is configured. Rescaling may still apply.
func (c *Config) IsIdentity() bool {
	return c.RotationRange == 0 && c.WidthShiftRange == 0 && c.HeightShiftRange == 0 &&
		c.ShearRange == 0 && !c.hasZoom() && !c.HorizontalFlip && !c.VerticalFlip
}

// Params of one instance of random transformation.
type Params struct {
	// Theta is the rotation angle in degrees.
	Theta float64

	// Tx and Ty are the shifts, in pixels, along the rows (vertical) and columns (horizontal) axes.
	Tx, Ty float64

	// Shear angle in degrees.
	Shear float64

	// Zx and Zy are the zoom factors for rows and columns. 1 means no zoom.
	Zx, Zy float64

	FlipH, FlipV bool
}

// IdentityParams returns Params that don't change the image.
func IdentityParams() Params {
	return Params{Zx: 1, Zy: 1}
}

func uniform(rng *rand.Rand, low, high float64) float64 {
	return low + rng.Float64()*(high-low)
}

// RandomParams draws random transformation parameters for an image of the given size.
//
// The sequence of draws from rng is fixed for a Config, so the same rng state always yields the same Params.
func (c *Config) RandomParams(rng *rand.Rand, height, width int) Params {
	p := IdentityParams()
	if c.RotationRange != 0 {
		p.Theta = uniform(rng, -c.RotationRange, c.RotationRange)
	}
	if c.HeightShiftRange != 0 {
		p.Tx = uniform(rng, -c.HeightShiftRange, c.HeightShiftRange)
		if c.HeightShiftRange < 1 {
			p.Tx *= float64(height)
		}
	}
	if c.WidthShiftRange != 0 {
		p.Ty = uniform(rng, -c.WidthShiftRange, c.WidthShiftRange)
		if c.WidthShiftRange < 1 {
			p.Ty *= float64(width)
		}
	}
	if c.ShearRange != 0 {
		p.Shear = uniform(rng, -c.ShearRange, c.ShearRange)
	}
	if c.hasZoom() {
		p.Zx = uniform(rng, c.ZoomRange[0], c.ZoomRange[1])
		p.Zy = uniform(rng, c.ZoomRange[0], c.ZoomRange[1])
	}
	p.FlipH = c.HorizontalFlip && rng.Float64() < 0.5
	p.FlipV = c.VerticalFlip && rng.Float64() < 0.5
	return p
}

// Transform draws random Params and applies them to img.
func (c *Config) Transform(img *Image, rng *rand.Rand) *Image {
	if c.IsIdentity() {
		return c.Apply(img, IdentityParams())
	}
	return c.Apply(img, c.RandomParams(rng, img.Height, img.Width))
}

// Apply the transformation params to img, followed by rescaling.
// It returns a new image, img is not modified.
func (c *Config) Apply(img *Image, p Params) *Image {
	out := c.applyAffine(img, p)
	if p.FlipH {
		flipHorizontal(out)
	}
	if p.FlipV {
		flipVertical(out)
	}
	if c.Rescale != 0 && c.Rescale != 1 {
		scale := float32(c.Rescale)
		for ii := range out.Pix {
			out.Pix[ii] *= scale
		}
	}
	return out
}

// affine is a 2x3 matrix mapping output (row, col) coordinates to input coordinates.
type affine [2][3]float64

// mat3 is a 3x3 homogeneous transformation matrix.
type mat3 [3][3]float64

func identity3() mat3 {
	return mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func (a mat3) mul(b mat3) (m mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				m[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return
}

// matrix returns the output-to-input coordinates transformation and whether it is not the identity.
//
// The rotation, shift, shear and zoom matrices are composed in that order, and applied around the
// center of the image.
func (p Params) matrix(height, width int) (m affine, ok bool) {
	t := identity3()
	if p.Theta != 0 {
		theta := p.Theta * math.Pi / 180
		cos, sin := math.Cos(theta), math.Sin(theta)
		t = t.mul(mat3{{cos, -sin, 0}, {sin, cos, 0}, {0, 0, 1}})
		ok = true
	}
	if p.Tx != 0 || p.Ty != 0 {
		t = t.mul(mat3{{1, 0, p.Tx}, {0, 1, p.Ty}, {0, 0, 1}})
		ok = true
	}
	if p.Shear != 0 {
		shear := p.Shear * math.Pi / 180
		t = t.mul(mat3{{1, -math.Sin(shear), 0}, {0, math.Cos(shear), 0}, {0, 0, 1}})
		ok = true
	}
	if (p.Zx != 1 && p.Zx != 0) || (p.Zy != 1 && p.Zy != 0) {
		zx, zy := p.Zx, p.Zy
		if zx == 0 {
			zx = 1
		}
		if zy == 0 {
			zy = 1
		}
		t = t.mul(mat3{{zx, 0, 0}, {0, zy, 0}, {0, 0, 1}})
		ok = true
	}
	if !ok {
		return
	}
	oRow, oCol := float64(height)/2-0.5, float64(width)/2-0.5
	offset := mat3{{1, 0, oRow}, {0, 1, oCol}, {0, 0, 1}}
	reset := mat3{{1, 0, -oRow}, {0, 1, -oCol}, {0, 0, 1}}
	t = offset.mul(t).mul(reset)
	m = affine{{t[0][0], t[0][1], t[0][2]}, {t[1][0], t[1][1], t[1][2]}}
	return
}

// mapIndex maps a possibly out-of-bounds index to a valid one according to the fill mode.
// It returns false if the value should be the constant fill value.
func mapIndex(idx, size int, mode FillMode) (int, bool) {
	if idx >= 0 && idx < size {
		return idx, true
	}
	switch mode {
	case FillNearest:
		if idx < 0 {
			return 0, true
		}
		return size - 1, true
	case FillReflect:
		period := 2 * size
		idx %= period
		if idx < 0 {
			idx += period
		}
		if idx >= size {
			idx = period - 1 - idx
		}
		return idx, true
	case FillWrap:
		idx %= size
		if idx < 0 {
			idx += size
		}
		return idx, true
	}
	return 0, false
}

// applyAffine warps img with bilinear interpolation. It always returns a new image.
func (c *Config) applyAffine(img *Image, p Params) *Image {
	m, ok := p.matrix(img.Height, img.Width)
	if !ok {
		return img.Clone()
	}
	out := NewImage(img.Width, img.Height, img.Channels)
	cval := float32(c.CVal)
	channels := img.Channels
	pixel := func(row, col, ch int) float32 {
		row, okRow := mapIndex(row, img.Height, c.FillMode)
		col, okCol := mapIndex(col, img.Width, c.FillMode)
		if !okRow || !okCol {
			return cval
		}
		return img.Pix[(row*img.Width+col)*channels+ch]
	}
	pos := 0
	for row := 0; row < img.Height; row++ {
		for col := 0; col < img.Width; col++ {
			srcRow := m[0][0]*float64(row) + m[0][1]*float64(col) + m[0][2]
			srcCol := m[1][0]*float64(row) + m[1][1]*float64(col) + m[1][2]
			r0, c0 := math.Floor(srcRow), math.Floor(srcCol)
			fr, fc := float32(srcRow-r0), float32(srcCol-c0)
			ir, ic := int(r0), int(c0)
			for ch := 0; ch < channels; ch++ {
				top := pixel(ir, ic, ch)*(1-fc) + pixel(ir, ic+1, ch)*fc
				bottom := pixel(ir+1, ic, ch)*(1-fc) + pixel(ir+1, ic+1, ch)*fc
				out.Pix[pos] = top*(1-fr) + bottom*fr
				pos++
			}
		}
	}
	return out
}

func flipHorizontal(img *Image) {
	ch := img.Channels
	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Width*ch : (y+1)*img.Width*ch]
		for left, right := 0, img.Width-1; left < right; left, right = left+1, right-1 {
			for k := 0; k < ch; k++ {
				row[left*ch+k], row[right*ch+k] = row[right*ch+k], row[left*ch+k]
			}
		}
	}
}

func flipVertical(img *Image) {
	rowSize := img.Width * img.Channels
	tmp := make([]float32, rowSize)
	for top, bottom := 0, img.Height-1; top < bottom; top, bottom = top+1, bottom-1 {
		topRow := img.Pix[top*rowSize : (top+1)*rowSize]
		bottomRow := img.Pix[bottom*rowSize : (bottom+1)*rowSize]
		copy(tmp, topRow)
		copy(topRow, bottomRow)
		copy(bottomRow, tmp)
	}
}
