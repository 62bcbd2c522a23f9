package soft

import (
	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// Image is device-local pixel storage. Color images hold 4 float32 per
// pixel, depth images 1. Layers stack cubemap faces.
type Image struct {
	Width  uint32
	Height uint32
	Layers uint32
	Format renderer.ImageFormat
	Pix    []float32
}

func newImage(width, height, layers uint32, format renderer.ImageFormat) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Layers: layers,
		Format: format,
		Pix:    make([]float32, width*height*layers*comps(format)),
	}
}

func comps(format renderer.ImageFormat) uint32 {
	if format == renderer.ImageFormatDepth32F {
		return 1
	}
	return 4
}

func (im *Image) index(layer, x, y uint32) uint32 {
	return ((layer*im.Height+y)*im.Width + x) * comps(im.Format)
}

// Clear fills every layer with the given color (or depth, for depth
// images, taking the X component).
func (im *Image) Clear(value kmath.Vec4) {
	if im.Format == renderer.ImageFormatDepth32F {
		for i := range im.Pix {
			im.Pix[i] = value.X
		}
		return
	}
	for i := 0; i < len(im.Pix); i += 4 {
		im.Pix[i+0] = value.X
		im.Pix[i+1] = value.Y
		im.Pix[i+2] = value.Z
		im.Pix[i+3] = value.W
	}
}

func (im *Image) Store(layer, x, y uint32, value kmath.Vec4) {
	i := im.index(layer, x, y)
	im.Pix[i+0] = value.X
	im.Pix[i+1] = value.Y
	im.Pix[i+2] = value.Z
	im.Pix[i+3] = value.W
}

func (im *Image) Load(layer, x, y uint32) kmath.Vec4 {
	i := im.index(layer, x, y)
	return kmath.Vec4{X: im.Pix[i+0], Y: im.Pix[i+1], Z: im.Pix[i+2], W: im.Pix[i+3]}
}

func (im *Image) StoreDepth(x, y uint32, depth float32) {
	im.Pix[im.index(0, x, y)] = depth
}

func (im *Image) LoadDepth(x, y uint32) float32 {
	return im.Pix[im.index(0, x, y)]
}
