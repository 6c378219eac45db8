package mosaic

import (
	"image"
	"sync"
)

type rgbaKey struct {
	w, h int
}

// rgbaPools holds one *sync.Pool of *image.RGBA per tile size. A map view
// only ever uses one or two sizes.
var rgbaPools sync.Map

// GetRGBA returns a cleared w x h buffer from the shared pool, or allocates
// a new one.
func GetRGBA(w, h int) *image.RGBA {
	if p, ok := rgbaPools.Load(rgbaKey{w, h}); ok {
		if img, ok := p.(*sync.Pool).Get().(*image.RGBA); ok && img != nil {
			clear(img.Pix)
			return img
		}
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// PutRGBA hands img back to the shared pool. Nil is ignored.
func PutRGBA(img *image.RGBA) {
	if img == nil {
		return
	}
	p, _ := rgbaPools.LoadOrStore(rgbaKey{img.Rect.Dx(), img.Rect.Dy()}, &sync.Pool{})
	p.(*sync.Pool).Put(img) //nolint:forcetypeassert
}
