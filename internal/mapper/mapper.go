// Package mapper converts between normalized media coordinates and surface
// pixel coordinates under the current pan/zoom view.
package mapper

import (
	"gonum.org/v1/gonum/mat"

	"frame-marker/pkg/geometry"
)

// ViewTransform describes the media's on-screen pan/zoom. Translation is
// applied after scaling (it is not multiplied by Scale), both axes are
// centered on the surface center, and TranslateY grows upward while screen
// Y grows downward.
type ViewTransform struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// IdentityView returns the neutral view transform.
func IdentityView() ViewTransform {
	return ViewTransform{Scale: 1}
}

// Mapper maps normalized content coordinates (x,y in [0,1] relative to the
// displayed media box) to surface pixels and back. The media box is the
// aspect-fit rectangle centered in the surface; the view transform is then
// applied around the surface center, matching the media's own rendering so
// overlay geometry tracks the displayed pixels 1:1.
type Mapper struct {
	surface    geometry.Size
	aspect     float64 // media width/height, 0 = unknown
	view       ViewTransform
	correction float64 // uniform content box scale around its center

	fwd   *mat.Dense // normalized -> visual, homogeneous 3x3
	inv   *mat.Dense
	valid bool
}

// New creates a mapper with an identity view and no correction.
func New() *Mapper {
	m := &Mapper{
		view:       IdentityView(),
		correction: 1,
	}
	m.rebuild()
	return m
}

// SetSurfaceSize updates the host surface pixel dimensions.
func (m *Mapper) SetSurfaceSize(width, height float64) {
	m.surface = geometry.Size{Width: width, Height: height}
	m.rebuild()
}

// SurfaceSize returns the current surface pixel dimensions.
func (m *Mapper) SurfaceSize() geometry.Size {
	return m.surface
}

// SetAspectRatio sets the media's natural width/height ratio.
// Zero means unknown: the content box then fills the whole surface.
func (m *Mapper) SetAspectRatio(ar float64) {
	m.aspect = ar
	m.rebuild()
}

// SetView updates the pan/zoom transform.
func (m *Mapper) SetView(v ViewTransform) {
	m.view = v
	m.rebuild()
}

// View returns the current pan/zoom transform.
func (m *Mapper) View() ViewTransform {
	return m.view
}

// SetCorrectionScale sets a uniform scale applied to the content box around
// its own center, for layouts where the surface and the rendered media are
// not in 1:1 proportion. 1 disables it.
func (m *Mapper) SetCorrectionScale(c float64) {
	if c <= 0 {
		c = 1
	}
	m.correction = c
	m.rebuild()
}

// ContentBox returns the aspect-fit rectangle the media occupies in the
// surface before the view transform: pillarboxed when the surface is wider
// than the media, letterboxed when it is taller.
func (m *Mapper) ContentBox() geometry.Rect {
	w, h := m.surface.Width, m.surface.Height
	box := geometry.NewRect(0, 0, w, h)
	if m.aspect > 0 && w > 0 && h > 0 {
		surfaceAR := w / h
		if surfaceAR > m.aspect {
			// Surface is wider: full height, width shrinks.
			bw := h * m.aspect
			box = geometry.NewRect((w-bw)/2, 0, bw, h)
		} else {
			bh := w / m.aspect
			box = geometry.NewRect(0, (h-bh)/2, w, bh)
		}
	}
	if m.correction != 1 {
		c := box.Center()
		box.Width *= m.correction
		box.Height *= m.correction
		box.X = c.X - box.Width/2
		box.Y = c.Y - box.Height/2
	}
	return box
}

// ToVisual maps a normalized content point to surface pixels under the
// current view transform.
func (m *Mapper) ToVisual(p geometry.Point2D) geometry.Point2D {
	if !m.valid {
		return p
	}
	return apply(m.fwd, p)
}

// ToNormalized maps a surface pixel point back to normalized content
// coordinates. It is the exact inverse of ToVisual.
func (m *Mapper) ToNormalized(p geometry.Point2D) geometry.Point2D {
	if !m.valid {
		return p
	}
	return apply(m.inv, p)
}

// VisualDistance returns the on-screen pixel distance between two
// normalized points.
func (m *Mapper) VisualDistance(a, b geometry.Point2D) float64 {
	return m.ToVisual(a).Distance(m.ToVisual(b))
}

// rebuild recomputes the forward and inverse homogeneous matrices.
// Forward = view ∘ box: first place the normalized point into the content
// box, then zoom about the surface center and pan.
func (m *Mapper) rebuild() {
	m.valid = false
	box := m.ContentBox()
	if box.Width == 0 || box.Height == 0 {
		return
	}
	scale := m.view.Scale
	if scale == 0 {
		return
	}

	boxM := mat.NewDense(3, 3, []float64{
		box.Width, 0, box.X,
		0, box.Height, box.Y,
		0, 0, 1,
	})

	cx := m.surface.Width / 2
	cy := m.surface.Height / 2
	// visual = center + translate + scale*(contentPx - center),
	// with the Y translation sign flipped relative to screen Y.
	viewM := mat.NewDense(3, 3, []float64{
		scale, 0, cx + m.view.TranslateX - scale*cx,
		0, scale, cy - m.view.TranslateY - scale*cy,
		0, 0, 1,
	})

	fwd := mat.NewDense(3, 3, nil)
	fwd.Mul(viewM, boxM)

	inv := mat.NewDense(3, 3, nil)
	if err := inv.Inverse(fwd); err != nil {
		return
	}

	m.fwd = fwd
	m.inv = inv
	m.valid = true
}

func apply(t *mat.Dense, p geometry.Point2D) geometry.Point2D {
	v := mat.NewVecDense(3, []float64{p.X, p.Y, 1})
	out := mat.NewVecDense(3, nil)
	out.MulVec(t, v)
	return geometry.Point2D{X: out.AtVec(0), Y: out.AtVec(1)}
}
