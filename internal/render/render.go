// Package render draws the travel-time choropleth as a fixed-size raster
// image.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/sells-group/transit-access/internal/points"
	"github.com/sells-group/transit-access/internal/region"
)

// Options configures the rendered map.
type Options struct {
	Width        int
	Height       int
	Title        string
	DrawClinics  bool
	DrawHighways bool
}

// Map renders joined units onto a raster canvas.
type Map struct {
	opts Options
	proj projection
}

// projection maps lon/lat to pixel coordinates: equirectangular, scaled
// to fit the region bounds with a margin, x compressed by cos(mid lat).
type projection struct {
	minX, minY   float64
	scale        float64
	cosLat       float64
	height       int
	marginPx     float64
	boundsHeight float64
}

const marginFraction = 0.04

// New creates a Map fitted to the bounds of the given units.
func New(units []region.Unit, opts Options) (*Map, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, eris.Errorf("render: invalid dimensions %dx%d", opts.Width, opts.Height)
	}
	if len(units) == 0 {
		return nil, eris.New("render: no units to render")
	}

	b := region.Bounds(units)
	midLat := (b.Min(1) + b.Max(1)) / 2
	cosLat := math.Cos(midLat * math.Pi / 180)

	spanX := (b.Max(0) - b.Min(0)) * cosLat
	spanY := b.Max(1) - b.Min(1)
	if spanX <= 0 || spanY <= 0 {
		return nil, eris.New("render: degenerate region bounds")
	}

	margin := marginFraction * math.Min(float64(opts.Width), float64(opts.Height))
	scaleX := (float64(opts.Width) - 2*margin) / spanX
	scaleY := (float64(opts.Height) - 2*margin) / spanY

	return &Map{
		opts: opts,
		proj: projection{
			minX:         b.Min(0),
			minY:         b.Min(1),
			scale:        math.Min(scaleX, scaleY),
			cosLat:       cosLat,
			height:       opts.Height,
			marginPx:     margin,
			boundsHeight: spanY,
		},
	}, nil
}

func (p projection) toPixel(lon, lat float64) (x, y float64) {
	x = p.marginPx + (lon-p.minX)*p.cosLat*p.scale
	y = float64(p.height) - p.marginPx - (lat-p.minY)*p.scale
	return x, y
}

// Render draws the choropleth: polygons filled by travel-time bin,
// optional highway and clinic overlays, and the legend.
func (m *Map) Render(units []region.Unit, clinics []points.Clinic, highways []*geom.MultiLineString) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.opts.Width, m.opts.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	for _, unit := range units {
		if unit.Geometry == nil {
			continue
		}
		m.fillMultiPolygon(img, unit.Geometry, BinColor(unit.Minutes))
	}

	if m.opts.DrawHighways {
		for _, mls := range highways {
			m.strokeMultiLineString(img, mls, color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff})
		}
	}

	if m.opts.DrawClinics {
		for _, c := range clinics {
			x, y := m.proj.toPixel(c.Lon, c.Lat)
			fillCircle(img, int(x), int(y), 5, color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff})
		}
	}

	m.drawLegend(img)

	zap.L().Debug("rendered map",
		zap.Int("width", m.opts.Width),
		zap.Int("height", m.opts.Height),
		zap.Int("units", len(units)),
	)
	return img
}

// fillMultiPolygon rasterizes each polygon with an even-odd scanline fill
// across all of its rings, so holes are left unfilled.
func (m *Map) fillMultiPolygon(img *image.RGBA, mp *geom.MultiPolygon, c color.RGBA) {
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)

		var rings [][]float64 // projected x,y pairs per ring
		minY, maxY := math.Inf(1), math.Inf(-1)
		for r := 0; r < poly.NumLinearRings(); r++ {
			coords := poly.LinearRing(r).Coords()
			flat := make([]float64, 0, len(coords)*2)
			for _, pt := range coords {
				x, y := m.proj.toPixel(pt[0], pt[1])
				flat = append(flat, x, y)
				minY = math.Min(minY, y)
				maxY = math.Max(maxY, y)
			}
			rings = append(rings, flat)
		}

		for y := int(math.Floor(minY)); y <= int(math.Ceil(maxY)); y++ {
			fy := float64(y) + 0.5
			var xs []float64
			for _, flat := range rings {
				n := len(flat) / 2
				for j := 0; j < n; j++ {
					x1, y1 := flat[2*j], flat[2*j+1]
					k := (j + 1) % n
					x2, y2 := flat[2*k], flat[2*k+1]
					if (y1 <= fy && y2 > fy) || (y2 <= fy && y1 > fy) {
						t := (fy - y1) / (y2 - y1)
						xs = append(xs, x1+t*(x2-x1))
					}
				}
			}
			sort.Float64s(xs)
			for j := 0; j+1 < len(xs); j += 2 {
				for x := int(math.Ceil(xs[j])); x < int(math.Ceil(xs[j+1])); x++ {
					img.SetRGBA(x, y, c)
				}
			}
		}
	}
}

func (m *Map) strokeMultiLineString(img *image.RGBA, mls *geom.MultiLineString, c color.RGBA) {
	for i := 0; i < mls.NumLineStrings(); i++ {
		coords := mls.LineString(i).Coords()
		for j := 0; j+1 < len(coords); j++ {
			x1, y1 := m.proj.toPixel(coords[j][0], coords[j][1])
			x2, y2 := m.proj.toPixel(coords[j+1][0], coords[j+1][1])
			drawLine(img, int(x1), int(y1), int(x2), int(y2), c)
		}
	}
}

// drawLegend draws the bin swatches and labels in the lower-left corner.
func (m *Map) drawLegend(img *image.RGBA) {
	const swatch = 18
	const pad = 6
	entries := len(Labels) + 1 // plus the missing entry

	x := int(m.proj.marginPx / 2)
	y := m.opts.Height - entries*(swatch+pad) - int(m.proj.marginPx/2)
	// Small canvases: keep the first swatch on-canvas.
	if y < pad {
		y = pad
	}

	if m.opts.Title != "" {
		drawText(img, x, y-pad-4, m.opts.Title, color.RGBA{A: 0xff})
	}

	for i, label := range Labels {
		drawSwatch(img, x, y, swatch, palette[i])
		drawText(img, x+swatch+pad, y+swatch-4, label+" min", color.RGBA{A: 0xff})
		y += swatch + pad
	}

	drawSwatch(img, x, y, swatch, missingColor)
	drawText(img, x+swatch+pad, y+swatch-4, MissingLabel, color.RGBA{A: 0xff})
}

func drawSwatch(img *image.RGBA, x, y, size int, c color.RGBA) {
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			img.SetRGBA(x+dx, y+dy, c)
		}
	}
}

func drawText(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(cx+dx, cy+dy, c)
			}
		}
	}
}

// drawLine draws a 1px line with the integer Bresenham algorithm.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx + dy
	for {
		img.SetRGBA(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// WritePNG encodes the image to a PNG file.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "render: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := png.Encode(f, img); err != nil {
		return eris.Wrap(err, "render: encode png")
	}
	zap.L().Info("wrote map image", zap.String("path", path))
	return nil
}
