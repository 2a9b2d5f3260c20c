package render

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/monitoring"
)

// gridXYZ adapts an Image to plotter.GridXYZ. Columns run along x, rows
// along y, each at its cell centre.
type gridXYZ struct {
	im     Image
	x0, dx float64
	y0, dy float64
}

func newGridXYZ(im Image) gridXYZ {
	lower, upper := im.Bounds.Lower(), im.Bounds.Upper()
	ylo, yhi := im.extentY()
	return gridXYZ{
		im: im,
		x0: lower[0], dx: (upper[0] - lower[0]) / float64(im.NX),
		y0: ylo, dy: (yhi - ylo) / float64(im.NY),
	}
}

func (g gridXYZ) Dims() (c, r int)   { return g.im.NX, g.im.NY }
func (g gridXYZ) Z(c, r int) float64 { return g.im.At(c, r) }
func (g gridXYZ) X(c int) float64    { return g.x0 + (float64(c)+0.5)*g.dx }
func (g gridXYZ) Y(r int) float64    { return g.y0 + (float64(r)+0.5)*g.dy }

// PNGOptions controls WritePNG. Zero values pick the defaults.
type PNGOptions struct {
	Title  string
	Width  vg.Length // default 8in
	Height vg.Length // default 6in
	Colors int       // palette size, default 64
}

// WritePNG renders im as a gonum/plot heatmap and writes it to path,
// creating the parent directory.
func WritePNG(fsys fsutil.FileSystem, path string, im Image, o PNGOptions) error {
	if im.NX < 2 || im.NY < 2 {
		return fmt.Errorf("%w: png heatmaps need at least 2x2 cells, got %dx%d", ErrNotPlanar, im.NX, im.NY)
	}
	if o.Width == 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 6 * vg.Inch
	}
	if o.Colors <= 0 {
		o.Colors = 64
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	hm := plotter.NewHeatMap(newGridXYZ(im), palette.Heat(o.Colors, 1))
	if lo, hi := im.Range(); lo == hi {
		// HeatMap needs a non-empty range to pick colours.
		hm.Min, hm.Max = lo-0.5, hi+0.5
	}
	p.Add(hm)

	wt, err := p.WriterTo(o.Width, o.Height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("render png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	monitoring.Opsf("wrote heatmap %s (%dx%d)", path, im.NX, im.NY)
	return nil
}
