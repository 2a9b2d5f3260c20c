package render

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/monitoring"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// HTMLHeatmap builds the go-echarts page for im without rendering it.
func HTMLHeatmap(im Image, title string) *charts.HeatMap {
	gx := newGridXYZ(im)
	xs := make([]string, im.NX)
	for c := range xs {
		xs[c] = fmt.Sprintf("%.3g", gx.X(c))
	}
	ys := make([]string, im.NY)
	for r := range ys {
		ys[r] = fmt.Sprintf("%.3g", gx.Y(r))
	}

	data := make([]opts.HeatMapData, 0, len(im.Z))
	for x := 0; x < im.NX; x++ {
		for y := 0; y < im.NY; y++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, y, im.At(x, y)}})
		}
	}

	lo, hi := im.Range()
	if lo == hi {
		hi = lo + 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("cells=%dx%d range=[%g, %g]", im.NX, im.NY, lo, hi)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "x", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "y", Data: ys, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xs).AddSeries(title, data)
	return hm
}

// WriteHTML renders im as an interactive heatmap page at path.
func WriteHTML(fsys fsutil.FileSystem, path string, im Image, title string) error {
	if im.NX == 0 || im.NY == 0 {
		return fmt.Errorf("%w: empty image", ErrNotPlanar)
	}
	var buf bytes.Buffer
	if err := HTMLHeatmap(im, title).Render(&buf); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	monitoring.Opsf("wrote heatmap page %s (%dx%d)", path, im.NX, im.NY)
	return nil
}
