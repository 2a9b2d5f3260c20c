package scene

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/field/backend"
	"github.com/banshee-data/fieldgrid/internal/field/extrapolation"
	"github.com/banshee-data/fieldgrid/internal/field/geom"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/monitoring"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalidScene is returned for scene files that cannot be built.
var ErrInvalidScene = errors.New("invalid scene")

// File is the YAML layout of a scene.
type File struct {
	Name          string      `yaml:"name"`
	Grid          GridSpec    `yaml:"grid"`
	Extrapolation string      `yaml:"extrapolation"`
	Fields        []FieldSpec `yaml:"fields"`
}

// GridSpec describes the grid shared by the scene's grid fields.
type GridSpec struct {
	Lower      []float64 `yaml:"lower"`
	Upper      []float64 `yaml:"upper"`
	Resolution []int     `yaml:"resolution"`
}

// FieldSpec describes one named field. Kind selects which of the other
// keys apply:
//
//	centered   value | values | blob
//	staggered  velocity | vortex
//	points     points, value | values, add_overlapping
//	seeded     from (a centered field), particles_per_cell, distribution, value
//	scattered  from (a points or seeded field), add_overlapping
type FieldSpec struct {
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind"`
	Extrapolation string `yaml:"extrapolation"`

	Value  *float64  `yaml:"value"`
	Values []float64 `yaml:"values"`
	Blob   *Blob     `yaml:"blob"`

	Velocity []float64 `yaml:"velocity"`
	Vortex   *Vortex   `yaml:"vortex"`

	Points         [][]float64 `yaml:"points"`
	AddOverlapping *bool       `yaml:"add_overlapping"`

	From             string `yaml:"from"`
	ParticlesPerCell int    `yaml:"particles_per_cell"`
	Distribution     string `yaml:"distribution"`
}

// Blob is a Gaussian bump: amplitude * exp(-|x-center|^2 / (2 radius^2)),
// thresholded to zero below cutoff.
type Blob struct {
	Center    []float64 `yaml:"center"`
	Radius    float64   `yaml:"radius"`
	Amplitude float64   `yaml:"amplitude"`
	Cutoff    float64   `yaml:"cutoff"`
}

// Vortex is a 2-D rotational flow about center with the given angular
// speed.
type Vortex struct {
	Center   []float64 `yaml:"center"`
	Strength float64   `yaml:"strength"`
}

// Defaults applied to field specs that leave them unset.
type Defaults struct {
	ParticlesPerCell int
	Distribution     field.Distribution
	AddOverlapping   bool
	// Extrapolation applies when the scene names none. Nil means Zero.
	Extrapolation extrapolation.Extrapolation
}

// Default builds the embedded demo scene.
func Default(be backend.Backend, d Defaults) (*Registry, error) {
	return Parse(be, defaultYAML, d)
}

// Load reads a scene file from disk.
func Load(be backend.Backend, path string, d Defaults) (*Registry, error) {
	return LoadFS(be, fsutil.OSFileSystem{}, path, d)
}

// LoadFS reads a .yaml or .yml scene file through fsys.
func LoadFS(be backend.Backend, fsys fsutil.FileSystem, path string, d Defaults) (*Registry, error) {
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("scene file must have .yaml extension, got %q", ext)
	}
	data, err := fsys.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	return Parse(be, data, d)
}

// Parse decodes and builds a scene. Unknown keys are rejected.
func Parse(be backend.Backend, data []byte, d Defaults) (*Registry, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse scene YAML: %w", err)
	}
	reg, err := Build(be, f, d)
	if err != nil {
		return nil, err
	}
	monitoring.Opsf("scene %q: built %d fields", f.Name, reg.Len())
	return reg, nil
}

// Build constructs every field of f in order. Fields may refer to fields
// defined before them.
func Build(be backend.Backend, f File, d Defaults) (*Registry, error) {
	box, err := geom.NewBox(f.Grid.Lower, f.Grid.Upper)
	if err != nil {
		return nil, fmt.Errorf("%w: grid: %w", ErrInvalidScene, err)
	}
	cell, err := geom.NewGridCell(box, f.Grid.Resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: grid: %w", ErrInvalidScene, err)
	}
	sceneExt := d.Extrapolation
	if f.Extrapolation != "" || sceneExt == nil {
		if sceneExt, err = extrapolation.ByName(f.Extrapolation); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
		}
	}

	b := builder{be: be, cell: cell, ext: sceneExt, defaults: d, reg: NewRegistry()}
	b.reg.SetGrid(cell)
	for i, spec := range f.Fields {
		fld, err := b.build(spec)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d (%q): %w", ErrInvalidScene, i, spec.Name, err)
		}
		if err := b.reg.Add(spec.Name, fld); err != nil {
			return nil, fmt.Errorf("%w: field %d: %w", ErrInvalidScene, i, err)
		}
	}
	return b.reg, nil
}

type builder struct {
	be       backend.Backend
	cell     geom.GridCell
	ext      extrapolation.Extrapolation
	defaults Defaults
	reg      *Registry
}

func (b builder) build(spec FieldSpec) (field.Field, error) {
	ext := b.ext
	if spec.Extrapolation != "" {
		var err error
		if ext, err = extrapolation.ByName(spec.Extrapolation); err != nil {
			return nil, err
		}
	}
	switch spec.Kind {
	case "centered":
		return b.centered(spec, ext)
	case "staggered":
		return b.staggered(spec, ext)
	case "points":
		return b.points(spec, ext)
	case "seeded":
		return b.seeded(spec)
	case "scattered":
		return b.scattered(spec)
	}
	return nil, fmt.Errorf("unknown kind %q", spec.Kind)
}

func (b builder) centered(spec FieldSpec, ext extrapolation.Extrapolation) (field.Field, error) {
	res := b.cell.Resolution()
	shape := append(append([]int{1}, res...), 1)
	switch {
	case spec.Blob != nil:
		vals, err := b.blob(*spec.Blob)
		if err != nil {
			return nil, err
		}
		t, err := backend.New(shape, vals)
		if err != nil {
			return nil, err
		}
		return field.NewCenteredGrid(b.be, b.cell, t, ext)
	case spec.Values != nil:
		t, err := backend.New(shape, spec.Values)
		if err != nil {
			return nil, err
		}
		return field.NewCenteredGrid(b.be, b.cell, t, ext)
	case spec.Value != nil:
		return field.NewCenteredGrid(b.be, b.cell, backend.Scalar(*spec.Value), ext)
	}
	return nil, errors.New("centered field needs value, values or blob")
}

func (b builder) blob(blob Blob) ([]float64, error) {
	if len(blob.Center) != b.cell.Rank() || blob.Radius <= 0 {
		return nil, fmt.Errorf("blob needs a rank-%d center and a positive radius", b.cell.Rank())
	}
	amp := blob.Amplitude
	if amp == 0 {
		amp = 1
	}
	out := make([]float64, b.cell.ElementCount())
	idx := make([]int, b.cell.Rank())
	for i := range out {
		b.cell.Unravel(i, idx)
		c := b.cell.Center(idx)
		var d2 float64
		for a := range c {
			d := c[a] - blob.Center[a]
			d2 += d * d
		}
		v := amp * math.Exp(-d2/(2*blob.Radius*blob.Radius))
		if v < blob.Cutoff {
			v = 0
		}
		out[i] = v
	}
	return out, nil
}

func (b builder) staggered(spec FieldSpec, ext extrapolation.Extrapolation) (field.Field, error) {
	rank := b.cell.Rank()
	res := b.cell.Resolution()
	comps := make([]backend.Tensor, rank)
	switch {
	case spec.Vortex != nil:
		if rank != 2 || len(spec.Vortex.Center) != 2 {
			return nil, errors.New("vortex needs a 2-D grid and center")
		}
		for axis := range comps {
			comps[axis] = b.vortexFaces(*spec.Vortex, axis)
		}
	case spec.Velocity != nil:
		if len(spec.Velocity) != rank {
			return nil, fmt.Errorf("velocity has %d components for rank-%d grid", len(spec.Velocity), rank)
		}
		for axis := range comps {
			shape := append([]int{1}, res...)
			shape[axis+1]++
			comps[axis] = backend.Full(spec.Velocity[axis], shape...)
		}
	default:
		return nil, errors.New("staggered field needs velocity or vortex")
	}
	return field.NewStaggeredGrid(b.be, b.cell, comps, ext)
}

// vortexFaces evaluates the vortex component along axis on the faces
// normal to it.
func (b builder) vortexFaces(v Vortex, axis int) backend.Tensor {
	res := b.cell.Resolution()
	box := b.cell.Bounds()
	nx, ny := res[0], res[1]
	if axis == 0 {
		nx++
	} else {
		ny++
	}
	data := make([]float64, 0, nx*ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			loc := []float64{(float64(i) + 0.5) / float64(res[0]), (float64(j) + 0.5) / float64(res[1])}
			loc[axis] -= 0.5 / float64(res[axis])
			p := box.LocalToGlobal(loc)
			dx, dy := p[0]-v.Center[0], p[1]-v.Center[1]
			if axis == 0 {
				data = append(data, -v.Strength*dy)
			} else {
				data = append(data, v.Strength*dx)
			}
		}
	}
	return backend.MustNew(backend.Shape{1, nx, ny}, data)
}

func (b builder) points(spec FieldSpec, ext extrapolation.Extrapolation) (field.Field, error) {
	rank := b.cell.Rank()
	if len(spec.Points) == 0 {
		return nil, errors.New("points field needs points")
	}
	flat := make([]float64, 0, len(spec.Points)*rank)
	for i, p := range spec.Points {
		if len(p) != rank {
			return nil, fmt.Errorf("point %d has %d coordinates, want %d", i, len(p), rank)
		}
		flat = append(flat, p...)
	}
	pos, err := backend.New(backend.Shape{1, len(spec.Points), rank}, flat)
	if err != nil {
		return nil, err
	}
	ps, err := geom.NewPointSet(pos, 0)
	if err != nil {
		return nil, err
	}
	values := backend.Scalar(1)
	switch {
	case spec.Values != nil:
		if values, err = backend.New(backend.Shape{1, len(spec.Values), 1}, spec.Values); err != nil {
			return nil, err
		}
	case spec.Value != nil:
		values = backend.Scalar(*spec.Value)
	}
	return field.NewPointCloud(b.be, ps, values, ext, b.addOverlapping(spec))
}

func (b builder) addOverlapping(spec FieldSpec) bool {
	if spec.AddOverlapping != nil {
		return *spec.AddOverlapping
	}
	return b.defaults.AddOverlapping
}

func (b builder) seeded(spec FieldSpec) (field.Field, error) {
	src, err := b.reg.GetField(spec.From)
	if err != nil {
		return nil, err
	}
	density, ok := src.(*field.CenteredGrid)
	if !ok {
		return nil, fmt.Errorf("seeded field needs a centered source, %q is %T", spec.From, src)
	}
	ppc := spec.ParticlesPerCell
	if ppc == 0 {
		ppc = b.defaults.ParticlesPerCell
	}
	dist := b.defaults.Distribution
	if spec.Distribution != "" {
		if dist, err = field.ParseDistribution(spec.Distribution); err != nil {
			return nil, err
		}
	}
	value := 1.0
	if spec.Value != nil {
		value = *spec.Value
	}
	pc, err := field.SeedPointCloud(b.be, density, ppc, dist, value)
	if err != nil {
		return nil, err
	}
	return pc.WithAddOverlapping(b.addOverlapping(spec)), nil
}

func (b builder) scattered(spec FieldSpec) (field.Field, error) {
	src, err := b.reg.GetField(spec.From)
	if err != nil {
		return nil, err
	}
	pc, ok := src.(*field.PointCloud)
	if !ok {
		return nil, fmt.Errorf("scattered field needs a point source, %q is %T", spec.From, src)
	}
	if spec.AddOverlapping != nil {
		pc = pc.WithAddOverlapping(*spec.AddOverlapping)
	}
	return pc.Scatter(b.cell)
}
