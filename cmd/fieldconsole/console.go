package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/banshee-data/fieldgrid/internal/config"
	"github.com/banshee-data/fieldgrid/internal/export"
	"github.com/banshee-data/fieldgrid/internal/field"
	"github.com/banshee-data/fieldgrid/internal/fsutil"
	"github.com/banshee-data/fieldgrid/internal/render"
	"github.com/banshee-data/fieldgrid/internal/scene"
	"github.com/banshee-data/fieldgrid/internal/security"
	"github.com/banshee-data/fieldgrid/internal/storage/sqlite"
	"github.com/banshee-data/fieldgrid/internal/version"
)

// errQuit ends the command loop.
var errQuit = errors.New("quit")

// Console is the interactive command loop over a scene.
type Console struct {
	out   io.Writer
	reg   *scene.Registry
	cfg   *config.FieldConfig
	fsys  fsutil.FileSystem
	store *sqlite.SnapshotStore // nil disables save, load and snapshots

	// size reports the terminal size in characters.
	size func() (cols, rows int)
}

// NewConsole returns a console writing to out.
func NewConsole(out io.Writer, reg *scene.Registry, cfg *config.FieldConfig, fsys fsutil.FileSystem, store *sqlite.SnapshotStore) *Console {
	c := &Console{out: out, reg: reg, cfg: cfg, fsys: fsys, store: store}
	c.size = func() (int, int) { return terminalSize(cfg) }
	return c
}

// terminalSize reads COLUMNS and LINES when the shell exports them and
// falls back to the configured console size.
func terminalSize(cfg *config.FieldConfig) (cols, rows int) {
	cols, rows = cfg.GetConsoleWidth(), cfg.GetConsoleHeight()
	if v, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && v > 0 {
		cols = v
	}
	if v, err := strconv.Atoi(os.Getenv("LINES")); err == nil && v > 1 {
		rows = v
	}
	return cols, rows
}

// Run reads commands from in until EOF, quit or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	c.prompt()
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.Exec(sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		c.prompt()
	}
	return sc.Err()
}

func (c *Console) prompt() { fmt.Fprint(c.out, "> ") }

// Exec runs one command line.
func (c *Console) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "list", "ls":
		c.list()
	case "show":
		return c.show(args)
	case "png", "html", "csv":
		return c.write(cmd, args)
	case "save":
		return c.save(args)
	case "load":
		return c.load(args)
	case "snapshots":
		return c.snapshots()
	case "version":
		fmt.Fprintln(c.out, version.String())
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, type help for a list", cmd)
	}
	return nil
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  help                     Show this help
  list                     List the fields of the scene
  show [a,b,...]           Draw fields as heatmaps (default: first two)
  png <field> [path]       Write a PNG heatmap
  html <field> [path]      Write an interactive HTML heatmap
  csv <field> [path]       Export values as CSV
  save <field>             Store a snapshot of a field
  load <id> <name>         Restore a snapshot as a field
  snapshots                List stored snapshots
  version                  Show version information
  quit                     Leave the console
`)
}

func (c *Console) list() {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, name := range c.reg.OrderedNames(c.cfg.GetDisplay()) {
		f, err := c.reg.GetField(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%v\n", name, f)
	}
	tw.Flush()
}

// show draws the named fields side by side. Names may be given as one
// comma separated argument or as separate arguments.
func (c *Console) show(args []string) error {
	var names []string
	for _, a := range args {
		for _, n := range strings.Split(a, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	if len(names) == 0 {
		names = c.reg.OrderedNames(c.cfg.GetDisplay())
		if len(names) == 0 {
			fmt.Fprintln(c.out, "Nothing to show.")
			return nil
		}
		if len(names) > 2 {
			names = names[:2]
		}
	}

	fields := make([]field.Field, 0, len(names))
	for _, n := range names {
		f, err := c.reg.GetField(n)
		if err != nil {
			fmt.Fprintf(c.out, "The field %s does not exist. Available fields are %v\n", n, c.reg.Names())
			return nil
		}
		fields = append(fields, f)
	}

	cols, rows := c.size()
	width, height := cols/len(fields), rows-1
	if width < 1 || height < 1 {
		return fmt.Errorf("terminal too small (%dx%d) for %d fields", cols, rows, len(fields))
	}

	lines := make([]string, height)
	for _, f := range fields {
		im, err := c.image(f)
		if err != nil {
			return err
		}
		for i, l := range render.Heatmap(im, width, height) {
			lines[i] += l
		}
	}
	fmt.Fprintln(c.out, strings.Join(lines, "\n"))
	return nil
}

func (c *Console) image(f field.Field) (render.Image, error) {
	cell, ok := c.reg.Grid()
	if !ok {
		if _, isPoints := f.(*field.PointCloud); isPoints {
			return render.Image{}, fmt.Errorf("scene has no grid to rasterize point clouds onto")
		}
	}
	return render.GridValues(f, cell)
}

func (c *Console) write(kind string, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: %s <field> [path]", kind)
	}
	name := args[0]
	f, err := c.reg.GetField(name)
	if err != nil {
		return err
	}
	path := security.OutputPath(c.cfg.GetPlotDir(), name, kind)
	if len(args) == 2 {
		path = args[1]
	}

	switch kind {
	case "csv":
		err = export.WriteFile(c.fsys, path, f)
	case "png", "html":
		var im render.Image
		if im, err = c.image(f); err != nil {
			return err
		}
		if kind == "png" {
			err = render.WritePNG(c.fsys, path, im, render.PNGOptions{Title: name})
		} else {
			err = render.WriteHTML(c.fsys, path, im, name)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "wrote %s\n", path)
	return nil
}

func (c *Console) save(args []string) error {
	if c.store == nil {
		return fmt.Errorf("no snapshot database")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: save <field>")
	}
	f, err := c.reg.GetField(args[0])
	if err != nil {
		return err
	}
	snap, err := c.store.Save(args[0], f)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "saved %s as %s\n", args[0], snap.SnapshotID)
	return nil
}

func (c *Console) load(args []string) error {
	if c.store == nil {
		return fmt.Errorf("no snapshot database")
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: load <id> <name>")
	}
	f, snap, err := c.store.Load(args[0])
	if err != nil {
		return err
	}
	if err := c.reg.Put(args[1], f); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "loaded %s (%s %s) as %s\n", snap.SnapshotID, snap.Kind, snap.Name, args[1])
	return nil
}

func (c *Console) snapshots() error {
	if c.store == nil {
		return fmt.Errorf("no snapshot database")
	}
	list, err := c.store.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.out, "No snapshots.")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tEXTRAPOLATION\tCREATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.SnapshotID, s.Name, s.Kind, s.Extrapolation, s.Created().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
