package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/kernel"
	"github.com/chazu/umbra/pkg/kernel/manifold"
	"github.com/chazu/umbra/pkg/kernel/sdfx"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// vecFlag parses "x,y,z".
type vecFlag struct {
	v   v3.Vec
	set bool
}

func (f *vecFlag) String() string {
	if !f.set {
		return ""
	}
	return formatVec(f.v)
}

func (f *vecFlag) Set(s string) error {
	v, err := parseVec(s)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

// vecList collects a repeatable "x,y,z" flag.
type vecList []v3.Vec

func (l *vecList) String() string {
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = formatVec(v)
	}
	return strings.Join(parts, " ")
}

func (l *vecList) Set(s string) error {
	v, err := parseVec(s)
	if err != nil {
		return err
	}
	*l = append(*l, v)
	return nil
}

func parseVec(s string) (v3.Vec, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return v3.Vec{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var xyz [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return v3.Vec{}, fmt.Errorf("component %d of %q: %w", i, s, err)
		}
		xyz[i] = n
	}
	return v3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

func formatVec(v v3.Vec) string {
	return fmt.Sprintf("%g,%g,%g", v.X, v.Y, v.Z)
}

func main() {
	var (
		lights     vecList
		normal     = vecFlag{v: v3.Vec{Z: 1}}
		at         vecFlag
		workers    = flag.Int("workers", runtime.NumCPU(), "parallel workers")
		kernelName = flag.String("kernel", "sdfx", "geometry kernel for scene scripts: sdfx or manifold")
		cells      = flag.Int("cells", 200, "sdfx marching cubes cells along the longest axis")
		iterations = flag.Int("iterations", 0, "run the timing harness this many times per stage")
		asJSON     = flag.Bool("json", false, "print the result as JSON")
	)
	flag.Var(&lights, "light", "point light position x,y,z (repeatable; mesh files only)")
	flag.Var(&normal, "normal", "receiving plane normal x,y,z (mesh files only)")
	flag.Var(&at, "at", "point on the receiving plane x,y,z (mesh files only)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: umbra [flags] scene.umbra|mesh.gltf|mesh.glb\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	k, err := newKernel(*kernelName, *cells)
	if err != nil {
		log.Fatal(err)
	}
	app := NewAppWithKernel(k, *workers)

	var result EvalResult
	plane := geom.MakePlane(normal.v, at.v)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gltf", ".glb":
		result = app.AnalyzeFile(path, lights, plane)
	default:
		source, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		if len(lights) > 0 || normal.set || at.set {
			log.Printf("-light, -normal and -at are ignored for scene scripts")
		}
		result = app.Evaluate(string(source))
	}

	if *iterations > 0 && len(result.Errors) == 0 {
		if err := app.benchmark(path, lights, plane, *iterations); err != nil {
			log.Fatalf("benchmark: %v", err)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			log.Fatalf("encode: %v", err)
		}
	} else {
		printResult(result)
	}
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

func newKernel(name string, cells int) (kernel.Kernel, error) {
	switch name {
	case "sdfx":
		return sdfx.NewWithCells(cells), nil
	case "manifold":
		return manifold.New()
	default:
		return nil, fmt.Errorf("unknown kernel %q", name)
	}
}

func printResult(r EvalResult) {
	for _, e := range r.Errors {
		if e.Line > 0 {
			fmt.Printf("error: line %d: %s\n", e.Line, e.Message)
		} else {
			fmt.Printf("error: %s\n", e.Message)
		}
	}
	for _, w := range r.Warnings {
		fmt.Printf("warning: %s\n", w.Message)
	}
	for _, o := range r.Outlines {
		fmt.Printf("%s light %g,%g,%g: %d edges, %d segments, %d skipped, perimeter %.4f\n",
			o.PartName, o.Light[0], o.Light[1], o.Light[2],
			o.Edges, len(o.Segments), o.Skipped, o.Perimeter)
	}
}
