package main

import (
	"context"
	"log"
	"runtime"

	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/kernel"
	"github.com/chazu/umbra/pkg/kernel/sdfx"
	"github.com/chazu/umbra/pkg/meshio"
	"github.com/chazu/umbra/pkg/scene"
	"github.com/chazu/umbra/pkg/shadow"
	"github.com/chazu/umbra/pkg/tessellate"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// App runs the pipeline from a scene script or a mesh file to shadow
// outlines.
type App struct {
	engine  *scene.Engine
	kernel  kernel.Kernel
	workers int
}

// SegmentData is one projected outline segment.
type SegmentData struct {
	A [3]float64 `json:"a"`
	B [3]float64 `json:"b"`
}

// OutlineData is the JSON-serializable shadow outline of one part for one
// light.
type OutlineData struct {
	PartName  string        `json:"partName"`
	Light     [3]float64    `json:"light"`
	Edges     int           `json:"edges"`
	Skipped   int           `json:"skipped"`
	Perimeter float64       `json:"perimeter"`
	Segments  []SegmentData `json:"segments"`
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of one run.
type EvalResult struct {
	Outlines []OutlineData   `json:"outlines"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates an App with the default sdfx kernel, using every CPU.
func NewApp() *App {
	return NewAppWithKernel(sdfx.New(), runtime.NumCPU())
}

// NewAppWithKernel creates an App that tessellates with k and runs up to
// workers meshes or outlines at once.
func NewAppWithKernel(k kernel.Kernel, workers int) *App {
	if workers < 1 {
		workers = 1
	}
	return &App{
		engine:  scene.NewEngine(),
		kernel:  k,
		workers: workers,
	}
}

func newResult() EvalResult {
	return EvalResult{
		Outlines: []OutlineData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
}

// Evaluate takes scene source and returns the shadow outline of every part
// for every light the script declares, on the script's plane.
func (a *App) Evaluate(source string) EvalResult {
	result := newResult()

	s, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		log.Printf("Evaluate fatal error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	findings := scene.Validate(s)
	for _, f := range findings {
		d := EvalErrorData{Message: f.Error()}
		if f.Severity == scene.SeverityWarning {
			log.Printf("Validate warning: %s", f.Error())
			result.Warnings = append(result.Warnings, d)
		} else {
			result.Errors = append(result.Errors, d)
		}
	}
	if scene.HasErrors(findings) {
		return result
	}

	ctx := context.Background()
	meshes, err := tessellate.TessellateContext(ctx, s, a.kernel, a.workers)
	if err != nil {
		log.Printf("Tessellate error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}

	a.outline(ctx, &result, meshes, s.Lights, s.ShadowPlane())
	return result
}

// AnalyzeFile loads a glTF file and returns the shadow outline of every
// triangle primitive for every light on plane.
func (a *App) AnalyzeFile(path string, lights []v3.Vec, plane geom.Plane) EvalResult {
	result := newResult()

	meshes, err := meshio.Load(path)
	if err != nil {
		log.Printf("Load error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(lights) == 0 {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: "no light given"})
	}

	a.outline(context.Background(), &result, meshes, lights, plane)
	return result
}

func (a *App) outline(ctx context.Context, result *EvalResult, meshes []*kernel.Mesh, lights []v3.Vec, plane geom.Plane) {
	outlines, err := shadow.ComputeAll(ctx, meshes, lights, plane, a.workers)
	if err != nil {
		log.Printf("Outline error: %v", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "outline failed: " + err.Error()})
		return
	}
	for _, o := range outlines {
		if o.Skipped > 0 {
			log.Printf("%s: %d edges skipped, light ray parallel to plane", o.PartName, o.Skipped)
		}
		result.Outlines = append(result.Outlines, toOutlineData(o))
	}
}

func toOutlineData(o *shadow.Outline) OutlineData {
	d := OutlineData{
		PartName:  o.PartName,
		Light:     toArray(o.Light),
		Edges:     o.Edges,
		Skipped:   o.Skipped,
		Perimeter: o.Perimeter(),
		Segments:  make([]SegmentData, len(o.Segments)),
	}
	for i, s := range o.Segments {
		d.Segments[i] = SegmentData{A: toArray(s.A), B: toArray(s.B)}
	}
	return d
}

func toArray(v v3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
