package main

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/umbra/pkg/geom"
	"github.com/chazu/umbra/pkg/kernel/sdfx"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

var ground = geom.MakePlane(v3.Vec{Z: 1}, v3.Vec{})

// testApp uses a coarse kernel so scripts mesh quickly.
func testApp() *App {
	return NewAppWithKernel(sdfx.NewWithCells(40), 4)
}

func requireClean(t *testing.T, r EvalResult) {
	t.Helper()
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
}

func hasMessage(list []EvalErrorData, substr string) bool {
	for _, e := range list {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Scene scripts
// ---------------------------------------------------------------------------

// TestE2EYardExample exercises the full pipeline: script -> scene ->
// tessellate -> silhouette -> shadow outline.
func TestE2EYardExample(t *testing.T) {
	source, err := os.ReadFile("examples/yard.umbra")
	if err != nil {
		t.Fatalf("failed to read yard.umbra: %v", err)
	}

	result := testApp().Evaluate(string(source))
	requireClean(t, result)
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}

	if len(result.Outlines) != 2 {
		t.Fatalf("expected 2 outlines, got %d", len(result.Outlines))
	}
	for i, name := range []string{"post", "ball"} {
		o := result.Outlines[i]
		if o.PartName != name {
			t.Errorf("outline %d: part %q, want %q", i, o.PartName, name)
		}
		if o.Light != [3]float64{-20, -10, 60} {
			t.Errorf("%s: light = %v", name, o.Light)
		}
		if len(o.Segments) == 0 || o.Perimeter <= 0 {
			t.Errorf("%s: %d segments, perimeter %v", name, len(o.Segments), o.Perimeter)
		}
		if o.Skipped != 0 {
			t.Errorf("%s: %d edges skipped", name, o.Skipped)
		}
		if o.Edges < len(o.Segments) {
			t.Errorf("%s: %d edges but %d segments", name, o.Edges, len(o.Segments))
		}
		for _, s := range o.Segments {
			if math.Abs(s.A[2]) > 1e-9 || math.Abs(s.B[2]) > 1e-9 {
				t.Fatalf("%s: segment %v not on the ground plane", name, s)
			}
		}
	}
}

func TestE2EEmptySource(t *testing.T) {
	result := testApp().Evaluate("")

	if len(result.Errors) != 0 || len(result.Warnings) != 0 || len(result.Outlines) != 0 {
		t.Errorf("expected an empty result, got %+v", result)
	}
	// Slices stay non-nil so JSON carries [] rather than null.
	if result.Outlines == nil || result.Errors == nil || result.Warnings == nil {
		t.Error("result slices should be non-nil")
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"outlines":[]`)) {
		t.Errorf("json = %s", data)
	}
}

func TestE2ECommentsOnly(t *testing.T) {
	result := testApp().Evaluate("; nothing here\n   ; or here\n\n")
	requireClean(t, result)
	if len(result.Outlines) != 0 {
		t.Errorf("expected 0 outlines, got %d", len(result.Outlines))
	}
}

func TestE2ESyntaxError(t *testing.T) {
	result := testApp().Evaluate("(defpart \"test\"\n  (box 1 2 3)\n")
	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for unbalanced parens")
	}
	if len(result.Outlines) != 0 {
		t.Errorf("expected 0 outlines on error, got %d", len(result.Outlines))
	}
}

func TestE2EUndefinedPartReference(t *testing.T) {
	result := testApp().Evaluate(`(group "g" (place (part "nonexistent")))`)
	if !hasMessage(result.Errors, "no part named") {
		t.Fatalf("errors = %v, want a missing part", result.Errors)
	}
}

func TestE2EInvalidDimensions(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"zero box", `(defpart "p" (box 0 1 1)) (group "g" (part "p")) (light (vec3 0 0 9))`},
		{"negative radius", `(defpart "p" (sphere -2)) (group "g" (part "p")) (light (vec3 0 0 9))`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testApp().Evaluate(tt.source)
			if !hasMessage(result.Errors, "must be positive") {
				t.Fatalf("errors = %v, want a dimension error", result.Errors)
			}
			if len(result.Outlines) != 0 {
				t.Errorf("expected 0 outlines, got %d", len(result.Outlines))
			}
		})
	}
}

func TestE2EWarnings(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"unplaced part", `(defpart "p" (box 1 1 1)) (light (vec3 0 0 9))`, "never placed"},
		{"no light", `(defpart "p" (box 1 1 1)) (group "g" (part "p"))`, "no light"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := testApp().Evaluate(tt.source)
			requireClean(t, result)
			if !hasMessage(result.Warnings, tt.want) {
				t.Errorf("warnings = %v, want %q", result.Warnings, tt.want)
			}
			if len(result.Outlines) != 0 {
				t.Errorf("expected 0 outlines, got %d", len(result.Outlines))
			}
		})
	}
}

func TestE2EArithmeticDef(t *testing.T) {
	source := `
(def w (* 2 3))
(def h (/ w 2))
(defpart "slab" (box w h 1))
(group "g" (place (part "slab") :at (vec3 0 0 2)))
(light (vec3 3 1.5 40))
`
	result := testApp().Evaluate(source)
	requireClean(t, result)
	if len(result.Outlines) != 1 {
		t.Fatalf("expected 1 outline, got %d", len(result.Outlines))
	}
	// The slab is 6 x 3. Meshing rounds its corners a little.
	if p := result.Outlines[0].Perimeter; p < 15 {
		t.Errorf("perimeter = %v, want at least 15", p)
	}
}

func TestE2EMultipleLights(t *testing.T) {
	source := `
(defpart "cube" (box 2 2 2))
(group "g" (place (part "cube") :at (vec3 0 0 1)))
(light (vec3 0 0 30))
(light (vec3 30 0 30))
`
	result := testApp().Evaluate(source)
	requireClean(t, result)
	if len(result.Outlines) != 2 {
		t.Fatalf("expected 2 outlines, got %d", len(result.Outlines))
	}
	if result.Outlines[0].Light != [3]float64{0, 0, 30} || result.Outlines[1].Light != [3]float64{30, 0, 30} {
		t.Errorf("lights out of order: %v, %v", result.Outlines[0].Light, result.Outlines[1].Light)
	}
	// The slanted light stretches the shadow.
	if result.Outlines[1].Perimeter <= result.Outlines[0].Perimeter {
		t.Errorf("perimeters %v, %v: slanted light should cast the longer outline",
			result.Outlines[0].Perimeter, result.Outlines[1].Perimeter)
	}
}

// TestE2ERapidEvaluation simulates an editor re-evaluating on every
// keystroke: no panics, and every result is well formed.
func TestE2ERapidEvaluation(t *testing.T) {
	app := testApp()
	sources := []string{
		`(defpart "p" (box 1 1 1)) (group "g" (part "p")) (light (vec3 0 0 9))`,
		`(defpart "p" (box 1 1`,
		``,
		`(defpart "p" (sphere 1)) (group "g" (part "p")) (light (vec3 0 0 9))`,
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			r := app.Evaluate(src)
			if r.Outlines == nil || r.Errors == nil || r.Warnings == nil {
				t.Error("result slices should be non-nil")
			}
		}(sources[i%len(sources)])
	}
	wg.Wait()
}

// ---------------------------------------------------------------------------
// Mesh files
// ---------------------------------------------------------------------------

// writeQuad writes a unit quad at z=1 as a .gltf with an embedded buffer.
func writeQuad(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	positions := [][3]float32{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	if err := binary.Write(&buf, binary.LittleEndian, positions); err != nil {
		t.Fatal(err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, indices); err != nil {
		t.Fatal(err)
	}

	doc := map[string]any{
		"asset": map[string]any{"version": "2.0"},
		"buffers": []map[string]any{{
			"byteLength": buf.Len(),
			"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		}},
		"bufferViews": []map[string]any{
			{"buffer": 0, "byteOffset": 0, "byteLength": 48},
			{"buffer": 0, "byteOffset": 48, "byteLength": 24},
		},
		"accessors": []map[string]any{
			{"bufferView": 0, "componentType": 5126, "count": 4, "type": "VEC3"},
			{"bufferView": 1, "componentType": 5125, "count": 6, "type": "SCALAR"},
		},
		"meshes": []map[string]any{{
			"name":       "tile",
			"primitives": []map[string]any{{"attributes": map[string]any{"POSITION": 0}, "indices": 1}},
		}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tile.gltf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestE2EAnalyzeFile(t *testing.T) {
	path := writeQuad(t)

	result := testApp().AnalyzeFile(path, []v3.Vec{{X: 0.5, Y: 0.5, Z: 5}}, ground)
	requireClean(t, result)
	if len(result.Outlines) != 1 {
		t.Fatalf("expected 1 outline, got %d", len(result.Outlines))
	}
	o := result.Outlines[0]
	if o.PartName != "tile" || len(o.Segments) != 4 {
		t.Fatalf("outline %q has %d segments, want tile with 4", o.PartName, len(o.Segments))
	}
	// Seen from z=5 the quad at z=1 grows by 5/4 on the ground.
	if math.Abs(o.Perimeter-5) > 1e-6 {
		t.Errorf("perimeter = %v, want 5", o.Perimeter)
	}
}

func TestE2EAnalyzeFileWithoutLight(t *testing.T) {
	result := testApp().AnalyzeFile(writeQuad(t), nil, ground)
	requireClean(t, result)
	if !hasMessage(result.Warnings, "no light") || len(result.Outlines) != 0 {
		t.Errorf("result = %+v, want a warning and no outlines", result)
	}
}

func TestE2EAnalyzeMissingFile(t *testing.T) {
	result := testApp().AnalyzeFile(filepath.Join(t.TempDir(), "none.glb"), []v3.Vec{{Z: 1}}, ground)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for a missing file")
	}
}

