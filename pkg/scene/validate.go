package scene

import (
	"fmt"
	"sort"
)

// ValidationSeverity indicates whether a validation finding blocks
// tessellation or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks tessellation
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if scene-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID, e.Message)
}

// Validate runs the structural checks on s. An empty result means the scene
// can be tessellated. Validate never mutates the scene.
func Validate(s *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(s)...)
	errs = append(errs, validateReferences(s)...)
	errs = append(errs, validateRoots(s)...)
	errs = append(errs, validateDimensions(s)...)
	errs = append(errs, validateLighting(s)...)
	return errs
}

// HasErrors reports whether any finding in errs is blocking.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// sortedIDs returns the node IDs of s in a stable order so findings come out
// the same way on every run.
func sortedIDs(s *Scene) []NodeID {
	ids := make([]NodeID, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// validateDAG checks for cycles using DFS with 3-color marking.
func validateDAG(s *Scene) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  "node is part of a cycle",
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node, ok := s.Nodes[id]
		if !ok {
			// Dangling; reported by validateReferences.
			color[id] = black
			return false
		}
		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range sortedIDs(s) {
		if color[id] == white && visit(id) {
			break
		}
	}
	return errs
}

// validateReferences checks that every child reference names an existing
// node and that the name index only points at parts.
func validateReferences(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, id := range sortedIDs(s) {
		for _, childID := range s.Nodes[id].Children {
			if _, ok := s.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("child reference %s does not exist", childID),
					Severity: SeverityError,
				})
			}
		}
	}

	names := make([]string, 0, len(s.NameIndex))
	for name := range s.NameIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := s.Nodes[s.NameIndex[name]]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, s.NameIndex[name]),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateRoots checks that roots exist, and warns about parts that no root
// reaches since they cast no shadow.
func validateRoots(s *Scene) []ValidationError {
	var errs []ValidationError
	reached := make(map[NodeID]bool)

	var mark func(id NodeID)
	mark = func(id NodeID) {
		if reached[id] {
			return
		}
		reached[id] = true
		if n := s.Nodes[id]; n != nil {
			for _, c := range n.Children {
				mark(c)
			}
		}
	}

	for _, id := range s.Roots {
		if _, ok := s.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root %s does not exist", id),
				Severity: SeverityError,
			})
			continue
		}
		mark(id)
	}

	for _, n := range s.Parts() {
		if !reached[n.ID] {
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("part %q is defined but never placed in a group", n.Name),
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

// validateDimensions checks that every primitive has positive extent.
func validateDimensions(s *Scene) []ValidationError {
	var errs []ValidationError
	bad := func(n *Node, what string, v float64) {
		errs = append(errs, ValidationError{
			NodeID:   n.ID,
			Message:  fmt.Sprintf("%s must be positive, got %g", what, v),
			Severity: SeverityError,
		})
	}

	for _, n := range s.Parts() {
		switch d := n.Data.(type) {
		case BoxData:
			if d.Size.X <= 0 {
				bad(n, "box x", d.Size.X)
			}
			if d.Size.Y <= 0 {
				bad(n, "box y", d.Size.Y)
			}
			if d.Size.Z <= 0 {
				bad(n, "box z", d.Size.Z)
			}
		case CylinderData:
			if d.Height <= 0 {
				bad(n, "cylinder height", d.Height)
			}
			if d.Radius <= 0 {
				bad(n, "cylinder radius", d.Radius)
			}
		case SphereData:
			if d.Radius <= 0 {
				bad(n, "sphere radius", d.Radius)
			}
		default:
			errs = append(errs, ValidationError{
				NodeID:   n.ID,
				Message:  fmt.Sprintf("unsupported primitive data %T", n.Data),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateLighting checks the receiving plane and warns when nothing lights
// the scene.
func validateLighting(s *Scene) []ValidationError {
	var errs []ValidationError
	if s.Plane != nil && s.Plane.Normal.Length() == 0 {
		errs = append(errs, ValidationError{
			Message:  "plane normal must be non-zero",
			Severity: SeverityError,
		})
	}
	if len(s.Lights) == 0 && len(s.Roots) > 0 {
		errs = append(errs, ValidationError{
			Message:  "scene has parts but no light",
			Severity: SeverityWarning,
		})
	}
	return errs
}
