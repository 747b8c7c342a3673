package component

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

var ErrInvalidTree = errors.New("render tree failed validation")

// Violation is one reason a tree was rejected.
type Violation struct {
	Path    string
	Message string
}

// ValidationError lists every violation found in a submitted tree.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Path+": "+v.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidTree, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidTree }

// Validate checks a fully realized tree against the model. The root must be
// a root node; every node's kind, properties and children must be declared,
// required properties present and node IDs unique.
func (m *Model) Validate(root *widget.Node) error {
	if root == nil {
		return &ValidationError{Violations: []Violation{{Path: "$", Message: "missing root"}}}
	}

	v := &validator{model: m, seen: make(map[widget.ID]struct{})}
	if root.Kind != widget.KindRoot {
		v.add("$", "root node is %s, want %s", root.Kind, widget.KindRoot)
	}
	v.node("$", root)

	if len(v.violations) > 0 {
		return &ValidationError{Violations: v.violations}
	}
	return nil
}

type validator struct {
	model      *Model
	seen       map[widget.ID]struct{}
	violations []Violation
}

func (v *validator) add(path, format string, args ...interface{}) {
	v.violations = append(v.violations, Violation{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) node(path string, n *widget.Node) {
	path = fmt.Sprintf("%s/%s#%d", path, n.Kind, n.ID)

	if _, dup := v.seen[n.ID]; dup {
		v.add(path, "duplicate widget id %d", n.ID)
	}
	v.seen[n.ID] = struct{}{}

	if n.Kind == widget.KindText {
		if len(n.Properties) > 0 || len(n.Children) > 0 {
			v.add(path, "text widgets carry no properties or children")
		}
		return
	}

	c, ok := v.model.Component(n.Kind)
	if !ok {
		v.add(path, "undeclared component %q", n.Kind)
		return
	}

	present := make(map[string]struct{}, len(n.Properties))
	for _, p := range n.Properties {
		if _, dup := present[p.Name]; dup {
			v.add(path, "property %q set twice", p.Name)
		}
		present[p.Name] = struct{}{}
		if err := p.Value.Validate(); err != nil {
			v.add(path, "%s: %v", p.Name, err)
			continue
		}
		if err := v.model.CheckProperty(n.Kind, p); err != nil {
			v.add(path, "%v", err)
		}
	}
	for _, decl := range c.Properties {
		if _, ok := present[decl.Name]; !ok && !decl.Optional {
			v.add(path, "required property %q missing", decl.Name)
		}
	}

	for _, child := range n.Children {
		if child == nil {
			v.add(path, "nil child")
			continue
		}
		if !c.Allows(child.Kind) {
			v.add(path, "%s may not contain %s", n.Kind, child.Kind)
		}
		v.node(path, child)
	}
}
