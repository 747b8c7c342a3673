package component

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

func defaultModel(t *testing.T) *Model {
	t.Helper()
	m, err := Default()
	require.NoError(t, err)
	return m
}

// buildList builds root > list > (list_item "Hello" with icon, list_section > list_item)
// purely through tree operations.
func buildList(t *testing.T, m *Model) (*widget.Tree, widget.ID, widget.ID) {
	t.Helper()
	tree := widget.NewTree(m)

	root, err := tree.Container(widget.LocationView)
	require.NoError(t, err)
	list, err := tree.CreateInstance(widget.KindList, []widget.Property{
		{Name: "isLoading", Value: widget.Bool(false)},
	})
	require.NoError(t, err)
	item, err := tree.CreateInstance(widget.KindListItem, []widget.Property{
		{Name: "title", Value: widget.String("Hello")},
		{Name: "icon", Value: widget.String("asset:icon.png")},
		{Name: "onClick", Value: widget.Function(7)},
	})
	require.NoError(t, err)
	section, err := tree.CreateInstance(widget.KindListSection, []widget.Property{
		{Name: "title", Value: widget.String("More")},
	})
	require.NoError(t, err)
	nested, err := tree.CreateInstance(widget.KindListItem, []widget.Property{
		{Name: "title", Value: widget.String("Nested")},
	})
	require.NoError(t, err)

	require.NoError(t, tree.AppendChild(section, nested))
	require.NoError(t, tree.AppendChild(list, item))
	require.NoError(t, tree.AppendChild(list, section))
	require.NoError(t, tree.AppendChild(root, list))
	return tree, root, item
}

func TestDefaultModel(t *testing.T) {
	m := defaultModel(t)

	c, ok := m.Component(widget.KindListItem)
	require.True(t, ok)
	assert.True(t, c.Allows(widget.KindTextAccessory))
	assert.False(t, c.Allows(widget.KindText))

	name, ok := m.ImageProperty(widget.KindImage)
	assert.True(t, ok)
	assert.Equal(t, "source", name)

	_, ok = m.ImageProperty(widget.KindList)
	assert.False(t, ok)

	all := m.Components()
	assert.Len(t, all, len(m.Kinds()))
	all["list"] = Component{}
	c, _ = m.Component(widget.KindList)
	assert.NotEmpty(t, c.Children, "Components must return a copy")
}

func TestParseRejectsBadSchemas(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "unknown kind", yaml: "components:\n  - kind: root\n  - kind: marquee\n"},
		{name: "unknown type", yaml: "components:\n  - kind: root\n    properties:\n      - {name: a, type: date}\n"},
		{name: "two images", yaml: "components:\n  - kind: root\n  - kind: image\n    properties:\n      - {name: a, type: image}\n      - {name: b, type: image}\n"},
		{name: "undeclared child", yaml: "components:\n  - kind: root\n    children: [list]\n"},
		{name: "no root", yaml: "components:\n  - kind: list\n"},
		{name: "duplicate", yaml: "components:\n  - kind: root\n  - kind: root\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrSchema)
		})
	}
}

func TestCheckProperty(t *testing.T) {
	m := defaultModel(t)

	tests := []struct {
		name    string
		kind    widget.Kind
		prop    widget.Property
		wantErr bool
	}{
		{name: "declared string", kind: widget.KindListItem, prop: widget.Property{Name: "title", Value: widget.String("x")}},
		{name: "declared function", kind: widget.KindAction, prop: widget.Property{Name: "onAction", Value: widget.Function(1)}},
		{name: "image ref", kind: widget.KindImage, prop: widget.Property{Name: "source", Value: widget.String("https://example.com/x.png")}},
		{name: "undeclared", kind: widget.KindListItem, prop: widget.Property{Name: "color", Value: widget.String("red")}, wantErr: true},
		{name: "type mismatch", kind: widget.KindListItem, prop: widget.Property{Name: "title", Value: widget.Number(1)}, wantErr: true},
		{name: "bad image ref", kind: widget.KindImage, prop: widget.Property{Name: "source", Value: widget.String("ftp://x")}, wantErr: true},
		{name: "function for bool", kind: widget.KindList, prop: widget.Property{Name: "isLoading", Value: widget.Function(1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.CheckProperty(tt.kind, tt.prop)
			if tt.wantErr {
				assert.ErrorIs(t, err, widget.ErrInvalidProperty)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTreeBuiltFromOperations(t *testing.T) {
	m := defaultModel(t)
	tree, root, _ := buildList(t, m)

	snap, err := tree.Snapshot(root)
	require.NoError(t, err)
	assert.NoError(t, m.Validate(snap))
}

func TestValidateRejectsUndeclaredProperty(t *testing.T) {
	m := defaultModel(t)
	tree, root, item := buildList(t, m)

	snap, err := tree.Snapshot(root)
	require.NoError(t, err)

	var target *widget.Node
	snap.Walk(func(n *widget.Node) {
		if n.ID == item {
			target = n
		}
	})
	require.NotNil(t, target)
	target.Properties = append(target.Properties, widget.Property{Name: "sparkle", Value: widget.Bool(true)})

	err = m.Validate(snap)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTree)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 1)
	assert.Contains(t, verr.Violations[0].Message, "sparkle")
}

func TestValidateStructure(t *testing.T) {
	m := defaultModel(t)

	tests := []struct {
		name string
		root *widget.Node
	}{
		{name: "nil root", root: nil},
		{name: "wrong root kind", root: &widget.Node{ID: 1, Kind: widget.KindList}},
		{
			name: "forbidden child",
			root: &widget.Node{ID: 1, Kind: widget.KindRoot, Children: []*widget.Node{
				{ID: 2, Kind: widget.KindParagraph},
			}},
		},
		{
			name: "missing required property",
			root: &widget.Node{ID: 1, Kind: widget.KindRoot, Children: []*widget.Node{
				{ID: 2, Kind: widget.KindList, Children: []*widget.Node{{ID: 3, Kind: widget.KindListItem}}},
			}},
		},
		{
			name: "duplicate id",
			root: &widget.Node{ID: 1, Kind: widget.KindRoot, Children: []*widget.Node{
				{ID: 1, Kind: widget.KindList},
			}},
		},
		{
			name: "text where not allowed",
			root: &widget.Node{ID: 1, Kind: widget.KindRoot, Children: []*widget.Node{
				{ID: 2, Kind: widget.KindText, Text: "loose"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Validate(tt.root), ErrInvalidTree)
		})
	}
}
