package widget

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNotFound        = errors.New("widget not found")
	ErrNotChild        = errors.New("widget is not a child of parent")
	ErrCycle           = errors.New("widget cannot contain itself")
	ErrLeaf            = errors.New("widget cannot have children")
	ErrContainer       = errors.New("location container cannot be a child")
	ErrInvalidKind     = errors.New("invalid widget kind")
	ErrInvalidProperty = errors.New("invalid property")
	ErrInvalidAsset    = errors.New("invalid asset reference")
	ErrInvalidLocation = errors.New("invalid render location")
)

// ID identifies a node within one tree.
type ID uint32

// Handle is an opaque reference to a sandbox-side callback.
// The host stores it but never resolves it.
type Handle uint64

// Kind is the widget-kind tag of a node.
type Kind string

const (
	KindText Kind = "text"

	KindRoot               Kind = "root"
	KindActionPanel        Kind = "action_panel"
	KindActionPanelSection Kind = "action_panel_section"
	KindAction             Kind = "action"
	KindDetail             Kind = "detail"
	KindMetadata           Kind = "metadata"
	KindMetadataTagList    Kind = "metadata_tag_list"
	KindMetadataTagItem    Kind = "metadata_tag_item"
	KindMetadataLink       Kind = "metadata_link"
	KindMetadataValue      Kind = "metadata_value"
	KindMetadataIcon       Kind = "metadata_icon"
	KindMetadataSeparator  Kind = "metadata_separator"
	KindContent            Kind = "content"
	KindParagraph          Kind = "paragraph"
	KindLink               Kind = "link"
	KindImage              Kind = "image"
	KindH1                 Kind = "h1"
	KindH2                 Kind = "h2"
	KindH3                 Kind = "h3"
	KindH4                 Kind = "h4"
	KindH5                 Kind = "h5"
	KindH6                 Kind = "h6"
	KindHorizontalBreak    Kind = "horizontal_break"
	KindCodeBlock          Kind = "code_block"
	KindForm               Kind = "form"
	KindTextField          Kind = "text_field"
	KindPasswordField      Kind = "password_field"
	KindCheckbox           Kind = "checkbox"
	KindDatePicker         Kind = "date_picker"
	KindSelect             Kind = "select"
	KindSelectItem         Kind = "select_item"
	KindSeparator          Kind = "separator"
	KindEmptyView          Kind = "empty_view"
	KindList               Kind = "list"
	KindListSection        Kind = "list_section"
	KindListItem           Kind = "list_item"
	KindGrid               Kind = "grid"
	KindGridSection        Kind = "grid_section"
	KindGridItem           Kind = "grid_item"
	KindInline             Kind = "inline"
	KindInlineSeparator    Kind = "inline_separator"
	KindSearchBar          Kind = "search_bar"
	KindIconAccessory      Kind = "icon_accessory"
	KindTextAccessory      Kind = "text_accessory"
)

var kinds = map[Kind]struct{}{
	KindText: {}, KindRoot: {}, KindActionPanel: {}, KindActionPanelSection: {}, KindAction: {},
	KindDetail: {}, KindMetadata: {}, KindMetadataTagList: {}, KindMetadataTagItem: {},
	KindMetadataLink: {}, KindMetadataValue: {}, KindMetadataIcon: {}, KindMetadataSeparator: {},
	KindContent: {}, KindParagraph: {}, KindLink: {}, KindImage: {},
	KindH1: {}, KindH2: {}, KindH3: {}, KindH4: {}, KindH5: {}, KindH6: {},
	KindHorizontalBreak: {}, KindCodeBlock: {}, KindForm: {}, KindTextField: {},
	KindPasswordField: {}, KindCheckbox: {}, KindDatePicker: {}, KindSelect: {}, KindSelectItem: {},
	KindSeparator: {}, KindEmptyView: {}, KindList: {}, KindListSection: {}, KindListItem: {},
	KindGrid: {}, KindGridSection: {}, KindGridItem: {}, KindInline: {}, KindInlineSeparator: {},
	KindSearchBar: {}, KindIconAccessory: {}, KindTextAccessory: {},
}

// Valid reports whether k belongs to the closed kind enumeration.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// ParseKind accepts both bare kinds and the namespaced form used by the
// JS reconciler ("ui:list_item").
func ParseKind(s string) (Kind, error) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Location is a render location.
type Location string

const (
	LocationInline Location = "inline"
	LocationView   Location = "view"
)

// ParseLocation accepts the canonical names and the reconciler spellings.
func ParseLocation(s string) (Location, error) {
	switch strings.ToLower(s) {
	case "inline", "inlineview", "inline_view":
		return LocationInline, nil
	case "view", "fullview", "full_view", "full-view":
		return LocationView, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
}

// ValueType tags a property value.
type ValueType uint8

const (
	TypeFunction ValueType = iota + 1
	TypeString
	TypeNumber
	TypeBool
)

// String returns the schema name of the type
func (t ValueType) String() string {
	switch t {
	case TypeFunction:
		return "function"
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBool:
		return "boolean"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by its schema name.
func (t ValueType) MarshalText() ([]byte, error) {
	if t < TypeFunction || t > TypeBool {
		return nil, fmt.Errorf("%w: unknown value type %d", ErrInvalidProperty, t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText accepts the schema names produced by MarshalText.
func (t *ValueType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "function":
		*t = TypeFunction
	case "string":
		*t = TypeString
	case "number":
		*t = TypeNumber
	case "boolean":
		*t = TypeBool
	default:
		return fmt.Errorf("%w: unknown value type %q", ErrInvalidProperty, text)
	}
	return nil
}

// Value is a property value. Exactly one payload field is meaningful,
// selected by Type.
type Value struct {
	Type   ValueType `json:"type"`
	Str    string    `json:"string,omitempty"`
	Num    float64   `json:"number,omitempty"`
	Bool   bool      `json:"bool,omitempty"`
	Handle Handle    `json:"handle,omitempty"`
}

func String(s string) Value   { return Value{Type: TypeString, Str: s} }
func Number(n float64) Value  { return Value{Type: TypeNumber, Num: n} }
func Bool(b bool) Value       { return Value{Type: TypeBool, Bool: b} }
func Function(h Handle) Value { return Value{Type: TypeFunction, Handle: h} }

// Validate checks the value is well formed for its tag.
func (v Value) Validate() error {
	switch v.Type {
	case TypeString, TypeBool:
		return nil
	case TypeNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return fmt.Errorf("%w: number is not finite", ErrInvalidProperty)
		}
		return nil
	case TypeFunction:
		if v.Handle == 0 {
			return fmt.Errorf("%w: function without handle", ErrInvalidProperty)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown value type %d", ErrInvalidProperty, v.Type)
	}
}

// Property is a named value on a node.
type Property struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Node is a serialized subtree.
type Node struct {
	ID         ID         `json:"id"`
	Kind       Kind       `json:"kind"`
	Properties []Property `json:"properties,omitempty"`
	Text       string     `json:"text,omitempty"`
	Children   []*Node    `json:"children,omitempty"`
}

// Property returns the named property.
func (n *Node) Property(name string) (Value, bool) {
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Walk visits n and its descendants depth-first, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// AssetRef references an image either bundled with the plugin or remote.
type AssetRef struct {
	Asset string
	URL   string
}

const assetPrefix = "asset:"

// ParseAssetRef decodes the string form carried by image-typed properties.
func ParseAssetRef(s string) (AssetRef, error) {
	if strings.HasPrefix(s, assetPrefix) {
		name := strings.TrimPrefix(s, assetPrefix)
		if name == "" || strings.HasPrefix(name, "/") {
			return AssetRef{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
		}
		clean := path.Clean(name)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return AssetRef{}, fmt.Errorf("%w: %q escapes asset directory", ErrInvalidAsset, s)
		}
		return AssetRef{Asset: clean}, nil
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return AssetRef{}, fmt.Errorf("%w: %q", ErrInvalidAsset, s)
	}
	return AssetRef{URL: u.String()}, nil
}

// BundledAsset returns a reference to a plugin asset.
func BundledAsset(name string) AssetRef { return AssetRef{Asset: name} }

// RemoteAsset returns a reference to a URL.
func RemoteAsset(u string) AssetRef { return AssetRef{URL: u} }

// Remote reports whether the reference needs a network fetch.
func (r AssetRef) Remote() bool { return r.URL != "" }

func (r AssetRef) String() string {
	if r.Remote() {
		return r.URL
	}
	return assetPrefix + r.Asset
}
