package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

var (
	ErrNotAllowed    = errors.New("asset not in plugin allowlist")
	ErrAssetNotFound = errors.New("asset not found")
	ErrNoSource      = errors.New("no resolver for asset reference")
	ErrStatus        = errors.New("unexpected response status")
)

// Asset is a resolved image payload.
type Asset struct {
	Bytes []byte `json:"bytes"`
	MIME  string `json:"mime"`
}

// FetchError reports why one node's image could not be resolved.
type FetchError struct {
	Widget widget.ID
	Ref    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("widget %d: resolve %s: %v", e.Widget, e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result holds one outcome per image-bearing node.
type Result struct {
	Images   map[widget.ID]Asset
	Failures map[widget.ID]error
}

// Len returns the number of nodes that produced an outcome.
func (r *Result) Len() int {
	return len(r.Images) + len(r.Failures)
}

// Bundled reads plugin-bundled assets by name.
type Bundled interface {
	Asset(ctx context.Context, name string) ([]byte, error)
}

// Remote fetches assets by URL.
type Remote interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageProperties names the image-typed property of a widget kind.
// component.Model satisfies it.
type ImageProperties interface {
	ImageProperty(kind widget.Kind) (string, bool)
}

// Recorder receives per-node observations. monitoring.Metrics satisfies it.
type Recorder interface {
	ObserveAsset(source, outcome string, d time.Duration)
}
