package assets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

// Gatherer resolves every image reference in a tree concurrently.
type Gatherer struct {
	images   ImageProperties
	bundled  Bundled
	remote   Remote
	limit    int
	recorder Recorder
	logger   *zap.Logger
}

// Option configures a Gatherer.
type Option func(*Gatherer)

// WithConcurrency caps in-flight resolutions. n <= 0 means no cap.
func WithConcurrency(n int) Option {
	return func(g *Gatherer) { g.limit = n }
}

func WithRecorder(r Recorder) Option {
	return func(g *Gatherer) { g.recorder = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gatherer) {
		if l != nil {
			g.logger = l.Named("assets")
		}
	}
}

// NewGatherer creates a gatherer. Either source may be nil, in which case
// references of that type fail with ErrNoSource.
func NewGatherer(images ImageProperties, bundled Bundled, remote Remote, opts ...Option) *Gatherer {
	g := &Gatherer{
		images:  images,
		bundled: bundled,
		remote:  remote,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type job struct {
	widget widget.ID
	ref    widget.AssetRef
}

// Gather resolves the images under root. It returns once every task has
// finished; a failure is recorded against its node and never stops the
// walk or the other tasks.
func (g *Gatherer) Gather(ctx context.Context, root *widget.Node) *Result {
	res := &Result{
		Images:   make(map[widget.ID]Asset),
		Failures: make(map[widget.ID]error),
	}

	var jobs []job
	seen := make(map[widget.ID]struct{})
	root.Walk(func(n *widget.Node) {
		name, ok := g.images.ImageProperty(n.Kind)
		if !ok {
			return
		}
		v, ok := n.Property(name)
		if !ok {
			return
		}
		if _, dup := seen[n.ID]; dup {
			return
		}
		seen[n.ID] = struct{}{}

		if v.Type != widget.TypeString {
			res.Failures[n.ID] = &FetchError{Widget: n.ID, Ref: name, Err: widget.ErrInvalidAsset}
			return
		}
		ref, err := widget.ParseAssetRef(v.Str)
		if err != nil {
			res.Failures[n.ID] = &FetchError{Widget: n.ID, Ref: v.Str, Err: err}
			return
		}
		jobs = append(jobs, job{widget: n.ID, ref: ref})
	})

	if len(jobs) == 0 {
		return res
	}

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	if g.limit > 0 {
		eg.SetLimit(g.limit)
	}
	for _, j := range jobs {
		eg.Go(func() error {
			asset, err := g.resolve(ctx, j.ref)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures[j.widget] = &FetchError{Widget: j.widget, Ref: j.ref.String(), Err: err}
				return nil
			}
			res.Images[j.widget] = asset
			return nil
		})
	}
	_ = eg.Wait()

	if len(res.Failures) > 0 {
		g.logger.Info("some images failed to resolve",
			zap.Int("resolved", len(res.Images)),
			zap.Int("failed", len(res.Failures)))
	}
	return res
}

func (g *Gatherer) resolve(ctx context.Context, ref widget.AssetRef) (Asset, error) {
	start := time.Now()
	source := "bundled"
	if ref.Remote() {
		source = "remote"
	}

	data, err := g.fetch(ctx, ref)
	if err != nil {
		g.observe(source, "failed", start)
		g.logger.Debug("image resolution failed", zap.Stringer("ref", ref), zap.Error(err))
		return Asset{}, err
	}
	g.observe(source, "ok", start)
	return Asset{Bytes: data, MIME: mimetype.Detect(data).String()}, nil
}

func (g *Gatherer) fetch(ctx context.Context, ref widget.AssetRef) ([]byte, error) {
	switch {
	case ref.Remote() && g.remote != nil:
		return g.remote.Fetch(ctx, ref.URL)
	case !ref.Remote() && g.bundled != nil:
		return g.bundled.Asset(ctx, ref.Asset)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoSource, ref)
	}
}

func (g *Gatherer) observe(source, outcome string, start time.Time) {
	if g.recorder != nil {
		g.recorder.ObserveAsset(source, outcome, time.Since(start))
	}
}
