package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/assets"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/component"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/plugin"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

// Recorder receives render outcomes. monitoring.Metrics satisfies it.
type Recorder interface {
	ObserveRender(location, outcome string)
}

// Config wires a Host. Model, Plugin and Frontend are required.
type Config struct {
	Model    *component.Model
	Plugin   *plugin.Data
	Gatherer *assets.Gatherer
	Assets   assets.Bundled
	Frontend Frontend
	Logger   *zap.Logger
	Recorder Recorder
}

// Host serves render bridge requests against host-owned state.
type Host struct {
	tree     *widget.Tree
	model    *component.Model
	plugin   *plugin.Data
	gatherer *assets.Gatherer
	assets   assets.Bundled
	frontend Frontend
	hud      *bluemonday.Policy
	logger   *zap.Logger
	recorder Recorder

	mu       sync.RWMutex
	rendered map[widget.Location]*RenderPayload
}

// New creates a host with an empty tree.
func New(cfg Config) *Host {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	frontend := cfg.Frontend
	if frontend == nil {
		frontend = NopFrontend{}
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = assets.NewGatherer(cfg.Model, cfg.Assets, nil)
	}

	return &Host{
		tree:     widget.NewTree(cfg.Model),
		model:    cfg.Model,
		plugin:   cfg.Plugin,
		gatherer: gatherer,
		assets:   cfg.Assets,
		frontend: frontend,
		hud:      bluemonday.StrictPolicy(),
		logger:   logger.Named("host"),
		recorder: cfg.Recorder,
		rendered: make(map[widget.Location]*RenderPayload),
	}
}

// Tree exposes the host-owned widget tree.
func (h *Host) Tree() *widget.Tree {
	return h.tree
}

// Rendered returns the last accepted payload for loc.
func (h *Host) Rendered(loc widget.Location) (*RenderPayload, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.rendered[loc]
	return p, ok
}

// RenderedAll returns the current payloads, full view first.
func (h *Host) RenderedAll() []*RenderPayload {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*RenderPayload
	for _, loc := range []widget.Location{widget.LocationView, widget.LocationInline} {
		if p, ok := h.rendered[loc]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Serve handles envelopes until the channel is closed or ctx ends.
// Requests are processed strictly in arrival order.
func (h *Host) Serve(ctx context.Context, ch *bridge.Channel) error {
	h.logger.Info("host loop started", zap.String("plugin", h.plugin.PluginID()))
	defer h.logger.Info("host loop stopped")

	for {
		env, err := ch.Next(ctx)
		if err != nil {
			if errors.Is(err, bridge.ErrDisconnected) {
				return nil
			}
			return err
		}
		h.serveOne(ctx, env)
	}
}

func (h *Host) serveOne(ctx context.Context, env *bridge.Envelope) {
	kind := env.Request.Kind()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("request handler panicked",
				zap.String("request_id", env.ID.String()),
				zap.String("kind", string(kind)),
				zap.Any("panic", r))
			env.Reply(nil, fmt.Errorf("%s: internal host error", kind))
		}
	}()

	value, err := h.Handle(ctx, env.Request)
	if err != nil {
		level := zap.DebugLevel
		if detached(kind) {
			level = zap.WarnLevel
		}
		h.logger.Check(level, "request failed").Write(
			zap.String("request_id", env.ID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
	env.Reply(value, err)
}

// detached kinds are posted without a waiting caller, so their errors are
// only visible in the log.
func detached(k bridge.Kind) bool {
	switch k {
	case bridge.KindShowPluginErrorView, bridge.KindShowPreferencesRequired, bridge.KindClearInlineView:
		return true
	}
	return false
}

// Handle performs one request and returns its reply value.
func (h *Host) Handle(ctx context.Context, req bridge.Request) (interface{}, error) {
	switch r := req.(type) {
	case bridge.GetContainer:
		return h.tree.Container(r.Location)
	case bridge.CreateInstance:
		return h.tree.CreateInstance(r.WidgetKind, r.Properties)
	case bridge.CreateTextInstance:
		return h.tree.CreateTextInstance(r.Text), nil
	case bridge.CloneInstance:
		return h.tree.CloneInstance(r.WidgetKind, r.Properties)
	case bridge.AppendChild:
		return nil, h.tree.AppendChild(r.Parent, r.Child)
	case bridge.InsertBefore:
		return nil, h.tree.InsertBefore(r.Parent, r.Child, r.Before)
	case bridge.RemoveChild:
		return nil, h.tree.RemoveChild(r.Parent, r.Child)
	case bridge.ReplaceChildren:
		return nil, h.tree.ReplaceChildren(r.Container, r.Children)
	case bridge.SetProperties:
		return nil, h.tree.SetProperties(r.Widget, r.Properties, r.Removed...)
	case bridge.SetText:
		return nil, h.tree.SetText(r.Widget, r.Text)
	case bridge.Snapshot:
		root, err := h.tree.Container(r.Location)
		if err != nil {
			return nil, err
		}
		return h.tree.Snapshot(root)

	case bridge.Render:
		return nil, h.render(ctx, r)
	case bridge.ShowPluginErrorView:
		if _, err := h.plugin.Entrypoint(r.Entrypoint); err != nil {
			return nil, err
		}
		return nil, h.frontend.ShowPluginErrorView(ctx, r.Entrypoint, r.Location)
	case bridge.ShowPreferencesRequired:
		return nil, h.frontend.ShowPreferenceRequiredView(ctx, r.Entrypoint, r.PluginRequired, r.EntrypointRequired)
	case bridge.ClearInlineView:
		h.mu.Lock()
		delete(h.rendered, widget.LocationInline)
		h.mu.Unlock()
		return nil, h.frontend.ClearInlineView(ctx)
	case bridge.ShowHUD:
		return nil, h.frontend.ShowHUD(ctx, h.hud.Sanitize(r.Text))
	case bridge.HideWindow:
		return nil, h.frontend.HideWindow(ctx)
	case bridge.UpdateLoadingBar:
		if _, err := h.plugin.Entrypoint(r.Entrypoint); err != nil {
			return nil, err
		}
		return nil, h.frontend.UpdateLoadingBar(ctx, r.Entrypoint, r.Visible)
	case bridge.ResolveShortcut:
		action, ok, err := h.plugin.ActionForShortcut(r.Entrypoint, plugin.Shortcut{
			Key: r.Key, Shift: r.Shift, Control: r.Control, Alt: r.Alt, Meta: r.Meta,
		})
		if err != nil || !ok {
			return (*string)(nil), err
		}
		return &action, nil
	case bridge.FetchAsset:
		if h.assets == nil {
			return nil, fmt.Errorf("%w: %s", assets.ErrNoSource, r.Name)
		}
		return h.assets.Asset(ctx, r.Name)
	default:
		return nil, fmt.Errorf("unsupported request %T", req)
	}
}

func (h *Host) render(ctx context.Context, r bridge.Render) error {
	if err := CheckRender(h.model, h.plugin, r); err != nil {
		h.observe(r.Location, "rejected")
		return err
	}

	images := h.gatherer.Gather(ctx, r.Root)
	p := &RenderPayload{
		Entrypoint: r.Entrypoint,
		Location:   r.Location,
		TopLevel:   r.TopLevel,
		Root:       r.Root,
		Images:     images.Images,
	}
	if len(images.Failures) > 0 {
		p.ImageErrors = make(map[widget.ID]string, len(images.Failures))
		for id, err := range images.Failures {
			p.ImageErrors[id] = err.Error()
		}
	}

	if err := h.frontend.Render(ctx, p); err != nil {
		h.observe(r.Location, "failed")
		return fmt.Errorf("render %s: %w", r.Location, err)
	}

	h.mu.Lock()
	h.rendered[r.Location] = p
	h.mu.Unlock()

	h.observe(r.Location, "accepted")
	h.logger.Debug("render accepted",
		zap.String("entrypoint", r.Entrypoint.String()),
		zap.String("location", string(r.Location)),
		zap.Int("images", len(p.Images)),
		zap.Int("image_errors", len(p.ImageErrors)))
	return nil
}

func (h *Host) observe(loc widget.Location, outcome string) {
	if h.recorder != nil {
		h.recorder.ObserveRender(string(loc), outcome)
	}
}
