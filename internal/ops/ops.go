package ops

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/component"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/host"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/plugin"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Modifiers are the modifier keys of a shortcut chord.
type Modifiers struct {
	Shift   bool
	Control bool
	Alt     bool
	Meta    bool
}

// Ops implements the capability operations on top of a render bridge.
type Ops struct {
	ch      *bridge.Channel
	model   *component.Model
	plugin  *plugin.Data
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// Option configures Ops.
type Option func(*Ops)

func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *Ops) { o.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Ops) {
		if l != nil {
			o.logger = l.Named("ops")
		}
	}
}

// New creates the op surface. model and data are the same immutable
// snapshots the host was built with.
func New(ch *bridge.Channel, model *component.Model, data *plugin.Data, opts ...Option) *Ops {
	o := &Ops{
		ch:     ch,
		model:  model,
		plugin: data,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// track records the op outcome. Use with a named error result:
// defer o.track("op")(&err).
func (o *Ops) track(op string) func(*error) {
	t := monitoring.NewTimer(o.metrics, op)
	return func(errp *error) {
		status := "ok"
		if err := *errp; err != nil {
			status = "error"
			if errors.Is(err, bridge.ErrDisconnected) {
				status = "disconnected"
			}
		}
		t.Stop(status)
	}
}

// fail records an op that failed before anything was queued.
func (o *Ops) fail(op string, err error) error {
	o.track(op)(&err)
	return err
}

// InlineViewEntrypointID returns the plugin's inline-view entrypoint.
func (o *Ops) InlineViewEntrypointID() (id.EntrypointID, bool) {
	return o.plugin.InlineViewEntrypointID()
}

// EntrypointNames returns entrypoint id -> display name.
func (o *Ops) EntrypointNames() map[string]string {
	return o.plugin.EntrypointNames()
}

// ComponentModel returns the declared component schema.
func (o *Ops) ComponentModel() map[string]component.Component {
	return o.model.Components()
}

// GetContainer returns the root container id for a render location.
func (o *Ops) GetContainer(ctx context.Context, location string) (_ widget.ID, err error) {
	defer o.track("get_container")(&err)

	loc, err := widget.ParseLocation(location)
	if err != nil {
		return 0, err
	}
	return bridge.Call[widget.ID](ctx, o.ch, bridge.GetContainer{Location: loc})
}

// CreateInstance creates a detached widget.
func (o *Ops) CreateInstance(ctx context.Context, kind string, props []widget.Property) (_ widget.ID, err error) {
	defer o.track("create_instance")(&err)

	k, err := o.checkProps(kind, props)
	if err != nil {
		return 0, err
	}
	return bridge.Call[widget.ID](ctx, o.ch, bridge.CreateInstance{WidgetKind: k, Properties: props})
}

// CreateTextInstance creates a detached text node.
func (o *Ops) CreateTextInstance(ctx context.Context, text string) (_ widget.ID, err error) {
	defer o.track("create_text_instance")(&err)
	return bridge.Call[widget.ID](ctx, o.ch, bridge.CreateTextInstance{Text: text})
}

// CloneInstance creates a fresh widget with the given kind and properties.
func (o *Ops) CloneInstance(ctx context.Context, kind string, props []widget.Property) (_ widget.ID, err error) {
	defer o.track("clone_instance")(&err)

	k, err := o.checkProps(kind, props)
	if err != nil {
		return 0, err
	}
	return bridge.Call[widget.ID](ctx, o.ch, bridge.CloneInstance{WidgetKind: k, Properties: props})
}

func (o *Ops) AppendChild(ctx context.Context, parent, child widget.ID) (err error) {
	defer o.track("append_child")(&err)
	_, err = o.ch.Call(ctx, bridge.AppendChild{Parent: parent, Child: child})
	return err
}

// InsertBefore places child immediately before before, which must
// already be a child of parent.
func (o *Ops) InsertBefore(ctx context.Context, parent, child, before widget.ID) (err error) {
	defer o.track("insert_before")(&err)
	_, err = o.ch.Call(ctx, bridge.InsertBefore{Parent: parent, Child: child, Before: before})
	return err
}

func (o *Ops) RemoveChild(ctx context.Context, parent, child widget.ID) (err error) {
	defer o.track("remove_child")(&err)
	_, err = o.ch.Call(ctx, bridge.RemoveChild{Parent: parent, Child: child})
	return err
}

// ReplaceContainerChildren swaps a container's whole child list.
func (o *Ops) ReplaceContainerChildren(ctx context.Context, container widget.ID, children []widget.ID) (err error) {
	defer o.track("replace_container_children")(&err)
	_, err = o.ch.Call(ctx, bridge.ReplaceChildren{Container: container, Children: children})
	return err
}

// SetProperties replaces the named properties and deletes the removed ones;
// all or none are applied.
func (o *Ops) SetProperties(ctx context.Context, w widget.ID, props []widget.Property, removed ...string) (err error) {
	defer o.track("set_properties")(&err)

	for _, p := range props {
		if err := p.Value.Validate(); err != nil {
			return fmt.Errorf("property %q: %w", p.Name, err)
		}
	}
	_, err = o.ch.Call(ctx, bridge.SetProperties{Widget: w, Properties: props, Removed: removed})
	return err
}

func (o *Ops) SetText(ctx context.Context, w widget.ID, text string) (err error) {
	defer o.track("set_text")(&err)
	_, err = o.ch.Call(ctx, bridge.SetText{Widget: w, Text: text})
	return err
}

// Snapshot serializes the tree under a location's container.
func (o *Ops) Snapshot(ctx context.Context, location string) (_ *widget.Node, err error) {
	defer o.track("snapshot")(&err)

	loc, err := widget.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	return bridge.Call[*widget.Node](ctx, o.ch, bridge.Snapshot{Location: loc})
}

func (o *Ops) checkProps(kind string, props []widget.Property) (widget.Kind, error) {
	k, err := widget.ParseKind(kind)
	if err != nil {
		return "", err
	}
	if k == widget.KindText {
		return "", fmt.Errorf("%w: text nodes are created with create_text_instance", widget.ErrInvalidKind)
	}
	for _, p := range props {
		if err := p.Value.Validate(); err != nil {
			return "", fmt.Errorf("property %q: %w", p.Name, err)
		}
		if err := o.model.CheckProperty(k, p); err != nil {
			return "", err
		}
	}
	return k, nil
}

// Render submits root for display and waits for the host to accept it. The
// submission is validated here, before it is queued; a rejected tree never
// reaches the host.
func (o *Ops) Render(ctx context.Context, entrypoint, location string, topLevel bool, root *widget.Node) error {
	f, err := o.SubmitRender(entrypoint, location, topLevel, root)
	if err != nil {
		return err
	}
	return f.Err(ctx)
}

// SubmitRender validates and queues a render without waiting for it.
func (o *Ops) SubmitRender(entrypoint, location string, topLevel bool, root *widget.Node) (*Future[struct{}], error) {
	req, err := o.renderRequest(entrypoint, location, topLevel, root)
	if err != nil {
		return nil, o.fail("render", err)
	}
	return submit[struct{}](o, "render", req)
}

// RenderContainer renders whatever is currently under the location's
// container.
func (o *Ops) RenderContainer(ctx context.Context, entrypoint, location string, topLevel bool) error {
	f, err := o.SubmitRenderContainer(ctx, entrypoint, location, topLevel)
	if err != nil {
		return err
	}
	return f.Err(ctx)
}

// SubmitRenderContainer snapshots the container and queues its render. The
// snapshot is taken before SubmitRenderContainer returns.
func (o *Ops) SubmitRenderContainer(ctx context.Context, entrypoint, location string, topLevel bool) (*Future[struct{}], error) {
	root, err := o.Snapshot(ctx, location)
	if err != nil {
		return nil, o.fail("render_container", err)
	}
	req, err := o.renderRequest(entrypoint, location, topLevel, root)
	if err != nil {
		return nil, o.fail("render_container", err)
	}
	return submit[struct{}](o, "render_container", req)
}

// RenderJSON decodes a serialized root node and renders it.
func (o *Ops) RenderJSON(ctx context.Context, entrypoint, location string, topLevel bool, data []byte) error {
	root, err := DecodeTree(data)
	if err != nil {
		return o.fail("render", err)
	}
	return o.Render(ctx, entrypoint, location, topLevel, root)
}

// DecodeTree parses the wire form of a widget tree.
func DecodeTree(data []byte) (*widget.Node, error) {
	var root widget.Node
	if err := sonic.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: decode root: %v", component.ErrInvalidTree, err)
	}
	return &root, nil
}

func (o *Ops) renderRequest(entrypoint, location string, topLevel bool, root *widget.Node) (bridge.Render, error) {
	eid, err := id.ParseEntrypointID(entrypoint)
	if err != nil {
		return bridge.Render{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	loc, err := widget.ParseLocation(location)
	if err != nil {
		return bridge.Render{}, err
	}
	req := bridge.Render{Entrypoint: eid, Location: loc, TopLevel: topLevel, Root: root}
	if err := host.CheckRender(o.model, o.plugin, req); err != nil {
		return bridge.Render{}, err
	}
	return req, nil
}

// ShowPluginErrorView asks the host to show the error view. It returns once
// the request is queued.
func (o *Ops) ShowPluginErrorView(entrypoint, location string) (err error) {
	defer o.track("show_plugin_error_view")(&err)

	eid, err := o.entrypoint(entrypoint)
	if err != nil {
		return err
	}
	loc, err := widget.ParseLocation(location)
	if err != nil {
		return err
	}
	return o.ch.Post(bridge.ShowPluginErrorView{Entrypoint: eid, Location: loc})
}

// ShowPreferencesRequiredView asks the host to prompt for missing
// preferences. It returns once the request is queued.
func (o *Ops) ShowPreferencesRequiredView(entrypoint string, pluginRequired, entrypointRequired bool) (err error) {
	defer o.track("show_preferences_required")(&err)

	eid, err := o.entrypoint(entrypoint)
	if err != nil {
		return err
	}
	return o.ch.Post(bridge.ShowPreferencesRequired{
		Entrypoint:         eid,
		PluginRequired:     pluginRequired,
		EntrypointRequired: entrypointRequired,
	})
}

// ClearInlineView drops the inline render. It returns once the request is
// queued.
func (o *Ops) ClearInlineView() (err error) {
	defer o.track("clear_inline_view")(&err)
	return o.ch.Post(bridge.ClearInlineView{})
}

// ShowHUD shows a transient notice and waits for the host to acknowledge.
func (o *Ops) ShowHUD(ctx context.Context, text string) error {
	f, err := o.SubmitShowHUD(text)
	if err != nil {
		return err
	}
	return f.Err(ctx)
}

func (o *Ops) SubmitShowHUD(text string) (*Future[struct{}], error) {
	return submit[struct{}](o, "show_hud", bridge.ShowHUD{Text: text})
}

func (o *Ops) HideWindow(ctx context.Context) error {
	f, err := o.SubmitHideWindow()
	if err != nil {
		return err
	}
	return f.Err(ctx)
}

func (o *Ops) SubmitHideWindow() (*Future[struct{}], error) {
	return submit[struct{}](o, "hide_window", bridge.HideWindow{})
}

func (o *Ops) UpdateLoadingBar(ctx context.Context, entrypoint string, visible bool) error {
	f, err := o.SubmitUpdateLoadingBar(entrypoint, visible)
	if err != nil {
		return err
	}
	return f.Err(ctx)
}

func (o *Ops) SubmitUpdateLoadingBar(entrypoint string, visible bool) (*Future[struct{}], error) {
	eid, err := o.entrypoint(entrypoint)
	if err != nil {
		return nil, o.fail("update_loading_bar", err)
	}
	return submit[struct{}](o, "update_loading_bar", bridge.UpdateLoadingBar{Entrypoint: eid, Visible: visible})
}

// ResolveShortcut maps a key chord to an action id. A nil result means no
// action is bound to the chord.
func (o *Ops) ResolveShortcut(ctx context.Context, entrypoint, key string, mods Modifiers) (*string, error) {
	f, err := o.SubmitResolveShortcut(entrypoint, key, mods)
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

func (o *Ops) SubmitResolveShortcut(entrypoint, key string, mods Modifiers) (*Future[*string], error) {
	eid, err := o.entrypoint(entrypoint)
	if err != nil {
		return nil, o.fail("resolve_shortcut", err)
	}
	if key == "" {
		return nil, o.fail("resolve_shortcut", fmt.Errorf("%w: empty key", ErrInvalidArgument))
	}
	return submit[*string](o, "resolve_shortcut", bridge.ResolveShortcut{
		Entrypoint: eid,
		Key:        key,
		Shift:      mods.Shift,
		Control:    mods.Control,
		Alt:        mods.Alt,
		Meta:       mods.Meta,
	})
}

// FetchAsset returns the bytes of a bundled asset.
func (o *Ops) FetchAsset(ctx context.Context, name string) ([]byte, error) {
	f, err := o.SubmitFetchAsset(name)
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

func (o *Ops) SubmitFetchAsset(name string) (*Future[[]byte], error) {
	ref, err := widget.ParseAssetRef("asset:" + name)
	if err != nil {
		return nil, o.fail("fetch_asset", fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	return submit[[]byte](o, "fetch_asset", bridge.FetchAsset{Name: ref.Asset})
}

// entrypoint parses eid and checks it is declared.
func (o *Ops) entrypoint(s string) (id.EntrypointID, error) {
	eid, err := id.ParseEntrypointID(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if _, err := o.plugin.Entrypoint(eid); err != nil {
		return "", err
	}
	return eid, nil
}
