package ops

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/component"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/host"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/plugin"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

const manifest = `
[plugin]
id = "weather"

[[entrypoint]]
id = "forecast"
name = "Forecast"
type = "view"

[[entrypoint.action]]
id = "refresh"
[entrypoint.action.shortcut]
key = "r"
control = true

[[entrypoint]]
id = "now"
name = "Current Conditions"
type = "inline-view"
`

type fixture struct {
	ops     *Ops
	host    *host.Host
	ch      *bridge.Channel
	metrics *monitoring.Metrics
}

// newFixture wires ops to a host. serve=false leaves the bridge without a
// consumer.
func newFixture(t *testing.T, serve bool) *fixture {
	t.Helper()
	model, err := component.Default()
	require.NoError(t, err)
	m, err := plugin.Parse([]byte(manifest))
	require.NoError(t, err)
	data := plugin.NewData(m)

	metrics := monitoring.NewMetrics()
	ch := bridge.New(bridge.WithRecorder(metrics))
	h := host.New(host.Config{Model: model, Plugin: data})

	if serve {
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = h.Serve(context.Background(), ch)
		}()
		t.Cleanup(func() {
			ch.Close()
			<-done
		})
	} else {
		t.Cleanup(ch.Close)
	}

	return &fixture{
		ops:     New(ch, model, data, WithMetrics(metrics)),
		host:    h,
		ch:      ch,
		metrics: metrics,
	}
}

func TestSetTextReplacesContent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	root, err := f.ops.GetContainer(ctx, "view")
	require.NoError(t, err)
	assert.Equal(t, widget.ID(1), root)

	text, err := f.ops.CreateTextInstance(ctx, "Hello")
	require.NoError(t, err)
	assert.Equal(t, widget.ID(2), text)

	require.NoError(t, f.ops.AppendChild(ctx, root, text))
	require.NoError(t, f.ops.SetText(ctx, text, "Goodbye"))

	tree, err := f.ops.Snapshot(ctx, "view")
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "Goodbye", tree.Children[0].Text)

	var texts []string
	tree.Walk(func(n *widget.Node) {
		if n.Kind == widget.KindText {
			texts = append(texts, n.Text)
		}
	})
	assert.Equal(t, []string{"Goodbye"}, texts)
}

func buildForecast(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	root, err := f.ops.GetContainer(ctx, "view")
	require.NoError(t, err)
	list, err := f.ops.CreateInstance(ctx, "list", nil)
	require.NoError(t, err)
	for _, day := range []string{"Mon", "Tue"} {
		item, err := f.ops.CreateInstance(ctx, "ui:list_item", []widget.Property{
			{Name: "title", Value: widget.String(day)},
		})
		require.NoError(t, err)
		require.NoError(t, f.ops.AppendChild(ctx, list, item))
	}
	require.NoError(t, f.ops.AppendChild(ctx, root, list))
}

func TestRenderRoundTrip(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	buildForecast(t, f)

	require.NoError(t, f.ops.RenderContainer(ctx, "forecast", "full_view", true))
	p, ok := f.host.Rendered(widget.LocationView)
	require.True(t, ok)
	assert.Len(t, p.Root.Children[0].Children, 2)

	bad, err := f.ops.Snapshot(ctx, "view")
	require.NoError(t, err)
	item := bad.Children[0].Children[1]
	item.Properties = append(item.Properties, widget.Property{Name: "flavor", Value: widget.String("spicy")})

	err = f.ops.Render(ctx, "forecast", "view", true, bad)
	var verr *component.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Violations, 1)

	p2, _ := f.host.Rendered(widget.LocationView)
	assert.Same(t, p, p2)
}

func TestRenderIsValidatedBeforeSubmission(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	root := &widget.Node{ID: 1, Kind: widget.KindRoot, Children: []*widget.Node{
		{ID: 2, Kind: widget.KindListItem},
	}}

	tests := []struct {
		name       string
		entrypoint string
		location   string
		target     error
	}{
		{"schema", "forecast", "view", component.ErrInvalidTree},
		{"unknown entrypoint", "radar", "view", plugin.ErrUnknownEntrypoint},
		{"empty entrypoint", "", "view", ErrInvalidArgument},
		{"bad location", "forecast", "sidebar", widget.ErrInvalidLocation},
		{"inline from view entrypoint", "forecast", "inline", host.ErrLocationMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ops.Render(ctx, tt.entrypoint, tt.location, false, root)
			assert.ErrorIs(t, err, tt.target)
		})
	}
	assert.Equal(t, 0, f.ch.Len())
}

func TestRenderJSON(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	err := f.ops.RenderJSON(ctx, "now", "inline", false, []byte(`{"id": 1, "kind": "root", "children": [{"id": 2, "kind": "inline"}]}`))
	require.NoError(t, err)
	_, ok := f.host.Rendered(widget.LocationInline)
	assert.True(t, ok)

	err = f.ops.RenderJSON(ctx, "now", "inline", false, []byte(`{"id": "one"`))
	assert.ErrorIs(t, err, component.ErrInvalidTree)
}

func TestCreateInstanceRejectsBadArguments(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.ops.CreateInstance(ctx, "carousel", nil)
	assert.ErrorIs(t, err, widget.ErrInvalidKind)

	_, err = f.ops.CreateInstance(ctx, "text", nil)
	assert.ErrorIs(t, err, widget.ErrInvalidKind)

	_, err = f.ops.CreateInstance(ctx, "list_item", []widget.Property{{Name: "title", Value: widget.Number(3)}})
	assert.ErrorIs(t, err, widget.ErrInvalidProperty)

	_, err = f.ops.CloneInstance(ctx, "list_item", []widget.Property{{Name: "onClick", Value: widget.Function(0)}})
	assert.ErrorIs(t, err, widget.ErrInvalidProperty)

	assert.Equal(t, 0, f.ch.Len())
}

func TestTreeErrorsSurface(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	buildForecast(t, f)

	assert.ErrorIs(t, f.ops.AppendChild(ctx, 1, 42), widget.ErrNotFound)
	assert.ErrorIs(t, f.ops.InsertBefore(ctx, 1, 3, 4), widget.ErrNotChild)
	assert.ErrorIs(t, f.ops.RemoveChild(ctx, 42, 2), widget.ErrNotFound)
	assert.ErrorIs(t, f.ops.ReplaceContainerChildren(ctx, 2, []widget.ID{42}), widget.ErrNotFound)
	assert.ErrorIs(t, f.ops.SetProperties(ctx, 3, []widget.Property{{Name: "nope", Value: widget.Bool(true)}}), widget.ErrInvalidProperty)
}

func TestSetPropertiesRemoves(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	item, err := f.ops.CreateInstance(ctx, "list_item", []widget.Property{
		{Name: "title", Value: widget.String("Mon")},
		{Name: "subtitle", Value: widget.String("sunny")},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		props   []widget.Property
		removed []string
		want    []string
		wantErr error
	}{
		{"set and remove same name", []widget.Property{{Name: "subtitle", Value: widget.String("rain")}}, []string{"subtitle"}, []string{"title", "subtitle"}, widget.ErrInvalidProperty},
		{"rejected batch removes nothing", []widget.Property{{Name: "nope", Value: widget.Bool(true)}}, []string{"subtitle"}, []string{"title", "subtitle"}, widget.ErrInvalidProperty},
		{"remove", nil, []string{"subtitle"}, []string{"title"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ops.SetProperties(ctx, item, tt.props, tt.removed...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			snap, err := f.host.Tree().Snapshot(item)
			require.NoError(t, err)
			var names []string
			for _, p := range snap.Properties {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestDetachedActionsReturnOnSubmission(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.ops.ShowPluginErrorView("forecast", "view"))
	require.NoError(t, f.ops.ShowPreferencesRequiredView("forecast", true, false))
	require.NoError(t, f.ops.ClearInlineView())
	assert.Equal(t, 3, f.ch.Len())

	assert.ErrorIs(t, f.ops.ShowPluginErrorView("radar", "view"), plugin.ErrUnknownEntrypoint)

	f.ch.Close()
	assert.ErrorIs(t, f.ops.ClearInlineView(), bridge.ErrDisconnected)
}

func TestAwaitedActions(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.ops.ShowHUD(ctx, "Updated"))
	require.NoError(t, f.ops.HideWindow(ctx))
	require.NoError(t, f.ops.UpdateLoadingBar(ctx, "forecast", true))

	action, err := f.ops.ResolveShortcut(ctx, "forecast", "R", Modifiers{Control: true})
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, "refresh", *action)

	action, err = f.ops.ResolveShortcut(ctx, "forecast", "R", Modifiers{})
	require.NoError(t, err)
	assert.Nil(t, action)

	_, err = f.ops.ResolveShortcut(ctx, "forecast", "", Modifiers{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.ops.FetchAsset(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDisconnectedBridge(t *testing.T) {
	f := newFixture(t, false)
	f.ch.Close()

	err := f.ops.ShowHUD(context.Background(), "bye")
	assert.ErrorIs(t, err, bridge.ErrDisconnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OpCalls.WithLabelValues("show_hud", "disconnected")))
}

func TestLocalReads(t *testing.T) {
	f := newFixture(t, false)

	inline, ok := f.ops.InlineViewEntrypointID()
	require.True(t, ok)
	assert.Equal(t, "now", string(inline))

	assert.Equal(t, map[string]string{"forecast": "Forecast", "now": "Current Conditions"}, f.ops.EntrypointNames())

	components := f.ops.ComponentModel()
	require.Contains(t, components, "list_item")
	_, ok = components["list_item"].Property("icon")
	assert.True(t, ok)
}

func TestSubmitQueuesInCallOrder(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	hud, err := f.ops.SubmitShowHUD("Saved")
	require.NoError(t, err)
	require.NoError(t, f.ops.ClearInlineView())
	assert.Equal(t, 2, f.ch.Len())

	env, err := f.ch.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, bridge.ShowHUD{Text: "Saved"}, env.Request)
	env.Reply(nil, nil)
	require.NoError(t, hud.Err(ctx))

	env, err = f.ch.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, bridge.ClearInlineView{}, env.Request)
}
