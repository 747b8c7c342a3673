package bridge

import (
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

// Kind names a request type; used for logs and metrics.
type Kind string

const (
	KindGetContainer            Kind = "get_container"
	KindCreateInstance          Kind = "create_instance"
	KindCreateTextInstance      Kind = "create_text_instance"
	KindCloneInstance           Kind = "clone_instance"
	KindAppendChild             Kind = "append_child"
	KindInsertBefore            Kind = "insert_before"
	KindRemoveChild             Kind = "remove_child"
	KindReplaceChildren         Kind = "replace_children"
	KindSetProperties           Kind = "set_properties"
	KindSetText                 Kind = "set_text"
	KindSnapshot                Kind = "snapshot"
	KindRender                  Kind = "render"
	KindShowPluginErrorView     Kind = "show_plugin_error_view"
	KindShowPreferencesRequired Kind = "show_preferences_required"
	KindClearInlineView         Kind = "clear_inline_view"
	KindShowHUD                 Kind = "show_hud"
	KindHideWindow              Kind = "hide_window"
	KindUpdateLoadingBar        Kind = "update_loading_bar"
	KindResolveShortcut         Kind = "resolve_shortcut"
	KindFetchAsset              Kind = "fetch_asset"
)

// Request is a typed payload travelling sandbox -> host.
type Request interface {
	Kind() Kind
}

// Tree requests. Replies: widget.ID for the create/clone/container
// requests, *widget.Node for Snapshot, nil otherwise.
type (
	GetContainer struct {
		Location widget.Location
	}
	CreateInstance struct {
		WidgetKind widget.Kind
		Properties []widget.Property
	}
	CreateTextInstance struct {
		Text string
	}
	CloneInstance struct {
		WidgetKind widget.Kind
		Properties []widget.Property
	}
	AppendChild struct {
		Parent, Child widget.ID
	}
	InsertBefore struct {
		Parent, Child, Before widget.ID
	}
	RemoveChild struct {
		Parent, Child widget.ID
	}
	ReplaceChildren struct {
		Container widget.ID
		Children  []widget.ID
	}
	SetProperties struct {
		Widget     widget.ID
		Properties []widget.Property
		Removed    []string
	}
	SetText struct {
		Widget widget.ID
		Text   string
	}
	Snapshot struct {
		Location widget.Location
	}
)

// Host action requests.
type (
	Render struct {
		Entrypoint id.EntrypointID
		Location   widget.Location
		TopLevel   bool
		Root       *widget.Node
	}
	ShowPluginErrorView struct {
		Entrypoint id.EntrypointID
		Location   widget.Location
	}
	ShowPreferencesRequired struct {
		Entrypoint         id.EntrypointID
		PluginRequired     bool
		EntrypointRequired bool
	}
	ClearInlineView struct{}
	ShowHUD         struct {
		Text string
	}
	HideWindow       struct{}
	UpdateLoadingBar struct {
		Entrypoint id.EntrypointID
		Visible    bool
	}
	// ResolveShortcut replies with *string (nil when no action is bound).
	ResolveShortcut struct {
		Entrypoint                id.EntrypointID
		Key                       string
		Shift, Control, Alt, Meta bool
	}
	// FetchAsset replies with []byte.
	FetchAsset struct {
		Name string
	}
)

func (GetContainer) Kind() Kind            { return KindGetContainer }
func (CreateInstance) Kind() Kind          { return KindCreateInstance }
func (CreateTextInstance) Kind() Kind      { return KindCreateTextInstance }
func (CloneInstance) Kind() Kind           { return KindCloneInstance }
func (AppendChild) Kind() Kind             { return KindAppendChild }
func (InsertBefore) Kind() Kind            { return KindInsertBefore }
func (RemoveChild) Kind() Kind             { return KindRemoveChild }
func (ReplaceChildren) Kind() Kind         { return KindReplaceChildren }
func (SetProperties) Kind() Kind           { return KindSetProperties }
func (SetText) Kind() Kind                 { return KindSetText }
func (Snapshot) Kind() Kind                { return KindSnapshot }
func (Render) Kind() Kind                  { return KindRender }
func (ShowPluginErrorView) Kind() Kind     { return KindShowPluginErrorView }
func (ShowPreferencesRequired) Kind() Kind { return KindShowPreferencesRequired }
func (ClearInlineView) Kind() Kind         { return KindClearInlineView }
func (ShowHUD) Kind() Kind                 { return KindShowHUD }
func (HideWindow) Kind() Kind              { return KindHideWindow }
func (UpdateLoadingBar) Kind() Kind        { return KindUpdateLoadingBar }
func (ResolveShortcut) Kind() Kind         { return KindResolveShortcut }
func (FetchAsset) Kind() Kind              { return KindFetchAsset }
