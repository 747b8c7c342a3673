package host

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/assets"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

// RenderPayload is an accepted, asset-resolved tree ready for the renderer.
type RenderPayload struct {
	Entrypoint  id.EntrypointID            `json:"entrypoint"`
	Location    widget.Location            `json:"location"`
	TopLevel    bool                       `json:"top_level"`
	Root        *widget.Node               `json:"root"`
	Images      map[widget.ID]assets.Asset `json:"images,omitempty"`
	ImageErrors map[widget.ID]string       `json:"image_errors,omitempty"`
}

// Frontend presents host actions to the user. Calls are made from the
// host loop, one at a time.
type Frontend interface {
	Render(ctx context.Context, p *RenderPayload) error
	ShowPluginErrorView(ctx context.Context, entrypoint id.EntrypointID, loc widget.Location) error
	ShowPreferenceRequiredView(ctx context.Context, entrypoint id.EntrypointID, pluginRequired, entrypointRequired bool) error
	ClearInlineView(ctx context.Context) error
	ShowHUD(ctx context.Context, text string) error
	HideWindow(ctx context.Context) error
	UpdateLoadingBar(ctx context.Context, entrypoint id.EntrypointID, visible bool) error
}

// NopFrontend accepts every action and shows nothing.
type NopFrontend struct{}

func (NopFrontend) Render(context.Context, *RenderPayload) error {
	return nil
}

func (NopFrontend) ShowPluginErrorView(context.Context, id.EntrypointID, widget.Location) error {
	return nil
}

func (NopFrontend) ShowPreferenceRequiredView(context.Context, id.EntrypointID, bool, bool) error {
	return nil
}

func (NopFrontend) ClearInlineView(context.Context) error {
	return nil
}

func (NopFrontend) ShowHUD(context.Context, string) error {
	return nil
}

func (NopFrontend) HideWindow(context.Context) error {
	return nil
}

func (NopFrontend) UpdateLoadingBar(context.Context, id.EntrypointID, bool) error {
	return nil
}
