package host

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/bridge"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/component"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/plugin"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

var ErrLocationMismatch = errors.New("entrypoint cannot render at this location")

// CheckRender validates a render submission without touching any state.
// Only the inline-view entrypoint may render inline.
func CheckRender(model *component.Model, data *plugin.Data, r bridge.Render) error {
	if r.Root == nil {
		return fmt.Errorf("%w: missing root", component.ErrInvalidTree)
	}
	if r.Location != widget.LocationInline && r.Location != widget.LocationView {
		return fmt.Errorf("%w: %q", widget.ErrInvalidLocation, r.Location)
	}
	if _, err := data.Entrypoint(r.Entrypoint); err != nil {
		return err
	}
	if r.Location == widget.LocationInline {
		inline, ok := data.InlineViewEntrypointID()
		if !ok || inline != r.Entrypoint {
			return fmt.Errorf("%w: %s at %s", ErrLocationMismatch, r.Entrypoint, r.Location)
		}
	}
	return model.Validate(r.Root)
}
