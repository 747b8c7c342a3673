package sandbox

import (
	"context"
	"fmt"
	"math"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/events"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/ops"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/widget"
)

// hostObject builds the global host object. Tree ops block the loop until
// the host answers and throw on failure. Awaited actions return promises.
func (r *Runtime) hostObject() *goja.Object {
	h := r.vm.NewObject()
	bind := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = h.Set(name, fn)
	}

	bind("inlineViewEntrypointId", r.inlineViewEntrypointID)
	bind("entrypointNames", r.entrypointNames)
	bind("componentModel", r.componentModel)

	bind("getContainer", r.getContainer)
	bind("createInstance", r.createInstance)
	bind("createTextInstance", r.createTextInstance)
	bind("cloneInstance", r.cloneInstance)
	bind("appendChild", r.appendChild)
	bind("insertBefore", r.insertBefore)
	bind("removeChild", r.removeChild)
	bind("replaceContainerChildren", r.replaceContainerChildren)
	bind("setProperties", r.setProperties)
	bind("setText", r.setText)

	bind("render", r.render)
	bind("renderJSON", r.renderJSON)
	bind("showPluginErrorView", r.showPluginErrorView)
	bind("showPreferencesRequiredView", r.showPreferencesRequiredView)
	bind("clearInlineView", r.clearInlineView)
	bind("showHud", r.showHUD)
	bind("hideWindow", r.hideWindow)
	bind("updateLoadingBar", r.updateLoadingBar)
	bind("resolveShortcut", r.resolveShortcut)
	bind("fetchAsset", r.fetchAsset)
	return h
}

func (r *Runtime) throw(err error) {
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
}

func (r *Runtime) inlineViewEntrypointID(goja.FunctionCall) goja.Value {
	eid, ok := r.ops.InlineViewEntrypointID()
	if !ok {
		return goja.Null()
	}
	return r.vm.ToValue(eid.String())
}

func (r *Runtime) entrypointNames(goja.FunctionCall) goja.Value {
	return r.vm.ToValue(r.ops.EntrypointNames())
}

func (r *Runtime) componentModel(goja.FunctionCall) goja.Value {
	return r.vm.ToValue(r.ops.ComponentModel())
}

func (r *Runtime) getContainer(call goja.FunctionCall) goja.Value {
	w, err := r.ops.GetContainer(r.ctx, call.Argument(0).String())
	r.throw(err)
	return r.idValue(w)
}

func (r *Runtime) createInstance(call goja.FunctionCall) goja.Value {
	return r.create(call, r.ops.CreateInstance)
}

func (r *Runtime) cloneInstance(call goja.FunctionCall) goja.Value {
	return r.create(call, r.ops.CloneInstance)
}

func (r *Runtime) create(call goja.FunctionCall, op func(ctx context.Context, kind string, props []widget.Property) (widget.ID, error)) goja.Value {
	batch, err := r.convertProps(call.Argument(1))
	r.throw(err)
	w, err := op(r.ctx, call.Argument(0).String(), batch.props)
	r.commit(w, batch, err)
	r.throw(err)
	return r.idValue(w)
}

func (r *Runtime) createTextInstance(call goja.FunctionCall) goja.Value {
	w, err := r.ops.CreateTextInstance(r.ctx, call.Argument(0).String())
	r.throw(err)
	return r.idValue(w)
}

func (r *Runtime) appendChild(call goja.FunctionCall) goja.Value {
	r.throw(r.ops.AppendChild(r.ctx, r.widgetID(call.Argument(0)), r.widgetID(call.Argument(1))))
	return goja.Undefined()
}

func (r *Runtime) insertBefore(call goja.FunctionCall) goja.Value {
	r.throw(r.ops.InsertBefore(r.ctx,
		r.widgetID(call.Argument(0)), r.widgetID(call.Argument(1)), r.widgetID(call.Argument(2))))
	return goja.Undefined()
}

func (r *Runtime) removeChild(call goja.FunctionCall) goja.Value {
	r.throw(r.ops.RemoveChild(r.ctx, r.widgetID(call.Argument(0)), r.widgetID(call.Argument(1))))
	return goja.Undefined()
}

func (r *Runtime) replaceContainerChildren(call goja.FunctionCall) goja.Value {
	container := r.widgetID(call.Argument(0))
	var raw []float64
	if err := r.vm.ExportTo(call.Argument(1), &raw); err != nil {
		panic(r.vm.NewTypeError("replaceContainerChildren: children must be an array of ids"))
	}
	children := make([]widget.ID, len(raw))
	for i, f := range raw {
		children[i] = r.idFromFloat(f)
	}
	r.throw(r.ops.ReplaceContainerChildren(r.ctx, container, children))
	return goja.Undefined()
}

func (r *Runtime) setProperties(call goja.FunctionCall) goja.Value {
	w := r.widgetID(call.Argument(0))
	batch, err := r.convertProps(call.Argument(1))
	r.throw(err)
	err = r.ops.SetProperties(r.ctx, w, batch.props, batch.removed...)
	r.commit(w, batch, err)
	r.throw(err)
	return goja.Undefined()
}

func (r *Runtime) setText(call goja.FunctionCall) goja.Value {
	r.throw(r.ops.SetText(r.ctx, r.widgetID(call.Argument(0)), call.Argument(1).String()))
	return goja.Undefined()
}

func (r *Runtime) render(call goja.FunctionCall) goja.Value {
	f, err := r.ops.SubmitRenderContainer(r.ctx,
		call.Argument(0).String(), call.Argument(1).String(), call.Argument(2).ToBoolean())
	return awaitFuture(r, f, err, none[struct{}])
}

func (r *Runtime) renderJSON(call goja.FunctionCall) goja.Value {
	root, err := ops.DecodeTree([]byte(call.Argument(3).String()))
	if err != nil {
		return awaitFuture[struct{}](r, nil, err, none[struct{}])
	}
	f, err := r.ops.SubmitRender(call.Argument(0).String(), call.Argument(1).String(), call.Argument(2).ToBoolean(), root)
	return awaitFuture(r, f, err, none[struct{}])
}

func (r *Runtime) showPluginErrorView(call goja.FunctionCall) goja.Value {
	r.throw(r.ops.ShowPluginErrorView(call.Argument(0).String(), call.Argument(1).String()))
	return goja.Undefined()
}

func (r *Runtime) showPreferencesRequiredView(call goja.FunctionCall) goja.Value {
	r.throw(r.ops.ShowPreferencesRequiredView(call.Argument(0).String(),
		call.Argument(1).ToBoolean(), call.Argument(2).ToBoolean()))
	return goja.Undefined()
}

func (r *Runtime) clearInlineView(goja.FunctionCall) goja.Value {
	r.throw(r.ops.ClearInlineView())
	return goja.Undefined()
}

func (r *Runtime) showHUD(call goja.FunctionCall) goja.Value {
	f, err := r.ops.SubmitShowHUD(call.Argument(0).String())
	return awaitFuture(r, f, err, none[struct{}])
}

func (r *Runtime) hideWindow(goja.FunctionCall) goja.Value {
	f, err := r.ops.SubmitHideWindow()
	return awaitFuture(r, f, err, none[struct{}])
}

func (r *Runtime) updateLoadingBar(call goja.FunctionCall) goja.Value {
	f, err := r.ops.SubmitUpdateLoadingBar(call.Argument(0).String(), call.Argument(1).ToBoolean())
	return awaitFuture(r, f, err, none[struct{}])
}

func (r *Runtime) resolveShortcut(call goja.FunctionCall) goja.Value {
	var mods ops.Modifiers
	if m, ok := call.Argument(2).(*goja.Object); ok {
		mods = ops.Modifiers{
			Shift:   flag(m, "shift"),
			Control: flag(m, "control"),
			Alt:     flag(m, "alt"),
			Meta:    flag(m, "meta"),
		}
	}
	f, err := r.ops.SubmitResolveShortcut(call.Argument(0).String(), call.Argument(1).String(), mods)
	return awaitFuture(r, f, err, func(action *string) interface{} {
		if action == nil {
			return goja.Null()
		}
		return *action
	})
}

func (r *Runtime) fetchAsset(call goja.FunctionCall) goja.Value {
	f, err := r.ops.SubmitFetchAsset(call.Argument(0).String())
	return awaitFuture(r, f, err, func(b []byte) interface{} {
		return r.vm.NewArrayBuffer(b)
	})
}

// awaitFuture returns a promise settled on the loop once f is answered.
// A submission error rejects the promise straight away.
func awaitFuture[T any](r *Runtime, f *ops.Future[T], err error, convert func(T) interface{}) goja.Value {
	p, resolve, reject := r.vm.NewPromise()
	if err != nil {
		if serr := reject(r.vm.NewGoError(err)); serr != nil {
			panic(serr)
		}
		return r.vm.ToValue(p)
	}

	go func() {
		v, err := f.Wait(r.ctx)
		posted := r.loop.Post(func() {
			_, serr := r.guard(r.ctx, func() (goja.Value, error) {
				if err != nil {
					return nil, reject(r.vm.NewGoError(err))
				}
				return nil, resolve(convert(v))
			})
			if serr != nil {
				r.logger.Warn("promise callback failed", zap.Error(serr))
			}
		})
		if !posted {
			r.logger.Debug("sandbox closed before reply was delivered", zap.Error(err))
		}
	}()
	return r.vm.ToValue(p)
}

func none[T any](T) interface{} {
	return goja.Undefined()
}

func flag(o *goja.Object, name string) bool {
	v := o.Get(name)
	return v != nil && v.ToBoolean()
}

func (r *Runtime) idValue(w widget.ID) goja.Value {
	return r.vm.ToValue(int64(w))
}

// widgetID reads a widget id argument, throwing a TypeError on anything that
// is not a positive integer.
func (r *Runtime) widgetID(v goja.Value) widget.ID {
	return r.idFromFloat(v.ToFloat())
}

func (r *Runtime) idFromFloat(f float64) widget.ID {
	if math.IsNaN(f) || f != math.Trunc(f) || f < 1 || f > math.MaxUint32 {
		panic(r.vm.NewTypeError(fmt.Sprintf("invalid widget id %v", f)))
	}
	return widget.ID(f)
}

// propBatch is a converted property bag. Callbacks are registered up front
// and bound to the widget only once the host accepts the batch.
type propBatch struct {
	props   []widget.Property
	removed []string
	handles map[string]widget.Handle
}

// childrenKey is the reconciler's own prop; children travel through the
// tree operations instead.
const childrenKey = "children"

// convertProps maps a JS object to typed properties. Functions become
// callback handles; {asset} and {url} objects become image references.
// Undefined and null entries are collected as removals, which only
// setProperties applies.
func (r *Runtime) convertProps(v goja.Value) (*propBatch, error) {
	b := &propBatch{handles: make(map[string]widget.Handle)}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return b, nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("%w: properties must be an object", ops.ErrInvalidArgument)
	}

	for _, name := range obj.Keys() {
		if name == childrenKey {
			continue
		}
		val := obj.Get(name)
		pv, err := r.propertyValue(b, name, val)
		if err != nil {
			r.release(b)
			return nil, err
		}
		if pv == nil {
			b.removed = append(b.removed, name)
			continue
		}
		b.props = append(b.props, widget.Property{Name: name, Value: *pv})
	}
	return b, nil
}

func (r *Runtime) propertyValue(b *propBatch, name string, val goja.Value) (*widget.Value, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	if fn, ok := goja.AssertFunction(val); ok {
		h := r.table.Register(fn)
		b.handles[name] = h
		pv := widget.Function(h)
		return &pv, nil
	}
	if o, ok := val.(*goja.Object); ok {
		ref, err := imageRef(o)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		pv := widget.String(ref.String())
		return &pv, nil
	}

	var pv widget.Value
	switch x := val.Export().(type) {
	case string:
		pv = widget.String(x)
	case bool:
		pv = widget.Bool(x)
	case int64:
		pv = widget.Number(float64(x))
	case float64:
		pv = widget.Number(x)
	default:
		return nil, fmt.Errorf("%w: property %q has unsupported type %T", widget.ErrInvalidProperty, name, x)
	}
	return &pv, nil
}

// imageRef reads {asset: "name"} or {url: "https://..."}.
func imageRef(o *goja.Object) (widget.AssetRef, error) {
	if v := o.Get("asset"); v != nil && !goja.IsUndefined(v) {
		return widget.ParseAssetRef("asset:" + v.String())
	}
	if v := o.Get("url"); v != nil && !goja.IsUndefined(v) {
		return widget.ParseAssetRef(v.String())
	}
	return widget.AssetRef{}, fmt.Errorf("%w: object is neither {asset} nor {url}", widget.ErrInvalidProperty)
}

// commit binds the batch's callbacks to w, or releases them if the host
// refused the batch. Properties set to non-function values or removed
// outright drop any callback previously bound under the same name.
func (r *Runtime) commit(w widget.ID, b *propBatch, err error) {
	if err != nil {
		r.release(b)
		return
	}
	for _, p := range b.props {
		key := events.Key{Widget: w, Event: p.Name}
		if h, ok := b.handles[p.Name]; ok {
			r.table.Bind(key, h)
			continue
		}
		r.table.Unbind(key)
	}
	for _, name := range b.removed {
		r.table.Unbind(events.Key{Widget: w, Event: name})
	}
}

func (r *Runtime) release(b *propBatch) {
	for _, h := range b.handles {
		r.table.Release(h)
	}
}
