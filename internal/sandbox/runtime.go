package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/events"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/pluginhost/internal/ops"
)

// Runtime wraps a goja VM driven by a single run loop.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	ops    *ops.Ops
	loop   *loop

	// Owned by the loop goroutine.
	table      *events.Table[goja.Callable]
	timers     map[int64]*time.Timer
	nextTimer  int64
	capturing  bool
	captured   []LogEntry
	dispatcher *events.Dispatcher[goja.Callable]

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	pumpDone  chan struct{}

	logger  *zap.Logger
	console *zap.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger for runtime diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l.Named("sandbox")
		}
	}
}

// WithConsoleLogger sets the logger that receives plugin console output.
func WithConsoleLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.console = l
		}
	}
}

// New creates a runtime bound to the capability ops. queue may be nil when
// no UI events will be delivered.
func New(o *ops.Ops, queue *events.Queue, config Config, opts ...Option) (*Runtime, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runtime{
		vm:       goja.New(),
		config:   config,
		ops:      o,
		table:    events.NewTable[goja.Callable](),
		timers:   make(map[int64]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
		pumpDone: make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.console == nil {
		r.console = r.logger
	}
	r.loop = newLoop(r.logger)

	if config.MaxCallStack > 0 {
		r.vm.SetMaxCallStackSize(config.MaxCallStack)
	}
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	r.vm.SetPromiseRejectionTracker(r.trackRejection)

	if queue != nil {
		r.dispatcher = events.NewDispatcher(queue, r.table, r.invoke, r.logger)
	}

	if err := r.setupGlobals(); err != nil {
		cancel()
		return nil, err
	}
	go r.loop.run()
	return r, nil
}

// Start launches the event pump. Without a queue it does nothing.
func (r *Runtime) Start() {
	r.startOnce.Do(func() {
		if r.dispatcher == nil {
			close(r.pumpDone)
			return
		}
		go func() {
			defer close(r.pumpDone)
			if err := r.dispatcher.Run(r.ctx, r.loop.Post); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("event pump stopped", zap.Error(err))
			}
		}()
	})
}

type execResult struct {
	res *Result
	err error
}

// Execute evaluates a script on the loop and waits for it to finish.
// Promise jobs queued by the script run before Execute returns; callbacks
// scheduled for later (timers, host replies, events) do not.
func (r *Runtime) Execute(ctx context.Context, name, src string) (*Result, error) {
	out := make(chan execResult, 1)
	posted := r.loop.Post(func() {
		start := time.Now()
		r.capturing, r.captured = true, nil

		val, err := r.guard(ctx, func() (goja.Value, error) {
			return r.vm.RunScript(name, src)
		})

		res := &Result{Console: r.captured, Duration: time.Since(start)}
		r.capturing, r.captured = false, nil
		if err == nil {
			res.Value = exportValue(val)
		}
		out <- execResult{res: res, err: err}
	})
	if !posted {
		return nil, ErrClosed
	}

	select {
	case o := <-out:
		return o.res, o.err
	case <-r.loop.done:
		select {
		case o := <-out:
			return o.res, o.err
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Post schedules fn on the run loop.
func (r *Runtime) Post(fn func()) bool {
	return r.loop.Post(fn)
}

// Handlers returns the number of live callback handles.
func (r *Runtime) Handlers(ctx context.Context) (int, error) {
	out := make(chan int, 1)
	if !r.loop.Post(func() { out <- r.table.Len() }) {
		return 0, ErrClosed
	}
	select {
	case n := <-out:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close stops the event pump, cancels in-flight host calls, stops timers
// and waits for the loop to drain.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		r.startOnce.Do(func() { close(r.pumpDone) })
		r.loop.Post(r.stopTimers)
		r.loop.stop()
	})
	<-r.loop.done
	<-r.pumpDone
	return nil
}

// guard runs fn under the script timeout and ctx. Closing the runtime also
// interrupts fn. It must be called on the loop.
func (r *Runtime) guard(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	var deadline <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	finished := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-deadline:
			r.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-r.ctx.Done():
			r.vm.Interrupt(ErrClosed)
		case <-finished:
		}
	}()

	val, err := fn()
	close(finished)
	<-watched
	r.vm.ClearInterrupt()
	return val, interrupted(err)
}

func interrupted(err error) error {
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause, ok := ie.Value().(error); ok {
			return fmt.Errorf("script interrupted: %w", cause)
		}
	}
	return err
}

// invoke runs an event callback. The dispatcher calls it on the loop.
func (r *Runtime) invoke(fn goja.Callable, ev events.Event) error {
	_, err := r.guard(r.ctx, func() (goja.Value, error) {
		return fn(goja.Undefined())
	})
	return err
}

// setupGlobals configures global objects and security.
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "info", "warn", "error", "debug"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	if err := r.vm.Set("setTimeout", r.setTimeout); err != nil {
		return err
	}
	if err := r.vm.Set("clearTimeout", r.clearTimeout); err != nil {
		return err
	}
	return r.vm.Set("host", r.hostObject())
}

// makeConsoleFunc forwards console output to the plugin logger and, during
// Execute, to the Result.
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	lvl := logging.ConsoleLevel(level)
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		if ce := r.console.Check(lvl, msg); ce != nil {
			ce.Write(zap.String("console", level))
		}
		if r.capturing {
			r.captured = append(r.captured, LogEntry{Level: level, Message: msg, Time: time.Now()})
		}
		return goja.Undefined()
	}
}

func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("setTimeout: callback is not a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	r.nextTimer++
	tid := r.nextTimer
	r.timers[tid] = time.AfterFunc(delay, func() {
		r.loop.Post(func() {
			if _, ok := r.timers[tid]; !ok {
				return
			}
			delete(r.timers, tid)
			if _, err := r.guard(r.ctx, func() (goja.Value, error) {
				return fn(goja.Undefined(), args...)
			}); err != nil {
				r.logger.Warn("timer callback failed", zap.Int64("timer", tid), zap.Error(err))
			}
		})
	})
	return r.vm.ToValue(tid)
}

func (r *Runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	tid := call.Argument(0).ToInteger()
	if t, ok := r.timers[tid]; ok {
		t.Stop()
		delete(r.timers, tid)
	}
	return goja.Undefined()
}

func (r *Runtime) stopTimers() {
	for tid, t := range r.timers {
		t.Stop()
		delete(r.timers, tid)
	}
}

func (r *Runtime) trackRejection(p *goja.Promise, op goja.PromiseRejectionOperation) {
	if op != goja.PromiseRejectionReject {
		return
	}
	reason := "undefined"
	if v := p.Result(); v != nil {
		reason = v.String()
	}
	r.logger.Warn("unhandled promise rejection", zap.String("reason", reason))
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
