package sandbox

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/adalundhe/canvas/core/transpile"
)

//go:embed runtime.js
var runtimeSource string

// runtimeProgram is compiled once and run in every realm.
var runtimeProgram = goja.MustCompile("canvas-runtime.js", runtimeSource, false)

const blankLocation = "about:srcdoc"

// Limits bounds what an artifact may consume inside its realm.
type Limits struct {
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	MaxCallStack     int           `yaml:"max_call_stack"`
	MaxTimers        int           `yaml:"max_timers"`
}

func DefaultLimits() Limits {
	return Limits{
		ExecutionTimeout: 2 * time.Second,
		MaxCallStack:     1024,
		MaxTimers:        64,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.ExecutionTimeout <= 0 {
		l.ExecutionTimeout = d.ExecutionTimeout
	}
	if l.MaxCallStack <= 0 {
		l.MaxCallStack = d.MaxCallStack
	}
	if l.MaxTimers <= 0 {
		l.MaxTimers = d.MaxTimers
	}
	return l
}

type timer struct {
	fn     goja.Callable
	args   []goja.Value
	repeat bool
}

// realm is one goja VM holding one session's mounted tree. The only values
// shared with the host are the ones install puts on the global object.
// A realm is not safe for concurrent use; the owning Surface serializes it.
type realm struct {
	session *Session
	vm      *goja.Runtime
	limits  Limits
	logger  *slog.Logger

	mountFn    goja.Callable
	renderFn   goja.Callable
	dispatchFn goja.Callable
	teardownFn goja.Callable

	timers   map[int64]*timer
	timerSeq int64
	html     string
}

func newRealm(s *Session, limits Limits, logger *slog.Logger) (*realm, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(limits.MaxCallStack)

	r := &realm{
		session: s,
		vm:      vm,
		limits:  limits,
		logger:  logger,
		timers:  make(map[int64]*timer),
	}

	v, err := vm.RunProgram(runtimeProgram)
	if err != nil {
		return nil, fmt.Errorf("load sandbox runtime: %w", err)
	}
	api := v.ToObject(vm)
	for name, dst := range map[string]*goja.Callable{
		"mount":    &r.mountFn,
		"render":   &r.renderFn,
		"dispatch": &r.dispatchFn,
		"teardown": &r.teardownFn,
	} {
		fn, ok := goja.AssertFunction(api.Get(name))
		if !ok {
			return nil, fmt.Errorf("sandbox runtime: %s is not a function", name)
		}
		*dst = fn
	}

	if err := r.install(api); err != nil {
		return nil, fmt.Errorf("install sandbox globals: %w", err)
	}
	return r, nil
}

// install puts the fixed capability surface on the global object.
func (r *realm) install(api *goja.Object) error {
	vm := r.vm
	global := vm.GlobalObject()

	for _, name := range append([]string{"React"}, Primitives()...) {
		if err := global.Set(name, api.Get(name)); err != nil {
			return err
		}
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, r.consoleFunc(level)); err != nil {
			return err
		}
	}

	blockNavigation := vm.ToValue(func(goja.FunctionCall) goja.Value {
		panic(vm.NewTypeError("navigation is blocked in the preview"))
	})
	location := vm.NewObject()
	href := vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(blankLocation) })
	if err := location.DefineAccessorProperty("href", href, blockNavigation, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return err
	}
	for _, name := range []string{"assign", "replace", "reload"} {
		if err := location.Set(name, blockNavigation); err != nil {
			return err
		}
	}
	if err := location.Set("toString", href); err != nil {
		return err
	}

	globals := map[string]any{
		"console":       console,
		"setTimeout":    r.scheduleFunc(false),
		"setInterval":   r.scheduleFunc(true),
		"clearTimeout":  r.clearTimer,
		"clearInterval": r.clearTimer,
		"require": func(call goja.FunctionCall) goja.Value {
			panic(vm.NewTypeError("require(%q) is not available in the preview; imports are not supported", call.Argument(0).String()))
		},
		"window": global,
		"self":   global,
		"top":    global,
		"parent": global,
	}
	for name, value := range globals {
		if err := global.Set(name, value); err != nil {
			return err
		}
	}

	getLocation := vm.ToValue(func(goja.FunctionCall) goja.Value { return location })
	if err := global.DefineAccessorProperty("location", getLocation, blockNavigation, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return err
	}
	for _, name := range []string{"localStorage", "sessionStorage", "indexedDB", "cookieStore"} {
		deny := vm.ToValue(func(goja.FunctionCall) goja.Value {
			panic(vm.NewTypeError("%s is not available in the preview", name))
		})
		if err := global.DefineAccessorProperty(name, deny, deny, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return err
		}
	}
	return nil
}

func (r *realm) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		r.logger.Debug("artifact console",
			"session", r.session.ID,
			"level", level,
			"msg", strings.Join(parts, " "),
		)
		return goja.Undefined()
	}
}

func (r *realm) scheduleFunc(repeat bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(r.vm.NewTypeError("timer callback must be a function"))
		}
		if len(r.timers) >= r.limits.MaxTimers {
			panic(r.vm.NewGoError(fmt.Errorf("timer limit of %d reached", r.limits.MaxTimers)))
		}
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = slices.Clone(call.Arguments[2:])
		}
		r.timerSeq++
		r.timers[r.timerSeq] = &timer{fn: fn, args: args, repeat: repeat}
		return r.vm.ToValue(r.timerSeq)
	}
}

func (r *realm) clearTimer(call goja.FunctionCall) goja.Value {
	delete(r.timers, call.Argument(0).ToInteger())
	return goja.Undefined()
}

// guard runs fn with the execution bound armed. Either the timeout or ctx
// interrupts the VM; a Go panic inside the VM is returned as an error.
func (r *realm) guard(ctx context.Context, fn func() error) (err error) {
	r.vm.ClearInterrupt()
	deadline := time.AfterFunc(r.limits.ExecutionTimeout, func() {
		r.vm.Interrupt(errExecutionTimeout)
	})
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(context.Cause(ctx))
	})
	defer func() {
		deadline.Stop()
		stop()
		r.vm.ClearInterrupt()
		if p := recover(); p != nil {
			err = fmt.Errorf("sandbox panic: %v", p)
		}
	}()
	return fn()
}

func (r *realm) mount(ctx context.Context) error {
	return r.guard(ctx, func() error {
		src := "(function (module, exports, require) {\n" + r.session.Script.Code + "\n})"
		wrapper, err := r.vm.RunScript(transpile.SourceFile, src)
		if err != nil {
			return err
		}
		factory, ok := goja.AssertFunction(wrapper)
		if !ok {
			return runtimeErrorf("script did not evaluate to a module factory")
		}

		exports := r.vm.NewObject()
		module := r.vm.NewObject()
		if err := module.Set("exports", exports); err != nil {
			return err
		}
		if _, err := factory(goja.Undefined(), module, exports, r.vm.Get("require")); err != nil {
			return err
		}

		component := defaultExport(module, exports)
		if component == nil {
			return &RuntimeError{Message: MessageNoDefaultExport}
		}
		html, err := r.mountFn(goja.Undefined(), component)
		if err != nil {
			return err
		}
		r.html = html.String()
		return nil
	})
}

func defaultExport(module, exports *goja.Object) goja.Value {
	if obj, ok := module.Get("exports").(*goja.Object); ok {
		if v := obj.Get("default"); present(v) {
			return v
		}
	}
	if v := exports.Get("default"); present(v) {
		return v
	}
	return nil
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func (r *realm) render(ctx context.Context) error {
	return r.guard(ctx, func() error {
		html, err := r.renderFn(goja.Undefined())
		if err != nil {
			return err
		}
		r.html = html.String()
		return nil
	})
}

// invoke calls one event handler of the mounted tree without re-rendering.
func (r *realm) invoke(ctx context.Context, handlerID string, ev Event) error {
	return r.guard(ctx, func() error {
		_, err := r.dispatchFn(goja.Undefined(),
			r.vm.ToValue(handlerID),
			r.vm.ToValue(ev.Type),
			r.vm.ToValue(ev.toJS()),
		)
		return err
	})
}

// fireTimers runs every queued timer once, in creation order. Timeouts are
// consumed; intervals stay queued.
func (r *realm) fireTimers(ctx context.Context) (int, error) {
	fired := 0
	err := r.guard(ctx, func() error {
		for _, id := range slices.Sorted(maps.Keys(r.timers)) {
			t, ok := r.timers[id]
			if !ok {
				continue
			}
			if !t.repeat {
				delete(r.timers, id)
			}
			if _, err := t.fn(goja.Undefined(), t.args...); err != nil {
				return err
			}
			fired++
		}
		return nil
	})
	return fired, err
}

func (r *realm) pendingTimers() int {
	return len(r.timers)
}

// teardown drops queued timers and unmounts the tree, running effect
// cleanups.
func (r *realm) teardown(ctx context.Context) error {
	clear(r.timers)
	return r.guard(ctx, func() error {
		_, err := r.teardownFn(goja.Undefined())
		return err
	})
}
