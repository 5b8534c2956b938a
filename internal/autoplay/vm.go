package autoplay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// ErrScriptTimeout is returned when a script call runs past its budget.
var ErrScriptTimeout = errors.New("script timed out")

// LogEntry is one log() line from a script.
type LogEntry struct {
	Spin    int    `json:"spin"`
	Message string `json:"message"`
}

// vm is a sandboxed goja runtime. It is used by one goroutine at a time.
type vm struct {
	runtime     *goja.Runtime
	logs        []LogEntry
	maxLogs     int
	spin        int
	stopReason  string
	callTimeout time.Duration
}

func newVM(callTimeout time.Duration, maxLogs int) *vm {
	v := &vm{
		runtime:     goja.New(),
		maxLogs:     maxLogs,
		callTimeout: callTimeout,
	}
	v.injectGlobals()
	return v
}

func (v *vm) injectGlobals() {
	v.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		if len(v.logs) >= v.maxLogs {
			v.logs = v.logs[1:]
		}
		v.logs = append(v.logs, LogEntry{Spin: v.spin, Message: strings.Join(parts, " ")})
		return goja.Undefined()
	})

	console := v.runtime.NewObject()
	console.Set("log", v.runtime.Get("log"))
	v.runtime.Set("console", console)

	// stop(reason?) ends the session after the current spin.
	v.runtime.Set("stop", func(call goja.FunctionCall) goja.Value {
		v.stopReason = "script"
		if len(call.Arguments) > 0 {
			v.stopReason = call.Arguments[0].String()
		}
		return goja.Undefined()
	})

	// No I/O and no dynamic code.
	for _, name := range []string{"require", "fetch", "XMLHttpRequest", "eval", "Function"} {
		v.runtime.Set(name, goja.Undefined())
	}
}

func (v *vm) set(name string, value any) {
	v.runtime.Set(name, value)
}

func (v *vm) float(name string) (float64, bool) {
	val := v.runtime.Get(name)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return 0, false
	}
	return val.ToFloat(), true
}

func (v *vm) bool(name string) bool {
	val := v.runtime.Get(name)
	return val != nil && !goja.IsUndefined(val) && val.ToBoolean()
}

// execute runs the script body, which must define dobet().
func (v *vm) execute(source string) error {
	err := v.withTimeout(func() error {
		_, err := v.runtime.RunString(source)
		return err
	})
	if err != nil {
		return fmt.Errorf("autoplay: script: %w", err)
	}
	fn, ok := goja.AssertFunction(v.runtime.Get("dobet"))
	if !ok || fn == nil {
		return fmt.Errorf("autoplay: dobet() function is not defined")
	}
	return nil
}

func (v *vm) callDobet() error {
	fn, _ := goja.AssertFunction(v.runtime.Get("dobet"))
	if fn == nil {
		return fmt.Errorf("autoplay: dobet() function is not defined")
	}
	err := v.withTimeout(func() error {
		_, err := fn(goja.Undefined())
		return err
	})
	if err != nil {
		return fmt.Errorf("autoplay: dobet(): %w", err)
	}
	return nil
}

func (v *vm) withTimeout(fn func() error) error {
	timer := time.AfterFunc(v.callTimeout, func() {
		v.runtime.Interrupt(ErrScriptTimeout)
	})
	err := fn()
	timer.Stop()
	v.runtime.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return ErrScriptTimeout
	}
	return err
}
