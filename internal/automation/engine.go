//go:build !no_automation

package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"enocean-go-home/internal/gateway"

	lua "github.com/yuin/gopher-lua"
)

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// luaEventHandler is a registered Lua callback for a specific event pattern.
type luaEventHandler struct {
	eventType string
	chipID    string // filter: only match this chip id (empty = any)
	channel   string // filter: only match this channel (empty = any)
	fn        *lua.LFunction
}

// scriptVM is a running Lua VM for a single script.
type scriptVM struct {
	state    *lua.LState
	commands chan func(*lua.LState) // serializes Lua access
	handlers []luaEventHandler
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex // protects handlers
}

// Engine manages Lua VMs and dispatches gateway events to scripts.
type Engine struct {
	gw      *gateway.Gateway
	manager *Manager
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	vms   map[string]*scriptVM // script ID -> running VM
	unsub func()
}

// NewEngine creates a new automation engine.
func NewEngine(gw *gateway.Gateway, mgr *Manager, logger *slog.Logger) *Engine {
	return &Engine{
		gw:      gw,
		manager: mgr,
		logger:  logger.With("component", "automation"),
		now:     time.Now,
		vms:     make(map[string]*scriptVM),
	}
}

// Start subscribes to the event bus and loads all enabled scripts.
func (e *Engine) Start() {
	e.unsub = e.gw.Events().OnAll(func(event gateway.Event) {
		e.dispatchEvent(event)
	})

	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}

	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}

	e.logger.Info("automation engine started", "scripts", e.running())
}

// Stop cancels all VMs and unsubscribes from the event bus.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, vm := range e.vms {
		vm.cancel()
		delete(e.vms, id)
	}

	if e.unsub != nil {
		e.unsub()
	}

	e.logger.Info("automation engine stopped")
}

func (e *Engine) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.vms)
}

// ReloadScript stops the old VM (if any) and starts a new one.
func (e *Engine) ReloadScript(id string) error {
	e.stopScript(id)

	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("get script: %w", err)
	}

	if !s.Meta.Enabled {
		return nil
	}

	return e.startScript(s)
}

// StopScript stops a running script VM.
func (e *Engine) StopScript(id string) {
	e.stopScript(id)
}

// RunScript executes a saved script in a temporary sandboxed VM.
func (e *Engine) RunScript(id string) *RunResult {
	start := time.Now()

	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{OK: false, Error: "script not found: " + err.Error(), Duration: time.Since(start).String()}
	}

	return e.RunLuaCode(s.LuaCode)
}

// RunLuaCode executes arbitrary Lua code in a temporary sandboxed VM.
// Handlers registered with enocean.on are invoked once with a synthetic
// event so their actions run, and log output is captured.
func (e *Engine) RunLuaCode(code string) *RunResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	vm := e.newScriptVM(ctx, cancel)
	L := vm.state
	defer L.Close()
	L.SetContext(ctx)

	var logs []string
	captureLogs(L, func(line string) {
		logs = append(logs, line)
	})

	e.logger.Debug("run lua code", "code_len", len(code))

	if err := L.DoString(code); err != nil {
		return &RunResult{OK: false, Error: luaError(err), Logs: logs, Duration: time.Since(start).String()}
	}

	vm.mu.Lock()
	handlers := make([]luaEventHandler, len(vm.handlers))
	copy(handlers, vm.handlers)
	vm.mu.Unlock()

	for i, h := range handlers {
		ev := L.NewTable()
		ev.RawSetString("type", lua.LString(h.eventType))
		if h.chipID != "" {
			ev.RawSetString("chip_id", lua.LString(h.chipID))
		}
		if h.channel != "" {
			ev.RawSetString("channel", lua.LString(h.channel))
		}
		ev.RawSetString("value", lua.LString("ON"))

		if err := L.CallByParam(lua.P{Fn: h.fn, NRet: 0, Protect: true}, ev); err != nil {
			e.logger.Warn("run lua code: handler error", "index", i, "err", err)
			return &RunResult{OK: false, Error: luaError(err), Logs: logs, Duration: time.Since(start).String()}
		}
	}

	dur := time.Since(start)
	e.logger.Debug("run lua code complete", "handlers", len(handlers), "logs", len(logs), "duration", dur)
	return &RunResult{OK: true, Logs: logs, Duration: dur.String()}
}

func luaError(err error) string {
	if strings.Contains(err.Error(), "context deadline exceeded") {
		return "timeout (5s)"
	}
	return err.Error()
}

// newScriptVM creates a sandboxed state with the enocean and system modules loaded.
func (e *Engine) newScriptVM(ctx context.Context, cancel context.CancelFunc) *scriptVM {
	vm := &scriptVM{
		state:    newSandbox(),
		commands: make(chan func(*lua.LState), 64),
		ctx:      ctx,
		cancel:   cancel,
	}
	registerEnOceanModule(vm.state, vm, e)
	registerSystemModule(vm.state, e)
	return vm
}

// captureLogs replaces enocean.log and system.log so a one-shot run can
// return its output. Lua runs on a single goroutine, so sink needs no lock.
func captureLogs(L *lua.LState, sink func(string)) {
	if tbl, ok := L.GetGlobal("enocean").(*lua.LTable); ok {
		tbl.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
			sink(L.CheckString(1))
			return 0
		}))
	}
	if tbl, ok := L.GetGlobal("system").(*lua.LTable); ok {
		tbl.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
			sink("[" + L.CheckString(1) + "] " + L.CheckString(2))
			return 0
		}))
	}
}

// newSandbox returns a Lua state without filesystem, process or loader access.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	for _, name := range []string{"os", "io", "loadfile", "dofile", "require", "load", "debug", "package"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func (e *Engine) stopScript(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if vm, ok := e.vms[id]; ok {
		vm.cancel()
		delete(e.vms, id)
		e.logger.Info("script stopped", "id", id)
	}
}

func (e *Engine) startScript(s *Script) error {
	ctx, cancel := context.WithCancel(context.Background())
	vm := e.newScriptVM(ctx, cancel)
	L := vm.state

	if err := L.DoString(s.LuaCode); err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}

	e.mu.Lock()
	e.vms[s.ID] = vm
	e.mu.Unlock()

	go func() {
		defer L.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case fn := <-vm.commands:
				fn(L)
			}
		}
	}()

	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name)
	return nil
}

// dispatchEvent routes a gateway event to all matching Lua handlers.
func (e *Engine) dispatchEvent(event gateway.Event) {
	e.mu.Lock()
	vms := make([]*scriptVM, 0, len(e.vms))
	for _, vm := range e.vms {
		vms = append(vms, vm)
	}
	e.mu.Unlock()

	for _, vm := range vms {
		vm.mu.Lock()
		handlers := make([]luaEventHandler, len(vm.handlers))
		copy(handlers, vm.handlers)
		vm.mu.Unlock()

		for _, h := range handlers {
			if !matchesHandler(h, event) {
				continue
			}
			if vm.ctx.Err() != nil {
				break
			}
			fn := h.fn
			select {
			case vm.commands <- func(L *lua.LState) {
				e.callHandler(L, fn, event)
			}:
			default:
				e.logger.Warn("script command channel full, dropping event", "type", event.Type)
			}
		}
	}
}

func matchesHandler(h luaEventHandler, event gateway.Event) bool {
	if h.eventType != event.Type {
		return false
	}

	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return h.chipID == "" && h.channel == ""
	}

	if h.chipID != "" {
		if chip, _ := data["chip_id"].(string); !strings.EqualFold(chip, h.chipID) {
			return false
		}
	}

	if h.channel != "" {
		if ch, _ := data["channel"].(string); !strings.EqualFold(ch, h.channel) {
			return false
		}
	}

	return true
}

func (e *Engine) callHandler(L *lua.LState, fn *lua.LFunction, event gateway.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("lua handler panic", "err", r)
		}
	}()

	ev := L.NewTable()
	ev.RawSetString("type", lua.LString(event.Type))
	if data, ok := event.Data.(map[string]interface{}); ok {
		for k, v := range data {
			ev.RawSetString(k, goToLua(L, v))
		}
	}

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, ev); err != nil {
		e.logger.Error("lua handler error", "type", event.Type, "err", err)
	}
}

// goToLua converts event data to a Lua value. Values without a direct
// mapping go through their JSON form, so structs arrive as tables.
func goToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case map[string]interface{}:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []interface{}:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	}

	b, err := json.Marshal(v)
	if err != nil {
		return lua.LString(fmt.Sprintf("%v", v))
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return lua.LString(string(b))
	}
	return goToLua(L, generic)
}
