//go:build !no_automation

package automation

import (
	"context"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// datetimeComponents maps system.datetime component names to extractors.
var datetimeComponents = map[string]func(time.Time) lua.LValue{
	"hour":      func(t time.Time) lua.LValue { return lua.LNumber(t.Hour()) },
	"minute":    func(t time.Time) lua.LValue { return lua.LNumber(t.Minute()) },
	"second":    func(t time.Time) lua.LValue { return lua.LNumber(t.Second()) },
	"weekday":   func(t time.Time) lua.LValue { return lua.LNumber(t.Weekday()) },
	"day":       func(t time.Time) lua.LValue { return lua.LNumber(t.Day()) },
	"month":     func(t time.Time) lua.LValue { return lua.LNumber(t.Month()) },
	"year":      func(t time.Time) lua.LValue { return lua.LNumber(t.Year()) },
	"timestamp": func(t time.Time) lua.LValue { return lua.LNumber(t.Unix()) },
	"time_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format(time.TimeOnly)) },
	"date_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format(time.DateOnly)) },
}

var scriptLogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// registerSystemModule installs the `system` table: datetime, time_between and log.
func registerSystemModule(L *lua.LState, e *Engine) {
	L.SetGlobal("system", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"datetime":     func(L *lua.LState) int { return systemDatetime(L, e) },
		"time_between": func(L *lua.LState) int { return systemTimeBetween(L, e) },
		"log":          func(L *lua.LState) int { return systemLog(L, e) },
	}))
}

// system.datetime(component)
func systemDatetime(L *lua.LState, e *Engine) int {
	component := L.CheckString(1)
	get, ok := datetimeComponents[component]
	if !ok {
		L.ArgError(1, "unknown component: "+component)
		return 0
	}
	L.Push(get(e.clock()))
	return 1
}

// system.time_between(from_hour, to_hour) is true when the current hour lies
// in [from, to). A range with from > to wraps past midnight.
func systemTimeBetween(L *lua.LState, e *Engine) int {
	from, to := L.CheckInt(1), L.CheckInt(2)
	hour := e.clock().Hour()

	in := hour >= from && hour < to
	if from > to {
		in = hour >= from || hour < to
	}
	L.Push(lua.LBool(in))
	return 1
}

// system.log(level, msg); unknown levels log at info.
func systemLog(L *lua.LState, e *Engine) int {
	level, ok := scriptLogLevels[L.CheckString(1)]
	if !ok {
		level = slog.LevelInfo
	}
	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e.logger.Log(ctx, level, "script log", "msg", L.CheckString(2))
	return 0
}
