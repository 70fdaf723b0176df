//go:build !no_automation

package automation

import (
	"context"
	"strings"
	"time"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/gateway"
	"enocean-go-home/internal/store"

	lua "github.com/yuin/gopher-lua"
)

// registerEnOceanModule registers the `enocean` global table in a Lua state.
func registerEnOceanModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
		return enoceanOn(L, vm)
	}))

	mod.RawSetString("send", L.NewFunction(func(L *lua.LState) int {
		return enoceanSend(L, e)
	}))

	mod.RawSetString("get_channel", L.NewFunction(func(L *lua.LState) int {
		return enoceanGetChannel(L, e)
	}))

	mod.RawSetString("devices", L.NewFunction(func(L *lua.LState) int {
		return enoceanDevices(L, e)
	}))

	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		return enoceanAfter(L, vm, e)
	}))

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return enoceanLog(L, e)
	}))

	L.SetGlobal("enocean", mod)
}

const maxHandlersPerScript = 100

// enocean.on(type, filter, callback)
func enoceanOn(L *lua.LState, vm *scriptVM) int {
	eventType := L.CheckString(1)
	filterTable := L.CheckTable(2)
	fn := L.CheckFunction(3)

	h := luaEventHandler{
		eventType: eventType,
		fn:        fn,
	}

	if v := filterTable.RawGetString("chip_id"); v != lua.LNil {
		h.chipID = v.String()
	}
	if v := filterTable.RawGetString("channel"); v != lua.LNil {
		h.channel = v.String()
	}

	vm.mu.Lock()
	if len(vm.handlers) >= maxHandlersPerScript {
		vm.mu.Unlock()
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	vm.mu.Unlock()

	return 0
}

// enocean.send(chip_or_name, channel, value) -> ok, err
// value is "ON"/"OFF" or a boolean.
func enoceanSend(L *lua.LState, e *Engine) int {
	target := L.CheckString(1)
	ch, err := eep.ParseChannel(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	var value eep.OnOff
	switch v := L.Get(3).(type) {
	case lua.LBool:
		value = eep.OnOff(v)
	case lua.LString:
		if value, err = eep.ParseOnOff(string(v)); err != nil {
			L.ArgError(3, err.Error())
			return 0
		}
	default:
		L.ArgError(3, "expected ON/OFF or boolean")
		return 0
	}

	dev := resolveDevice(e, target)
	if dev == nil {
		e.logger.Warn("device not found", "target", target)
		L.Push(lua.LFalse)
		L.Push(lua.LString("device not found"))
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := e.gw.SendCommand(ctx, dev.ChipID, eep.Command{Channel: ch, Value: value}); err != nil {
		e.logger.Error("send command", "err", err, "target", target, "channel", string(ch))
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// enocean.get_channel(chip_or_name, channel) -> last known value or nil
func enoceanGetChannel(L *lua.LState, e *Engine) int {
	target := L.CheckString(1)
	channel := L.CheckString(2)

	dev := resolveDevice(e, target)
	if dev == nil || dev.Channels == nil {
		L.Push(lua.LNil)
		return 1
	}

	if ch, err := eep.ParseChannel(channel); err == nil {
		channel = string(ch)
	}
	if v, ok := dev.Channels[channel]; ok {
		L.Push(goToLua(L, v))
		return 1
	}

	L.Push(lua.LNil)
	return 1
}

// enocean.after(seconds, callback)
func enoceanAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()

	return 0
}

// enocean.log(msg)
func enoceanLog(L *lua.LState, e *Engine) int {
	msg := L.CheckString(1)
	e.logger.Info("script log", "msg", msg)
	return 0
}

// enocean.devices() returns a table of all devices.
func enoceanDevices(L *lua.LState, e *Engine) int {
	devices, err := e.gw.Devices().ListDevices()
	if err != nil {
		L.Push(L.NewTable())
		return 1
	}

	tbl := L.NewTable()
	for i, dev := range devices {
		d := L.NewTable()
		d.RawSetString("chip_id", lua.LString(dev.ChipID))
		name := dev.FriendlyName
		if name == "" {
			name = dev.Label
		}
		d.RawSetString("name", lua.LString(name))
		d.RawSetString("profile", lua.LString(dev.Profile))
		d.RawSetString("label", lua.LString(dev.Label))
		d.RawSetString("dbm", lua.LNumber(dev.DBm))
		tbl.RawSetInt(i+1, d)
	}

	L.Push(tbl)
	return 1
}

// resolveDevice finds a device by chip id or friendly name.
func resolveDevice(e *Engine, target string) *store.Device {
	if chip, err := gateway.NormalizeChipID(target); err == nil {
		if dev, err := e.gw.Devices().GetDevice(chip); err == nil {
			return dev
		}
	}

	devices, err := e.gw.Devices().ListDevices()
	if err != nil {
		return nil
	}
	for _, dev := range devices {
		if strings.EqualFold(dev.FriendlyName, target) {
			return dev
		}
	}
	return nil
}
