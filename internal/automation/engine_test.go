//go:build !no_automation

package automation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/gateway"
	"enocean-go-home/internal/store"

	lua "github.com/yuin/gopher-lua"
)

type recordingTx struct {
	mu    sync.Mutex
	chips []string
	raws  [][]byte
}

func (r *recordingTx) Transmit(_ context.Context, chipID string, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chips = append(r.chips, chipID)
	r.raws = append(r.raws, raw)
	return nil
}

func (r *recordingTx) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.chips...)
}

func newTestGateway(t *testing.T) (*gateway.Gateway, *recordingTx) {
	t.Helper()
	logger := testLogger()

	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	gw := gateway.New(st, eep.NewDispatcher(), nil, gateway.NewEventBus(logger), gateway.Config{}, logger)
	tx := &recordingTx{}
	gw.SetTransmitter(tx)

	for _, nd := range []gateway.NewDevice{
		{ChipID: "FEF36A01", LocalID: "FFD3A801", Profile: "F6-02-01", FriendlyName: "Hall Light"},
		{ChipID: "0181B2C3", Profile: "D5-00-01", FriendlyName: "Window"},
	} {
		if _, err := gw.Devices().AddDevice(nd); err != nil {
			t.Fatal(err)
		}
	}
	return gw, tx
}

func newGatewayEngine(t *testing.T) (*Engine, *gateway.Gateway, *recordingTx) {
	t.Helper()
	gw, tx := newTestGateway(t)
	e := NewEngine(gw, newTestManager(t), testLogger())
	return e, gw, tx
}

func TestRunLuaCodeSendAndGetChannel(t *testing.T) {
	e, _, tx := newGatewayEngine(t)

	res := e.RunLuaCode(`
local ok, err = enocean.send("hall light", "switchA", "ON")
enocean.log(tostring(ok))
enocean.log(enocean.get_channel("FEF36A01", "switcha"))
`)
	if !res.OK {
		t.Fatalf("run failed: %s", res.Error)
	}
	if len(res.Logs) != 2 || res.Logs[0] != "true" || res.Logs[1] != "ON" {
		t.Errorf("logs = %v, want [true ON]", res.Logs)
	}
	if sent := tx.sent(); len(sent) != 1 || sent[0] != "FEF36A01" {
		t.Errorf("transmitted to %v, want [FEF36A01]", sent)
	}
}

func TestRunLuaCodeSendErrors(t *testing.T) {
	e, _, tx := newGatewayEngine(t)

	res := e.RunLuaCode(`
local ok, err = enocean.send("nobody", "switchA", true)
enocean.log(tostring(ok) .. " " .. err)
ok, err = enocean.send("Window", "switchA", false)
enocean.log(tostring(ok))
`)
	if !res.OK {
		t.Fatalf("run failed: %s", res.Error)
	}
	if len(res.Logs) != 2 || res.Logs[0] != "false device not found" || res.Logs[1] != "false" {
		t.Errorf("logs = %v", res.Logs)
	}
	if len(tx.sent()) != 0 {
		t.Errorf("unexpected transmissions: %v", tx.sent())
	}

	if res := e.RunLuaCode(`enocean.send("Hall Light", "dimmer", "ON")`); res.OK {
		t.Error("expected error for unknown channel")
	}
	if res := e.RunLuaCode(`enocean.send("Hall Light", "switchA", "maybe")`); res.OK {
		t.Error("expected error for bad value")
	}
}

func TestRunLuaCodeInvokesHandlers(t *testing.T) {
	e, _, _ := newGatewayEngine(t)

	res := e.RunLuaCode(`
enocean.on("channel_update", {chip_id="0181B2C3", channel="contact"}, function(ev)
  enocean.log(ev.type .. " " .. ev.chip_id .. " " .. ev.channel)
end)
`)
	if !res.OK {
		t.Fatalf("run failed: %s", res.Error)
	}
	if len(res.Logs) != 1 || res.Logs[0] != "channel_update 0181B2C3 contact" {
		t.Errorf("logs = %v", res.Logs)
	}
}

func TestRunLuaCodeSandbox(t *testing.T) {
	e, _, _ := newGatewayEngine(t)
	for _, code := range []string{`os.exit(1)`, `io.write("x")`, `require("socket")`} {
		if res := e.RunLuaCode(code); res.OK {
			t.Errorf("%s: expected sandbox error", code)
		}
	}
}

func TestRunLuaCodeTimeout(t *testing.T) {
	e, _, _ := newGatewayEngine(t)
	res := e.RunLuaCode(`while true do end`)
	if res.OK || res.Error != "timeout (5s)" {
		t.Errorf("result = %+v, want timeout", res)
	}
}

func TestRunLuaCodeDevices(t *testing.T) {
	e, _, _ := newGatewayEngine(t)
	res := e.RunLuaCode(`
for _, d in ipairs(enocean.devices()) do
  enocean.log(d.chip_id .. " " .. d.profile .. " " .. d.name)
end
system.log("warn", "done")
`)
	if !res.OK {
		t.Fatalf("run failed: %s", res.Error)
	}
	want := []string{"0181B2C3 D5-00-01 Window", "FEF36A01 F6-02-01 Hall Light", "[warn] done"}
	if len(res.Logs) != len(want) {
		t.Fatalf("logs = %v, want %v", res.Logs, want)
	}
	for i := range want {
		if res.Logs[i] != want[i] {
			t.Errorf("logs[%d] = %q, want %q", i, res.Logs[i], want[i])
		}
	}
}

func TestEngineDispatchesGatewayEvents(t *testing.T) {
	e, gw, tx := newGatewayEngine(t)

	if _, err := e.manager.Save(&Script{
		Meta: ScriptMeta{Name: "Window Light", Enabled: true},
		LuaCode: `
enocean.on("channel_update", {chip_id="0181B2C3", channel="contact"}, function(ev)
  if ev.value == "OPEN" then
    enocean.send("Hall Light", "switchA", "ON")
  end
end)
`,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.manager.Save(&Script{
		Meta:    ScriptMeta{Name: "Disabled", Enabled: false},
		LuaCode: `enocean.on("channel_update", {}, function(ev) enocean.send("Hall Light", "switchB", "ON") end)`,
	}); err != nil {
		t.Fatal(err)
	}

	e.Start()
	defer e.Stop()
	if n := e.running(); n != 1 {
		t.Fatalf("running scripts = %d, want 1", n)
	}

	// D5 contact telegram from 0181B2C3, DB0 = 0x08 (open)
	raw := []byte{0xD5, 0x08, 0x01, 0x81, 0xB2, 0xC3, 0x00, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xC0, 0x00}
	if _, err := gw.HandleTelegram(raw, gateway.Metadata{}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(tx.sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sent := tx.sent(); len(sent) != 1 || sent[0] != "FEF36A01" {
		t.Fatalf("transmitted to %v, want [FEF36A01]", sent)
	}
}

func TestEngineReloadAndStopScript(t *testing.T) {
	e, _, _ := newGatewayEngine(t)

	saved, err := e.manager.Save(&Script{
		Meta:    ScriptMeta{Name: "Toggle Me", Enabled: true},
		LuaCode: `enocean.log("loaded")`,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.ReloadScript(saved.ID); err != nil {
		t.Fatal(err)
	}
	if n := e.running(); n != 1 {
		t.Fatalf("running = %d, want 1", n)
	}

	e.StopScript(saved.ID)
	if n := e.running(); n != 0 {
		t.Errorf("running after stop = %d, want 0", n)
	}

	saved.Meta.Enabled = false
	if _, err := e.manager.Save(saved); err != nil {
		t.Fatal(err)
	}
	if err := e.ReloadScript(saved.ID); err != nil {
		t.Fatal(err)
	}
	if n := e.running(); n != 0 {
		t.Errorf("disabled script started")
	}

	if err := e.ReloadScript("missing"); err == nil {
		t.Error("expected error reloading missing script")
	}
}

func TestMatchesHandler(t *testing.T) {
	tests := []struct {
		name    string
		handler luaEventHandler
		evType  string
		evData  interface{}
		want    bool
	}{
		{
			"exact match",
			luaEventHandler{eventType: "channel_update", chipID: "0181B2C3", channel: "contact"},
			"channel_update",
			map[string]interface{}{"chip_id": "0181B2C3", "channel": "contact"},
			true,
		},
		{
			"case-insensitive filters",
			luaEventHandler{eventType: "channel_update", chipID: "0181b2c3", channel: "SWITCHA"},
			"channel_update",
			map[string]interface{}{"chip_id": "0181B2C3", "channel": "switchA"},
			true,
		},
		{
			"wrong event type",
			luaEventHandler{eventType: "channel_update"},
			"telegram_received",
			map[string]interface{}{},
			false,
		},
		{
			"chip filter mismatch",
			luaEventHandler{eventType: "channel_update", chipID: "0181B2C3"},
			"channel_update",
			map[string]interface{}{"chip_id": "FEF36A01"},
			false,
		},
		{
			"channel filter mismatch",
			luaEventHandler{eventType: "channel_update", channel: "contact"},
			"channel_update",
			map[string]interface{}{"channel": "temperature"},
			false,
		},
		{
			"no filters match any",
			luaEventHandler{eventType: "device_added"},
			"device_added",
			map[string]interface{}{"chip_id": "0181B2C3"},
			true,
		},
		{
			"non-map data with filter",
			luaEventHandler{eventType: "channel_update", chipID: "0181B2C3"},
			"channel_update",
			"raw",
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchesHandler(tt.handler, gateway.Event{Type: tt.evType, Data: tt.evData})
			if got != tt.want {
				t.Errorf("matchesHandler() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGoToLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		val  interface{}
		want lua.LValueType
	}{
		{"nil", nil, lua.LTNil},
		{"bool", true, lua.LTBool},
		{"string", "ON", lua.LTString},
		{"float64", 21.5, lua.LTNumber},
		{"int8 dbm", int8(-64), lua.LTNumber},
		{"uint32", uint32(0xFEF36A01), lua.LTNumber},
		{"map", map[string]interface{}{"a": 1}, lua.LTTable},
		{"slice", []interface{}{1, 2, 3}, lua.LTTable},
		{"channel value", eep.ChannelValue{Channel: eep.ChannelContact, Value: eep.ContactOpen}, lua.LTTable},
		{"unencodable", make(chan int), lua.LTString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := goToLua(L, tt.val).Type(); got != tt.want {
				t.Errorf("goToLua(%v) type = %v, want %v", tt.val, got, tt.want)
			}
		})
	}

	tbl, ok := goToLua(L, map[string]interface{}{"channel": "contact", "value": "OPEN"}).(*lua.LTable)
	if !ok {
		t.Fatal("expected LTable")
	}
	if v := tbl.RawGetString("value"); v != lua.LString("OPEN") {
		t.Errorf("value = %v, want OPEN", v)
	}
}

func TestEngineAfterRunsCallback(t *testing.T) {
	e, _, tx := newGatewayEngine(t)
	defer e.Stop()

	saved, err := e.manager.Save(&Script{
		Meta:    ScriptMeta{Name: "Delayed", Enabled: true},
		LuaCode: `enocean.after(0.01, function() enocean.send("Hall Light", "switchB", "OFF") end)`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.ReloadScript(saved.ID); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(tx.sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(tx.sent()) != 1 {
		t.Fatalf("transmissions = %v, want 1", tx.sent())
	}
}
