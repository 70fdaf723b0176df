//go:build !no_mqtt

package mqtt

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"enocean-go-home/internal/eep"
	"enocean-go-home/internal/gateway"
)

// telegramMessage is the JSON carried on the rx and tx telegram topics.
// Numeric metadata may be a JSON number or a string; chip_id is the decimal
// sender id or 0x-prefixed hex.
type telegramMessage struct {
	Telegram string `json:"telegram"`
	ChipID   any    `json:"chip_id,omitempty"`
	RORG     any    `json:"rorg,omitempty"`
	Func     any    `json:"func,omitempty"`
	Type     any    `json:"type,omitempty"`
	Exported bool   `json:"exported,omitempty"`
}

func parseTelegramMessage(payload []byte) ([]byte, gateway.Metadata, error) {
	var msg telegramMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, gateway.Metadata{}, fmt.Errorf("parse telegram message: %w", err)
	}
	if msg.Telegram == "" {
		return nil, gateway.Metadata{}, fmt.Errorf("parse telegram message: missing telegram")
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(msg.Telegram, " ", ""))
	if err != nil {
		return nil, gateway.Metadata{}, fmt.Errorf("parse telegram message: %w", err)
	}
	meta := gateway.Metadata{
		ChipID:   metaString(msg.ChipID),
		RORG:     metaString(msg.RORG),
		Func:     metaString(msg.Func),
		Type:     metaString(msg.Type),
		Exported: msg.Exported,
	}
	return raw, meta, nil
}

// metaString renders a JSON number or string metadata field as text.
func metaString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%d", int64(x))
	}
	return ""
}

func encodeTelegramMessage(chipID string, raw []byte) []byte {
	return mustJSON(telegramMessage{
		Telegram: hex.EncodeToString(raw),
		ChipID:   "0x" + chipID,
		Exported: true,
	})
}

// parseCommands reads a /set payload such as {"switchA":"ON","switchB":false}.
// Commands are returned in channel order.
func parseCommands(payload []byte) ([]eep.Command, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cmds := make([]eep.Command, 0, len(m))
	for _, k := range keys {
		ch, err := eep.ParseChannel(k)
		if err != nil {
			return nil, err
		}
		var v eep.OnOff
		if err := json.Unmarshal(m[k], &v); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		cmds = append(cmds, eep.Command{Channel: ch, Value: v})
	}
	if len(cmds) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return cmds, nil
}
