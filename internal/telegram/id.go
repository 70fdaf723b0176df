package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLocalID parses a device identifier written in hexadecimal, such as
// "FFD3A801", "0xffd3a801" or "FF:D3:A8:01". The value must fit in 32 bits.
func ParseLocalID(s string) (uint32, error) {
	h := strings.TrimSpace(s)
	h = strings.ReplaceAll(h, ":", "")
	if len(h) > 2 && (h[:2] == "0x" || h[:2] == "0X") {
		h = h[2:]
	}
	if h == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidLocalID)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLocalID, s)
	}
	return uint32(v), nil
}

// FormatID renders an id the way chip ids are displayed: 8 upper-case hex digits.
func FormatID(id uint32) string {
	return fmt.Sprintf("%08X", id)
}
