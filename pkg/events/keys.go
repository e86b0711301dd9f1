package events

import "strconv"

var keyNames = map[uint32]string{
	0x08: "Backspace",
	0x09: "Tab",
	0x0D: "Enter",
	0x10: "Shift",
	0x11: "Ctrl",
	0x12: "Alt",
	0x14: "Caps Lock",
	0x1B: "Esc",
	0x20: "Space",
	0x25: "Left",
	0x26: "Up",
	0x27: "Right",
	0x28: "Down",
	0x2E: "Delete",
	0xA0: "Left Shift",
	0xA1: "Right Shift",
	0xA2: "Left Ctrl",
	0xA3: "Right Ctrl",
	0xA4: "Left Alt",
	0xA5: "Right Alt",
}

// KeyName returns a human-readable label for a virtual-key code. Codes in the
// printable ASCII range map to their character, function keys to F1..F24,
// anything else to key_<code>.
func KeyName(code uint32) string {
	if name, ok := keyNames[code]; ok {
		return name
	}
	if code >= 0x70 && code <= 0x87 {
		return "F" + strconv.Itoa(int(code-0x70+1))
	}
	if code >= 0x21 && code <= 0x7E {
		return string(rune(code))
	}
	return "key_" + strconv.FormatUint(uint64(code), 10)
}
