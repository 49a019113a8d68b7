package client

import "strings"

// Key is one of the movement keys, named by the letter that drives it.
type Key byte

const (
	KeyUp    Key = 'w'
	KeyLeft  Key = 'a'
	KeyDown  Key = 's'
	KeyRight Key = 'd'
)

// ParseKey maps a key name such as "W" or "d" to a movement key.
func ParseKey(name string) (Key, bool) {
	if len(name) != 1 {
		return 0, false
	}

	switch key := Key(strings.ToLower(name)[0]); key {
	case KeyUp, KeyLeft, KeyDown, KeyRight:
		return key, true
	}

	return 0, false
}

// KeyState tracks which movement keys are held.
type KeyState struct {
	Up, Left, Down, Right bool
}

// set records key as held or released and reports whether anything changed.
func (k *KeyState) set(key Key, down bool) bool {
	var field *bool
	switch key {
	case KeyUp:
		field = &k.Up
	case KeyLeft:
		field = &k.Left
	case KeyDown:
		field = &k.Down
	case KeyRight:
		field = &k.Right
	default:
		return false
	}

	if *field == down {
		return false
	}
	*field = down
	return true
}

// Direction is the raw input vector for the held keys. Opposite keys cancel
// out and diagonals are left for the server to normalize.
func (k KeyState) Direction() (float64, float64) {
	var dx, dy float64
	if k.Left {
		dx--
	}
	if k.Right {
		dx++
	}
	if k.Up {
		dy--
	}
	if k.Down {
		dy++
	}
	return dx, dy
}
