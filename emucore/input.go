package emucore

// Button identifies a logical joypad button. Values are bit positions in
// InputState and follow the libretro joypad layout.
type Button uint

const (
	ButtonB Button = iota
	ButtonY
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonA
	ButtonX
	ButtonL
	ButtonR
)

// String returns the button name.
func (b Button) String() string {
	names := [...]string{"B", "Y", "Select", "Start", "Up", "Down", "Left", "Right", "A", "X", "L", "R"}
	if int(b) < len(names) {
		return names[b]
	}
	return "Unknown"
}

// InputState is the instantaneous pressed state of all buttons for one
// frame, one bit per Button. The zero value means nothing is pressed.
// No sub-frame edge events are modeled.
type InputState uint16

// Pressed reports whether b is held.
func (s InputState) Pressed(b Button) bool {
	return s&(1<<b) != 0
}

// Press marks b as held.
func (s *InputState) Press(b Button) {
	*s |= 1 << b
}

// Release marks b as not held.
func (s *InputState) Release(b Button) {
	*s &^= 1 << b
}

// Set marks b held or not according to pressed.
func (s *InputState) Set(b Button, pressed bool) {
	if pressed {
		s.Press(b)
	} else {
		s.Release(b)
	}
}
