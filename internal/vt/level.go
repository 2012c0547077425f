package vt

import "fmt"

// Level is a Teletext presentation level.
type Level int

// Presentation levels.
const (
	Level1 Level = iota
	Level15
	Level25
	Level35
)

func (l Level) String() string {
	switch l {
	case Level1:
		return "1"
	case Level15:
		return "1.5"
	case Level25:
		return "2.5"
	case Level35:
		return "3.5"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel accepts "1", "1.5", "2.5" and "3.5".
func ParseLevel(s string) (Level, error) {
	switch s {
	case "1", "1.0":
		return Level1, nil
	case "1.5":
		return Level15, nil
	case "2.5":
		return Level25, nil
	case "3.5":
		return Level35, nil
	}
	return 0, fmt.Errorf("vt: unknown level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
