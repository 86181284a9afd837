package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from either Go syntax ("15s", "500ms")
// or a bare integer number of milliseconds.
type Duration time.Duration

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	value := strings.TrimSpace(node.Value)
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		if ms < 0 {
			return fmt.Errorf("line %d: duration must be non-negative: %d", node.Line, ms)
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, value, err)
	}
	if parsed < 0 {
		return fmt.Errorf("line %d: duration must be non-negative: %s", node.Line, value)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Bool is a boolean that also accepts the strings "true"/"false" (any case),
// as older JSON configs write "headless": "true".
type Bool bool

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *Bool) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: boolean must be a scalar", node.Line)
	}

	v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(node.Value)))
	if err != nil {
		switch strings.ToLower(strings.TrimSpace(node.Value)) {
		case "yes", "on":
			v = true
		case "no", "off":
			v = false
		default:
			return fmt.Errorf("line %d: invalid boolean %q", node.Line, node.Value)
		}
	}
	*b = Bool(v)
	return nil
}
