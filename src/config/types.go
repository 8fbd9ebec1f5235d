package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPlatform    = "linux/amd64"
	DefaultTimeout     = 30 * time.Minute
	DefaultCacheTTL    = 24 * time.Hour
	DefaultCancelGrace = 10 * time.Second
)

// MultiArchPlatforms is what --multi-arch expands to.
var MultiArchPlatforms = []string{"linux/amd64", "linux/arm64"}

// Duration is a time.Duration written as a Go duration string ("30m", "1h30m")
// in both YAML and TOML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// StringList accepts either a YAML sequence or a single comma-separated
// string, so both of these work:
//
//	platforms: [linux/amd64, linux/arm64]
//	platforms: linux/amd64,linux/arm64
type StringList []string

func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = splitList(s)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		var out StringList
		for _, item := range items {
			out = append(out, splitList(item)...)
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
