package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/satindergrewal/moodscore/internal/table"
	"github.com/satindergrewal/moodscore/internal/track"
	"gopkg.in/yaml.v3"
)

//go:embed example.toml
var exampleTable []byte

// ErrUnknownTableFormat is returned for table files that are neither TOML nor YAML.
var ErrUnknownTableFormat = errors.New("unknown table file format")

// tableFile is the on-disk shape of a context table.
type tableFile struct {
	DefaultFade *float64       `toml:"default_fade" yaml:"default_fade"`
	Contexts    []contextEntry `toml:"context" yaml:"context"`
}

type contextEntry struct {
	Name     string   `toml:"name" yaml:"name"`
	Priority int      `toml:"priority" yaml:"priority"`
	Loop     string   `toml:"loop" yaml:"loop"`
	Intro    string   `toml:"intro" yaml:"intro"`
	Volume   *float64 `toml:"volume" yaml:"volume"`
	Looping  *bool    `toml:"looping" yaml:"looping"`
	Fade     float64  `toml:"fade" yaml:"fade"`
}

// TableSpec is a parsed table file, ready for table.Build.
type TableSpec struct {
	Entries     []table.Entry
	DefaultFade time.Duration
	Warnings    []string // problems found while parsing
}

// ParseTable parses table file contents. The format is chosen by the
// extension of name.
func ParseTable(name string, data []byte) (TableSpec, error) {
	var f tableFile
	var spec TableSpec

	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return spec, fmt.Errorf("failed to parse table: %w", err)
		}
		for _, key := range md.Undecoded() {
			spec.Warnings = append(spec.Warnings, fmt.Sprintf("unknown key %q", key.String()))
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return spec, fmt.Errorf("failed to parse table: %w", err)
		}
	default:
		return spec, fmt.Errorf("%s: %w", name, ErrUnknownTableFormat)
	}

	if f.DefaultFade != nil {
		spec.DefaultFade = seconds(*f.DefaultFade)
	}
	for i, c := range f.Contexts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			spec.Warnings = append(spec.Warnings, fmt.Sprintf("context #%d has no name, skipped", i+1))
			continue
		}
		e := table.Entry{Context: track.ParseContext(name), Priority: c.Priority}
		if c.Loop != "" || c.Intro != "" {
			d := &track.Descriptor{
				Loop:    track.SegmentID(c.Loop),
				Intro:   track.SegmentID(c.Intro),
				Volume:  1,
				Looping: true,
				Fade:    seconds(c.Fade),
			}
			if c.Volume != nil {
				d.Volume = *c.Volume
			}
			if c.Looping != nil {
				d.Looping = *c.Looping
			}
			e.Descriptor = d
		}
		spec.Entries = append(spec.Entries, e)
	}
	return spec, nil
}

// LoadTable reads and parses the table file at path.
func LoadTable(path string) (TableSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TableSpec{}, fmt.Errorf("failed to read table file: %w", err)
	}
	return ParseTable(path, data)
}

// BuildTable loads the file at path and builds the context table. A positive
// fadeOverride replaces the file's default fade. The returned warnings cover
// both parsing and building.
func BuildTable(path string, fadeOverride time.Duration, logger *log.Logger) (*table.Table, []string, error) {
	spec, err := LoadTable(path)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range spec.Warnings {
		if logger != nil {
			logger.Warn(w, "file", path)
		}
	}
	fade := spec.DefaultFade
	if fadeOverride > 0 {
		fade = fadeOverride
	}
	t, warnings := table.Build(spec.Entries, fade, logger)
	return t, append(spec.Warnings, warnings...), nil
}

// WriteExampleTable writes a starter table to path. It refuses to overwrite.
func WriteExampleTable(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("table file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleTable, 0o644); err != nil {
		return fmt.Errorf("failed to write table file: %w", err)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
