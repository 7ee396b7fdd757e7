package feeds

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source describes one configured syndicated feed. The category is a feed
// level tag (general feeds serve every request) and reliability is advisory
// metadata surfaced alongside health information.
type Source struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Category    string `yaml:"category"`
	Reliability string `yaml:"reliability"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

//go:embed feeds.yaml
var defaultSourcesYAML []byte

var feedCategories = map[string]struct{}{
	"general":     {},
	"geopolitics": {},
	"war":         {},
	"economy":     {},
	"technology":  {},
}

// DefaultSources returns the built-in feed table.
func DefaultSources() []Source {
	sources, err := parseSources(defaultSourcesYAML)
	if err != nil {
		// The embedded table is validated by tests; a parse failure here is
		// a programming error.
		panic(fmt.Sprintf("embedded feed table invalid: %v", err))
	}
	return sources
}

// LoadSources reads a feed table from path, falling back to the embedded
// defaults when path is empty. Environment references in the file are
// expanded before decoding.
func LoadSources(path string) ([]Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultSources(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed table: %w", err)
	}

	return parseSources([]byte(os.ExpandEnv(string(raw))))
}

func parseSources(raw []byte) ([]Source, error) {
	var file sourcesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode feed table: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, errors.New("feed table contains no sources")
	}

	seen := make(map[string]struct{}, len(file.Sources))
	for i := range file.Sources {
		src := sanitizeSource(file.Sources[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
		file.Sources[i] = src
	}

	return file.Sources, nil
}

func sanitizeSource(src Source) Source {
	src.ID = strings.ToLower(strings.TrimSpace(src.ID))
	src.Name = strings.TrimSpace(src.Name)
	src.URL = strings.TrimSpace(src.URL)
	src.Category = strings.ToLower(strings.TrimSpace(src.Category))
	src.Reliability = strings.ToLower(strings.TrimSpace(src.Reliability))
	if src.Reliability == "" {
		src.Reliability = "medium"
	}
	return src
}

func validateSource(src Source) error {
	if src.ID == "" {
		return errors.New("id is required")
	}
	if src.Name == "" {
		return fmt.Errorf("name is required for source %q", src.ID)
	}
	if src.URL == "" {
		return fmt.Errorf("url is required for source %q", src.ID)
	}
	if src.Category == "" {
		return fmt.Errorf("category is required for source %q", src.ID)
	}
	if _, ok := feedCategories[src.Category]; !ok {
		return fmt.Errorf("unknown category %q for source %q", src.Category, src.ID)
	}
	switch src.Reliability {
	case "high", "medium":
	default:
		return fmt.Errorf("unknown reliability %q for source %q", src.Reliability, src.ID)
	}
	return nil
}
