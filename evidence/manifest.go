package evidence

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manifest describes a conversion input: an optional document title
// override and the ordered evidence records markers resolve against.
type Manifest struct {
	Title    string   `yaml:"title"`
	Evidence []Record `yaml:"evidence"`
}

// LoadManifest reads an evidence manifest. Relative record paths are
// resolved against the manifest location. An empty manifest file is not
// an error.
func LoadManifest(path string, log *zap.Logger) (*Manifest, error) {
	if log == nil {
		log = zap.NewNop()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read evidence manifest: %w", err)
	}

	var m Manifest

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			log.Debug("Evidence manifest is empty", zap.String("path", path))
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("unable to parse evidence manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Evidence {
		if m.Evidence[i].Path == "" {
			return nil, fmt.Errorf("evidence manifest %s: record %d has no path", path, i)
		}
		if !filepath.IsAbs(m.Evidence[i].Path) {
			m.Evidence[i].Path = filepath.Join(base, m.Evidence[i].Path)
		}
	}

	log.Debug("Loaded evidence manifest", zap.String("path", path), zap.String("title", m.Title), zap.Int("records", len(m.Evidence)))
	return &m, nil
}
