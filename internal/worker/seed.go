package worker

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var defaultSourcesYAML []byte

type seedSource struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type seedFile struct {
	Sources []seedSource `yaml:"sources"`
}

// defaultSources parses the embedded seed list used to bootstrap a Store
// that has zero registered sources.
func defaultSources() ([]seedSource, error) {
	var f seedFile
	if err := yaml.Unmarshal(defaultSourcesYAML, &f); err != nil {
		return nil, fmt.Errorf("worker: parse default sources: %w", err)
	}
	return f.Sources, nil
}
