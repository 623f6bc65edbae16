// Package manifest reads TOML run manifests: a declarative description of
// an influence run (input files and parameters) that can be checked into an
// analysis repository and shared between collaborators. CLI flags override
// manifest values.
package manifest

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrNoManifest indicates the manifest file does not exist.
var ErrNoManifest = errors.New("no run manifest found")

// Manifest declares the inputs and parameters of an influence run.
type Manifest struct {
	Source  string `toml:"source"`
	Target  string `toml:"target"`
	DEGenes string `toml:"degenes"`
	Outfile string `toml:"outfile"`

	Edges      int     `toml:"edges"`
	Workers    int     `toml:"workers"`
	Extended   bool    `toml:"extended"`
	SortBy     string  `toml:"sort_by"`
	Separator  string  `toml:"separator"`
	PadjCutoff float64 `toml:"padj_cutoff"`
	PathCutoff float64 `toml:"path_cutoff"`

	FilterTFs  bool    `toml:"filter_tfs"`
	Expression string  `toml:"expression"` // TPM table for the filter
	Overlap    float64 `toml:"overlap"`
	TPM        float64 `toml:"tpm"`
}

// Load reads and parses a run manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}
