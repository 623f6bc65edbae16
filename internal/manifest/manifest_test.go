package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, `
source = "fibroblast.tsv"
target = "astrocyte.tsv"
degenes = "degenes.tsv"
outfile = "influence.tsv"
edges = 50000
workers = 8
extended = true
path_cutoff = 0.5
filter_tfs = true
expression = "tpm.tsv"
tpm = 15.0
`)

	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Source != "fibroblast.tsv" || m.Target != "astrocyte.tsv" {
		t.Errorf("networks = %q, %q", m.Source, m.Target)
	}
	if m.Edges != 50000 {
		t.Errorf("Edges = %d, want 50000", m.Edges)
	}
	if m.Workers != 8 {
		t.Errorf("Workers = %d, want 8", m.Workers)
	}
	if !m.Extended {
		t.Error("Extended = false, want true")
	}
	if m.PathCutoff != 0.5 {
		t.Errorf("PathCutoff = %v, want 0.5", m.PathCutoff)
	}
	if !m.FilterTFs || m.Expression != "tpm.tsv" || m.TPM != 15.0 {
		t.Errorf("filter settings = %v, %q, %v", m.FilterTFs, m.Expression, m.TPM)
	}
}

func TestLoadUnsetFieldsAreZero(t *testing.T) {
	path := writeManifest(t, `outfile = "influence.tsv"`)

	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	// Zero values signal "not set in manifest" to the flag-precedence logic.
	if m.Edges != 0 || m.Workers != 0 || m.Separator != "" {
		t.Errorf("unset fields not zero: %+v", m)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("got %v, want ErrNoManifest", err)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeManifest(t, "edges = [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
