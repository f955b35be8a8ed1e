// Package artifact persists and restores the trained model, its explainer and
// the column schema as one consistent bundle.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"

	"loan-risk/internal/boost"
	"loan-risk/internal/common"
	"loan-risk/internal/schema"
)

var (
	ErrArtifactMissing  = errors.New("artifact missing")
	ErrArtifactCorrupt  = errors.New("artifact corrupt")
	ErrArtifactMismatch = errors.New("artifacts do not belong together")
)

// Paths locates the bundle files. Report is optional.
type Paths struct {
	Model     string
	Explainer string
	Schema    string
	Report    string
}

// PathsIn returns the default file names inside dir.
func PathsIn(dir string) Paths {
	return Paths{
		Model:     filepath.Join(dir, common.ModelFileName),
		Explainer: filepath.Join(dir, common.ExplainerFileName),
		Schema:    filepath.Join(dir, common.SchemaFileName),
		Report:    filepath.Join(dir, common.ReportFileName),
	}
}

// Bundle is everything inference needs. It is read-only once loaded.
type Bundle struct {
	Model     *boost.Model
	Explainer *boost.Explainer
	Schema    *schema.Schema
	Report    json.RawMessage
}

type staged struct {
	tmp, dst string
}

// SaveAll encodes every artifact, stages each to a temp file next to its
// destination and only renames once all of them were written and synced.
func SaveAll(paths Paths, b *Bundle) error {
	if b.Model == nil || b.Explainer == nil || b.Schema == nil {
		return errors.New("artifact: incomplete bundle")
	}

	var mbuf, ebuf bytes.Buffer
	if err := b.Model.Encode(&mbuf); err != nil {
		return err
	}
	if err := b.Explainer.Encode(&ebuf); err != nil {
		return err
	}
	sdata, err := b.Schema.Marshal()
	if err != nil {
		return err
	}

	files := []struct {
		path string
		data []byte
	}{
		{paths.Model, mbuf.Bytes()},
		{paths.Explainer, ebuf.Bytes()},
		{paths.Schema, sdata},
	}
	if len(b.Report) > 0 && paths.Report != "" {
		files = append(files, struct {
			path string
			data []byte
		}{paths.Report, b.Report})
	}

	var pending []staged
	cleanup := func() {
		for _, s := range pending {
			os.Remove(s.tmp)
		}
	}

	for _, f := range files {
		tmp, err := stage(f.path, f.data)
		if err != nil {
			cleanup()
			return err
		}
		pending = append(pending, staged{tmp: tmp, dst: f.path})
	}

	for i, s := range pending {
		if err := os.Rename(s.tmp, s.dst); err != nil {
			cleanup()
			return fmt.Errorf("install %s: %w", s.dst, err)
		}
		pending[i].tmp = ""
		log.Debug().Str("file", s.dst).Msg("Artifact written")
	}
	return nil
}

func stage(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", path, err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("stage %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return name, nil
}

// LoadAll reads the three artifacts and verifies they were produced by the
// same training run. The report is attached when present.
func LoadAll(paths Paths) (*Bundle, error) {
	mf, err := open(paths.Model)
	if err != nil {
		return nil, err
	}
	model, err := boost.DecodeModel(mf)
	mf.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactCorrupt, paths.Model, err)
	}

	ef, err := open(paths.Explainer)
	if err != nil {
		return nil, err
	}
	explainer, err := boost.DecodeExplainer(ef)
	ef.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactCorrupt, paths.Explainer, err)
	}

	sdata, err := os.ReadFile(paths.Schema)
	if err != nil {
		return nil, missingOr(paths.Schema, err)
	}
	s, err := schema.Unmarshal(sdata)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactCorrupt, paths.Schema, err)
	}

	if model.SchemaVersion != s.Version {
		return nil, fmt.Errorf("%w: model schema %q, schema file %q", ErrArtifactMismatch, model.SchemaVersion, s.Version)
	}
	if !slices.Equal(model.FeatureNames, s.Columns) {
		return nil, fmt.Errorf("%w: model features differ from schema columns", ErrArtifactMismatch)
	}
	if err := explainer.Matches(model); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactMismatch, err)
	}

	b := &Bundle{Model: model, Explainer: explainer, Schema: s}
	if paths.Report != "" {
		if data, err := os.ReadFile(paths.Report); err == nil && json.Valid(data) {
			b.Report = data
		}
	}
	return b, nil
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, missingOr(path, err)
	}
	return f, nil
}

func missingOr(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrArtifactMissing, path)
	}
	return fmt.Errorf("read %s: %w", path, err)
}
