package linker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	synerrors "github.com/jllopis/synai/pkg/errors"
)

// ArtifactExt is the extension of linked artifacts written by default.
const ArtifactExt = ".synx"

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// DefaultArtifactPath derives "<dir>/<base>_linked.synx" from a source path.
func DefaultArtifactPath(source string) string {
	dir := filepath.Dir(source)
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, base+"_linked"+ArtifactExt)
}

// MarshalJSON serializes an artifact to JSON. Use pretty for indented output.
func MarshalJSON(a *Artifact, pretty bool) ([]byte, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	if pretty {
		return json.MarshalIndent(a, "", "  ")
	}
	return json.Marshal(a)
}

// ParseJSON loads an artifact from JSON and validates it.
func ParseJSON(data []byte) (*Artifact, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "empty JSON payload", nil)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		if synerrors.CodeOf(err) != "" {
			return nil, err
		}
		return nil, synerrors.New(synerrors.CodeInvalidInput, "parse json artifact", err)
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	a.Graph.reindex()
	return &a, nil
}

// MarshalYAML serializes an artifact to YAML. The document has the same
// shape as the JSON form.
func MarshalYAML(a *Artifact) ([]byte, error) {
	data, err := MarshalJSON(a, false)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, synerrors.New(synerrors.CodeInternal, "convert artifact to yaml", err)
	}
	return yaml.Marshal(doc)
}

// ParseYAML loads an artifact from YAML and validates it.
func ParseYAML(data []byte) (*Artifact, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "empty YAML payload", nil)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "parse yaml artifact", err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "convert yaml artifact", err)
	}
	return ParseJSON(js)
}

// SaveArtifact writes a to path. The format follows the extension: .yaml and
// .yml write YAML, a trailing .zst compresses the inner format with zstd,
// anything else writes indented JSON.
func SaveArtifact(path string, a *Artifact) error {
	if strings.TrimSpace(path) == "" {
		return synerrors.New(synerrors.CodeInvalidInput, "artifact path is required", nil)
	}
	compress := strings.EqualFold(filepath.Ext(path), ".zst")
	inner := path
	if compress {
		inner = strings.TrimSuffix(path, filepath.Ext(path))
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(inner)) {
	case ".yaml", ".yml":
		data, err = MarshalYAML(a)
	default:
		data, err = MarshalJSON(a, true)
	}
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return synerrors.New(synerrors.CodeInternal, "create artifact file", err).WithContext("path", path)
	}
	if !compress {
		if _, err := f.Write(data); err != nil {
			f.Close()
			return synerrors.New(synerrors.CodeInternal, "write artifact", err).WithContext("path", path)
		}
		return f.Close()
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("write zstd: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close zstd: %w", err)
	}
	return f.Close()
}

// LoadArtifact reads an artifact written by SaveArtifact. Unknown extensions
// are detected from the content.
func LoadArtifact(path string) (*Artifact, error) {
	if strings.TrimSpace(path) == "" {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "artifact path is required", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeNotFound, "read artifact", err).WithContext("path", path)
	}
	inner := path
	if bytes.HasPrefix(data, zstdMagic) {
		if data, err = decompress(data); err != nil {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(path), ".zst") {
			inner = strings.TrimSuffix(path, filepath.Ext(path))
		}
	}
	switch strings.ToLower(filepath.Ext(inner)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parseArtifactAuto(data)
	}
}

func decompress(data []byte) ([]byte, error) {
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, synerrors.New(synerrors.CodeInvalidInput, "decompress artifact", err)
	}
	return out, nil
}

func parseArtifactAuto(data []byte) (*Artifact, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

func (a *Artifact) check() error {
	if a == nil {
		return synerrors.New(synerrors.CodeInvalidInput, "artifact is nil", nil)
	}
	if a.ValidatedAST == nil {
		return synerrors.New(synerrors.CodeInvalidInput, "artifact has no validated_ast", nil)
	}
	if a.Graph == nil {
		return synerrors.New(synerrors.CodeInvalidInput, "artifact has no graph", nil)
	}
	if err := a.Graph.Validate(); err != nil {
		return synerrors.New(synerrors.CodeInvalidInput, "invalid artifact graph", err)
	}
	return nil
}
