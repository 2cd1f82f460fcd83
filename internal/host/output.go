// Where: internal/host/output.go
// What: Template rendering and writing.
// Why: package:finalize persists the synthesized document as JSON or YAML.
package host

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/meta"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render encodes doc in format.
func Render(doc map[string]any, format string) ([]byte, error) {
	switch normalizeFormat(format) {
	case FormatJSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(doc)
	default:
		return nil, errs.New(errs.ConfigInvalid, "host.Render", "unsupported format %q", format)
	}
}

// TemplatePath is the default output path for format.
func (h *Host) TemplatePath(format string) string {
	ext := "json"
	if normalizeFormat(format) == FormatYAML {
		ext = "yml"
	}
	return filepath.Join(h.dir, meta.OutputDir, meta.TemplateFile+"."+ext)
}

// WriteTemplate renders the service output to path and returns the path.
func (h *Host) WriteTemplate(path, format string) (string, error) {
	const op = "host.WriteTemplate"
	data, err := Render(h.service.Output(), format)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = h.TemplatePath(format)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(h.dir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errs.Wrap(errs.ExternalUnavailable, op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errs.Wrap(errs.ExternalUnavailable, op, fmt.Errorf("write %s: %w", path, err))
	}
	h.log.Info(fmt.Sprintf("Template written to %s", path))
	return path, nil
}

func normalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return format
	}
}
