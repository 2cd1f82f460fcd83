// Where: internal/dockerfiles/dockerfiles.go
// What: Render embedded runtime Dockerfiles and entrypoints into staging.
// Why: Managed runtimes build from bundled templates unless a dockerFile is set.
package dockerfiles

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	runtimeassets "github.com/hybridless/hybridless/assets"
	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/errs"
	"github.com/hybridless/hybridless/internal/options"
)

// Kind is the process model of a rendered image.
type Kind string

const (
	KindHTTPD      Kind = "httpd"
	KindProcess    Kind = "process"
	KindScheduled  Kind = "scheduled"
	KindLaunchable Kind = "launchable"
	KindLambda     Kind = "lambda"
	KindJob        Kind = "job"
)

var supported = map[Kind][]options.Family{
	KindHTTPD:      {options.FamilyNode, options.FamilyPHP, options.FamilyGo},
	KindProcess:    {options.FamilyNode},
	KindScheduled:  {options.FamilyNode},
	KindLaunchable: {options.FamilyNode, options.FamilyJava},
	KindLambda:     {options.FamilyNode, options.FamilyJava},
	KindJob:        {options.FamilyNode, options.FamilyJava},
}

var templateCache sync.Map

// Request describes the image to render.
type Request struct {
	Kind        Kind
	Runtime     options.Runtime
	Handler     string
	Port        int
	HealthRoute string
}

type templateData struct {
	Kind         string
	Family       string
	Version      string
	Handler      string
	AppDir       string
	Port         int
	EntryFile    string
	ESM          bool
	HealthStatus string
}

// Renderer writes rendered files under a staging directory.
type Renderer struct {
	dir string
}

// NewRenderer renders into dir, which must exist.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// Supports reports whether a bundled template exists for the pair.
func Supports(kind Kind, runtime options.Runtime) bool {
	family := runtime.Family()
	for _, f := range supported[kind] {
		if f == family {
			return true
		}
	}
	return false
}

// Render writes the Dockerfile and any runtime entry files, returning
// them as build context entries in the order they must be packaged.
func (r *Renderer) Render(req Request) ([]builder.File, error) {
	const op = "dockerfiles.Render"
	if req.Runtime == options.RuntimeContainer {
		return nil, errs.New(errs.ConfigInvalid, op, "container environments require dockerFile to be set")
	}
	if !Supports(req.Kind, req.Runtime) {
		return nil, errs.New(errs.ConfigInvalid, op, "unknown %s runtime %q", req.Kind, req.Runtime)
	}
	data := newTemplateData(req)

	files := []builder.File{}
	dockerfile, err := r.write("Dockerfile.tmpl", "Dockerfile", data)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, op, err)
	}
	files = append(files, builder.File{Source: dockerfile, Dest: "Dockerfile"})

	extra, err := r.entryFiles(req, data)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, op, err)
	}
	return append(files, extra...), nil
}

func (r *Renderer) entryFiles(req Request, data templateData) ([]builder.File, error) {
	family := req.Runtime.Family()
	var name, dest string
	switch {
	case family == options.FamilyNode && req.Kind == KindHTTPD:
		name, dest = "httpd-index.js.tmpl", data.EntryFile
	case family == options.FamilyNode && req.Kind == KindLaunchable:
		name, dest = "launchable-index.js.tmpl", data.EntryFile
	case family == options.FamilyNode && req.Kind == KindJob:
		name, dest = "job-proxy.js.tmpl", "proxy.js"
	case family == options.FamilyJava && req.Kind == KindJob:
		name, dest = "job-entrypoint.sh.tmpl", "hybridless-entrypoint.sh"
	case family == options.FamilyPHP && req.Kind == KindHTTPD:
		name, dest = "healthCheck.php.tmpl", path.Join("app", req.HealthRoute, "index.php")
	default:
		return nil, nil
	}
	out, err := r.write(name, strings.TrimSuffix(name, ".tmpl"), data)
	if err != nil {
		return nil, err
	}
	return []builder.File{{Source: out, Dest: dest}}, nil
}

func (r *Renderer) write(templateName, fileName string, data templateData) (string, error) {
	content, err := renderTemplate(templateName, data)
	if err != nil {
		return "", err
	}
	out := filepath.Join(r.dir, fileName)
	if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}

func newTemplateData(req Request) templateData {
	version := req.Runtime.Version()
	esm := false
	if req.Runtime.Family() == options.FamilyNode {
		esm = nodeMajor(version) >= 18
	}
	entry := "index.js"
	if esm {
		entry = "index.mjs"
	}
	port := req.Port
	if port == 0 {
		port = constants.DefaultHTTPPort
	}
	return templateData{
		Kind:         string(req.Kind),
		Family:       req.Runtime.Family().String(),
		Version:      version,
		Handler:      req.Handler,
		AppDir:       constants.DefaultContainerAppDir,
		Port:         port,
		EntryFile:    entry,
		ESM:          esm,
		HealthStatus: constants.DefaultHealthCheckStatusCode,
	}
}

func nodeMajor(version string) int {
	major := 0
	for _, ch := range version {
		if ch < '0' || ch > '9' {
			break
		}
		major = major*10 + int(ch-'0')
	}
	return major
}

func renderTemplate(name string, data any) (string, error) {
	tmpl, err := loadTemplate(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimLeft(buf.String(), "\n") + "\n", nil
}

func loadTemplate(name string) (*template.Template, error) {
	if value, ok := templateCache.Load(name); ok {
		cached, ok := value.(*template.Template)
		if !ok {
			return nil, fmt.Errorf("template cache type mismatch for %s", name)
		}
		return cached, nil
	}
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).ParseFS(runtimeassets.RuntimeTemplatesFS, "runtime-templates/"+name)
	if err != nil {
		return nil, err
	}
	templateCache.Store(name, tmpl)
	return tmpl, nil
}
