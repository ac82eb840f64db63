package templates

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	"pricewise/pkg/errors"
)

//go:embed assets/prompts/*.tmpl
var embeddedFS embed.FS

const ext = ".tmpl"

// Registry holds prompt templates keyed by ID, the slash path without
// extension (e.g. "prompts/pricing_strategy"). It is immutable after Load.
type Registry struct {
	templates map[string]*template.Template
}

// Load parses every .tmpl file in fsys. Templates fail on missing keys so a
// prompt is never sent with a silently empty field.
func Load(fsys fs.FS) (*Registry, error) {
	r := &Registry{templates: map[string]*template.Template{}}

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ext {
			return err
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return errors.Wrapf(err, "read template %s", p)
		}

		id := strings.TrimSuffix(p, ext)
		parsed, err := template.New(id).Funcs(FuncMap()).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return errors.Wrapf(err, "parse template %s", id)
		}
		r.templates[id] = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistry loads the templates under dir.
func NewRegistry(dir string) (*Registry, error) {
	return Load(os.DirFS(dir))
}

var (
	embeddedOnce sync.Once
	embedded     *Registry
	embeddedErr  error
)

// Get returns the embedded prompt registry. It panics if an embedded
// template fails to parse.
func Get() *Registry {
	embeddedOnce.Do(func() {
		sub, err := fs.Sub(embeddedFS, "assets")
		if err != nil {
			embeddedErr = errors.Wrap(err, "prepare embedded templates")
			return
		}
		embedded, embeddedErr = Load(sub)
	})
	if embeddedErr != nil {
		panic(embeddedErr)
	}
	return embedded
}

// Render executes the template id with data.
func (r *Registry) Render(id string, data any) (string, error) {
	tmpl, ok := r.templates[id]
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "template %s", id)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", id)
	}
	return buf.String(), nil
}

// List returns the sorted template IDs.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
