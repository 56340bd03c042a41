// Package patchdoc renders engine snapshots as Graphviz documents.
package patchdoc

import (
	"embed"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cwbudde/algo-rack/graph"
	"github.com/cwbudde/algo-rack/module"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer executes the DOT templates.
type Renderer struct {
	tmpl *template.Template
}

// Port is one channel of a node.
type Port struct {
	Index int
	Label string
}

// Node is the template view of one module.
type Node struct {
	ID        graph.LogicalID
	Type      string
	Title     string
	Inputs    []Port
	Outputs   []Port
	Params    []string
	Permanent bool
	Faulted   bool
}

// Document is the data handed to the "graph.dot" template.
type Document struct {
	Name    string
	Modules []Node
	Edges   []graph.ConnectionInfo
}

// New returns a renderer using the built-in templates.
func New() (*Renderer, error) {
	tmpl, err := base().ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("patchdoc: could not parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// NewFromTemplates parses every *.tmpl file in dir. The directory must
// define a "graph.dot" template.
func NewFromTemplates(dir string) (*Renderer, error) {
	tmpl, err := base().ParseGlob(filepath.Join(dir, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("patchdoc: could not parse templates in %q: %w", dir, err)
	}
	if tmpl.Lookup("graph.dot") == nil {
		return nil, fmt.Errorf("patchdoc: %q does not define graph.dot", dir)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func base() *template.Template {
	return template.New("base").Funcs(sprig.TxtFuncMap()).Funcs(template.FuncMap{
		"esc":   escape,
		"ports": ports,
	})
}

// WriteDOT renders snap as a directed graph called name.
func (r *Renderer) WriteDOT(w io.Writer, name string, snap graph.Snapshot) error {
	return r.tmpl.ExecuteTemplate(w, "graph.dot", NewDocument(name, snap))
}

// WriteDOT renders snap with the built-in templates.
func WriteDOT(w io.Writer, name string, snap graph.Snapshot) error {
	r, err := New()
	if err != nil {
		return err
	}
	return r.WriteDOT(w, name, snap)
}

// NewDocument converts a snapshot into template data.
func NewDocument(name string, snap graph.Snapshot) Document {
	caser := cases.Title(language.English)
	doc := Document{Name: name, Edges: snap.Connections}
	for _, m := range snap.Modules {
		n := Node{
			ID:        m.ID,
			Type:      m.Type,
			Title:     caser.String(m.Type) + " #" + strconv.Itoa(int(m.ID)),
			Inputs:    portsOf(m.Inputs),
			Outputs:   portsOf(m.Outputs),
			Permanent: m.Permanent,
			Faulted:   m.Faulted,
		}
		for _, p := range m.Params {
			n.Params = append(n.Params, formatParam(p))
		}
		doc.Modules = append(doc.Modules, n)
	}
	return doc
}

func portsOf(buses []module.Bus) []Port {
	var out []Port
	for _, b := range buses {
		for _, label := range b.Channels {
			if b.Summing {
				label += " +"
			}
			out = append(out, Port{Index: len(out), Label: label})
		}
	}
	return out
}

func formatParam(p graph.ParamInfo) string {
	s := p.Name + " = " + strconv.FormatFloat(p.Base, 'g', 4, 64)
	if p.Unit != "" {
		s += " " + p.Unit
	}
	if p.Absolute {
		s += " (abs)"
	}
	return s
}

func ports(prefix string, ps []Port) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = "<" + prefix + strconv.Itoa(p.Index) + "> " + escape(p.Label)
	}
	return strings.Join(parts, "|")
}

var recordEscaper = strings.NewReplacer(
	`{`, `\{`, `}`, `\}`, `|`, `\|`, `<`, `\<`, `>`, `\>`, `"`, `\"`,
)

// escape protects record label metacharacters.
func escape(s string) string { return recordEscaper.Replace(s) }
