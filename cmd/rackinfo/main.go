// Command rackinfo prints the module types of the rack and renders patches
// as Graphviz documents.
//
// Usage:
//
//	rackinfo [flags] [type ...]
//
// Without arguments it prints the buses and parameters of every type.
//
// Examples:
//
//	rackinfo -list
//	rackinfo oscillator filter
//	rackinfo -dot patch.yaml > patch.dot
//	rackinfo -dot patch.yaml -templates ./mytemplates
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/algo-rack/graph"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/modules"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/patchdoc"
	"github.com/cwbudde/algo-rack/preset"
)

func main() {
	list := flag.Bool("list", false, "list available module types")
	dot := flag.String("dot", "", "render the preset file as a Graphviz graph")
	templates := flag.String("templates", "", "directory with custom *.tmpl files for -dot")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rackinfo [flags] [type ...]\n\n")
		fmt.Fprintf(os.Stderr, "Prints the buses and parameters of rack module types.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rackinfo -list\n")
		fmt.Fprintf(os.Stderr, "  rackinfo oscillator filter\n")
		fmt.Fprintf(os.Stderr, "  rackinfo -dot patch.yaml > patch.dot\n")
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	e, err := graph.New(graph.WithRegistry(modules.DefaultRegistry()), graph.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Close(ctx)
	}()

	switch {
	case *list:
		printList(os.Stdout, e.TypeInfo())
	case *dot != "":
		if err := renderDOT(os.Stdout, e, *dot, *templates); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		names := flag.Args()
		if len(names) == 0 {
			names = e.Types()
		}
		infos := resolveTypes(e, names)
		if len(infos) == 0 {
			fmt.Fprintf(os.Stderr, "error: no matching module types\n")
			os.Exit(1)
		}
		printTypes(os.Stdout, infos, e.TypeInfo())
	}
}

func printList(w io.Writer, types []graph.TypeInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, t := range types {
		desc := t.Description
		if t.Permanent {
			desc += " (permanent)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", t.Name, desc)
	}
	if err := tw.Flush(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}

// resolveTypes instantiates each type once and returns its description.
// The permanent output and monitor modules are read from the snapshot.
func resolveTypes(e *graph.Engine, names []string) []graph.ModuleInfo {
	var ids []graph.LogicalID
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case graph.OutputType:
			ids = append(ids, graph.OutputID)
			continue
		case graph.MonitorType:
			ids = append(ids, graph.MonitorID)
			continue
		}
		id, err := e.AddModule(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: unknown module type %q (use -list to see available)\n", name)
			continue
		}
		ids = append(ids, id)
	}

	snap := e.Snapshot()
	var out []graph.ModuleInfo
	for _, id := range ids {
		i := slices.IndexFunc(snap.Modules, func(m graph.ModuleInfo) bool { return m.ID == id })
		if i >= 0 {
			out = append(out, snap.Modules[i])
		}
	}
	return out
}

func printTypes(w io.Writer, infos []graph.ModuleInfo, types []graph.TypeInfo) {
	desc := make(map[string]string, len(types))
	for _, t := range types {
		desc[t.Name] = t.Description
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, m := range infos {
		if i > 0 {
			_, _ = fmt.Fprintln(tw)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", m.Type, desc[m.Type])
		printBuses(tw, "in", m.Inputs)
		printBuses(tw, "out", m.Outputs)
		if len(m.Params) > 0 {
			_, _ = fmt.Fprintf(tw, "  Parameter\tRange\tDefault\tCV\tMode\n")
		}
		for _, p := range m.Params {
			cv := "-"
			if p.ModChannel != param.NoModulation {
				cv = fmt.Sprintf("in %d", p.ModChannel)
			}
			mode := "relative"
			if p.Absolute {
				mode = "absolute"
			}
			_, _ = fmt.Fprintf(tw, "  %s\t%g..%g %s (%s)\t%g\t%s\t%s\n",
				p.Name, p.Range.Min, p.Range.Max, p.Unit, p.Range.Curve, p.Default, cv, mode)
		}
	}
	if err := tw.Flush(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}
}

func printBuses(w io.Writer, dir string, buses []module.Bus) {
	ch := 0
	for _, b := range buses {
		label := b.Name
		if b.Summing {
			label += " (summing)"
		}
		_, _ = fmt.Fprintf(w, "  %s %d..%d\t%s\t%s\n", dir, ch, ch+b.Width()-1, label, strings.Join(b.Channels, ", "))
		ch += b.Width()
	}
}

func renderDOT(w io.Writer, e *graph.Engine, path, templates string) error {
	p, err := preset.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := preset.Load(e, p); err != nil {
		return err
	}

	r, err := patchdoc.New()
	if templates != "" {
		r, err = patchdoc.NewFromTemplates(templates)
	}
	if err != nil {
		return err
	}
	name := p.Name
	if name == "" {
		name = strings.TrimSuffix(path, ".yaml")
	}
	return r.WriteDOT(w, name, e.Snapshot())
}
