// geval evaluates G expressions against a scratch in-memory world, for
// trying out softcode without a running server.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adamdray/gaia-mud/pkg/eval"
	"github.com/adamdray/gaia-mud/pkg/eval/functions"
	"github.com/adamdray/gaia-mud/pkg/g"
)

// scratchWorld is a self-contained eval.World: attributes live in a map,
// sends print to stdout, log lines go to stderr.
type scratchWorld struct {
	attrs map[string]map[string]g.Value
}

func newScratchWorld() *scratchWorld {
	return &scratchWorld{attrs: map[string]map[string]g.Value{
		"#scratch": {},
	}}
}

func (w *scratchWorld) GetAttr(id, name string) (g.Value, bool, error) {
	v, ok := w.attrs[id][name]
	return v, ok, nil
}

func (w *scratchWorld) SetAttr(id, name string, v g.Value) error {
	if w.attrs[id] == nil {
		w.attrs[id] = make(map[string]g.Value)
	}
	w.attrs[id][name] = v
	return nil
}

func (w *scratchWorld) Exists(id string) bool { return w.attrs[id] != nil }

func (w *scratchWorld) CreateObject(name string, parents []string, owner string) (string, error) {
	id := "#" + name
	if w.attrs[id] != nil {
		return "", fmt.Errorf("object %s already exists", id)
	}
	w.attrs[id] = make(map[string]g.Value)
	return id, nil
}

func (w *scratchWorld) Deliver(target string, payload g.Value, inv *eval.Invocation) error {
	fmt.Printf("%s <- %s\n", target, g.ToString(payload))
	return nil
}

func (w *scratchWorld) Logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func (w *scratchWorld) ReadSourceFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func main() {
	expr := flag.String("e", "", "Expression to evaluate (non-interactive mode)")
	budget := flag.Duration("budget", 500*time.Millisecond, "Per-expression time budget")
	flag.Parse()

	w := newScratchWorld()
	funcs := functions.NewStdlib()

	run := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		nodes, err := g.ParseProgram(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse: %v\n", err)
			return
		}
		ctx := eval.NewContext(w, funcs, "#scratch", "#scratch", eval.NewInvocation(*budget, 0))
		ctx.ActorAdmin = true
		v, err := ctx.EvalProgram(nodes)
		if err != nil {
			if f, ok := err.(*eval.Failure); ok {
				fmt.Println(f.Diagnostic())
				return
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return
		}
		fmt.Println(g.ToString(v))
	}

	if *expr != "" {
		run(*expr)
		return
	}

	fmt.Fprintln(os.Stderr, "geval — G expression evaluator. Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "g> ")
		if !scanner.Scan() {
			return
		}
		run(scanner.Text())
	}
}
