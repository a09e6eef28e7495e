package interactive

import (
	"fmt"
	"strings"

	"github.com/zacpullen/arena-api/pkg/callback"
	"github.com/zacpullen/arena-api/pkg/inspect"
	"github.com/zacpullen/arena-api/pkg/node"
)

func (s *Shell) parsePath(arg string) (*inspect.Path, bool) {
	p, err := inspect.ParsePath(arg)
	if err != nil {
		s.printErr("Invalid path", err)
		return nil, false
	}
	return p, true
}

// cmdInspect shows one node in detail, or the tree of the default map.
func (s *Shell) cmdInspect(args []string) {
	if len(args) == 0 {
		s.cmdTree(nil)
		return
	}
	p, ok := s.parsePath(args[0])
	if !ok {
		return
	}
	if p.IsPartial {
		s.cmdTree(args)
		return
	}
	info, err := s.inspector().InspectNode(p)
	if err != nil {
		s.printErr("Inspect failed", err)
		return
	}
	fmt.Fprint(s.out, s.formatter.FormatDetail(info))
}

func (s *Shell) cmdTree(args []string) {
	p := &inspect.Path{IsPartial: true}
	if len(args) > 0 {
		var ok bool
		if p, ok = s.parsePath(args[0]); !ok {
			return
		}
	}
	tree, err := s.inspector().Tree(p)
	if err != nil {
		s.printErr("Tree failed", err)
		return
	}
	if err := s.formatter.WriteTree(s.out, tree); err != nil {
		s.printErr("Tree failed", err)
	}
}

func (s *Shell) cmdRead(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: read <path>")
		return
	}
	p, ok := s.parsePath(args[0])
	if !ok {
		return
	}
	v, err := s.inspector().Read(p)
	if err != nil {
		s.printErr("Read failed", err)
		return
	}
	fmt.Fprintf(s.out, "%s = %s\n", p, v)
}

func (s *Shell) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: write <path> <value>")
		return
	}
	p, ok := s.parsePath(args[0])
	if !ok {
		return
	}
	value := strings.Join(args[1:], " ")
	if err := s.inspector().Write(p, value); err != nil {
		s.printErr("Write failed", err)
		return
	}
	fmt.Fprintf(s.out, "%s <- %s\n", p, value)
}

func (s *Shell) cmdExec(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: exec <path>")
		return
	}
	p, ok := s.parsePath(args[0])
	if !ok {
		return
	}
	if err := s.inspector().Execute(p); err != nil {
		s.printErr("Execute failed", err)
		return
	}
	fmt.Fprintf(s.out, "Executed %s\n", p)
}

// cmdWatch registers a node callback printing the node on every change.
func (s *Shell) cmdWatch(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: watch <node>")
		return
	}
	d := s.device()
	if d == nil {
		return
	}
	name, err := inspect.ResolveNodeName(d.NodeMap(), args[0])
	if err != nil {
		s.printErr("Watch failed", err)
		return
	}

	s.mu.Lock()
	_, dup := s.watches[name]
	s.mu.Unlock()
	if dup {
		fmt.Fprintf(s.out, "Already watching %s\n", name)
		return
	}

	f, err := d.NodeMap().Resolve(name)
	if err != nil {
		s.printErr("Watch failed", err)
		return
	}
	h, err := d.RegisterCallback(f, callback.NodeHandler(s.onNodeChanged))
	if err != nil {
		s.printErr("Watch failed", err)
		return
	}
	s.mu.Lock()
	s.watches[name] = h
	s.mu.Unlock()
	fmt.Fprintf(s.out, "Watching %s\n", name)
}

func (s *Shell) onNodeChanged(f node.Feature, _ ...any) {
	v, err := f.ValueString()
	if err != nil {
		fmt.Fprintf(s.out, "[watch] %s: %v\n", f.Name(), err)
		return
	}
	fmt.Fprintf(s.out, "[watch] %s = %s\n", f.Name(), v)
}

func (s *Shell) cmdUnwatch(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: unwatch <node>")
		return
	}
	d := s.device()
	if d == nil {
		return
	}
	name, err := inspect.ResolveNodeName(d.NodeMap(), args[0])
	if err != nil {
		s.printErr("Unwatch failed", err)
		return
	}
	s.mu.Lock()
	h, ok := s.watches[name]
	delete(s.watches, name)
	s.mu.Unlock()
	if !ok {
		fmt.Fprintf(s.out, "Not watching %s\n", name)
		return
	}
	if err := d.DeregisterCallback(h); err != nil {
		s.printErr("Unwatch failed", err)
		return
	}
	fmt.Fprintf(s.out, "Stopped watching %s\n", name)
}

func (s *Shell) cmdPoll() {
	d := s.device()
	if d == nil {
		return
	}
	if err := d.PollNodes(); err != nil {
		s.printErr("Poll failed", err)
	}
}

func (s *Shell) cmdSave(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: save <file> [node...]")
		return
	}
	d := s.device()
	if d == nil {
		return
	}
	if err := d.NodeMap().SaveFeatureFile(args[0], args[1:]...); err != nil {
		s.printErr("Save failed", err)
		return
	}
	fmt.Fprintf(s.out, "Saved features to %s\n", args[0])
}

func (s *Shell) cmdLoad(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: load <file>")
		return
	}
	d := s.device()
	if d == nil {
		return
	}
	if err := d.NodeMap().LoadFeatureFile(args[0]); err != nil {
		s.printErr("Load failed", err)
		return
	}
	fmt.Fprintf(s.out, "Loaded features from %s\n", args[0])
}
