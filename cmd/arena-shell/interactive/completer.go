package interactive

import (
	"slices"
	"strings"

	"github.com/zacpullen/arena-api/pkg/inspect"
)

var commands = []string{
	"advertise", "create", "destroy", "devices", "discover", "events", "exec",
	"exit", "forceip", "grab", "help", "inspect", "interfaces", "load", "poll",
	"quit", "read", "save", "session", "stream", "timeout", "tree", "unwatch",
	"use", "watch", "write",
}

// pathCommands take a node path as their first argument.
var pathCommands = []string{"exec", "inspect", "read", "tree", "unwatch", "watch", "write", "i", "r", "w", "x", "t"}

// completer completes command names and node paths.
type completer struct {
	s *Shell
}

// Do implements readline.AutoCompleter.
func (c *completer) Do(line []rune, pos int) ([][]rune, int) {
	head := string(line[:pos])
	fields := strings.Fields(head)
	atWordStart := head == "" || strings.HasSuffix(head, " ")

	var word string
	if !atWordStart && len(fields) > 0 {
		word = fields[len(fields)-1]
	}
	argIndex := len(fields)
	if !atWordStart {
		argIndex--
	}

	var candidates []string
	switch {
	case argIndex == 0:
		candidates = commands
	case argIndex == 1 && slices.Contains(pathCommands, strings.ToLower(fields[0])):
		candidates = c.paths(word)
	default:
		return nil, 0
	}

	var out [][]rune
	for _, cand := range candidates {
		if strings.HasPrefix(strings.ToLower(cand), strings.ToLower(word)) {
			out = append(out, []rune(cand[len(word):]+" "))
		}
	}
	return out, len([]rune(word))
}

// paths returns the full paths matching prefix, with the map prefix kept.
func (c *completer) paths(prefix string) []string {
	insp := c.s.inspector()
	mapPart, nodePart, hasMap := strings.Cut(prefix, "/")
	if !hasMap {
		nodePart = prefix
	}
	p := &inspect.Path{IsPartial: true}
	if hasMap {
		scope, ok := inspect.ResolveMapName(mapPart)
		if !ok {
			return nil
		}
		p.Map, p.HasMap = scope, true
	}
	g, err := insp.Graph(p)
	if err != nil {
		return nil
	}
	var out []string
	for _, name := range inspect.Complete(g, nodePart) {
		if hasMap {
			name = mapPart + "/" + name
		}
		out = append(out, name)
	}
	return out
}
