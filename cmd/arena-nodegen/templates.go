package main

import (
	"fmt"
	"strings"
	"text/template"
)

// funcMap provides helper functions available to the templates.
var funcMap = template.FuncMap{
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
}

var fileTemplate = template.Must(template.New("file").Funcs(funcMap).Parse(fileTmpl))

// Generate renders the accessor file. The output is not formatted.
func Generate(data *fileData) (string, error) {
	var b strings.Builder
	if err := fileTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", data.Type, err)
	}
	return b.String(), nil
}

const fileTmpl = `// Code generated by arena-nodegen from {{.Source}}. DO NOT EDIT.

package {{.Package}}

import "github.com/zacpullen/arena-api/pkg/nodemap"

// {{.Scope}} feature names.
const (
{{- range .Nodes}}
{{$.Prefix}}{{.GoName}} = {{quote .Name}}
{{- end}}
)
{{range .Enums}}
// {{.Name}} entries.
const (
{{- range .Entries}}
{{$.Prefix}}{{.GoName}} = {{quote .Name}}
{{- end}}
)
{{end}}
// {{.Type}} reads and writes the features of a {{.Scope}} node map.
type {{.Type}} struct {
g *nodemap.Graph
}

// New{{.Type}} wraps g.
func New{{.Type}}(g *nodemap.Graph) *{{.Type}} {
return &{{.Type}}{g: g}
}

// Graph returns the wrapped node map.
func (n *{{.Type}}) Graph() *nodemap.Graph {
return n.g
}
{{range .Nodes}}
{{- $const := print $.Prefix .GoName}}
{{- if .Command}}
// {{.GoName}} executes the {{.Name}} command.{{if .Doc}} {{.Doc}}{{end}}
func (n *{{$.Type}}) {{.GoName}}() error {
return n.g.Execute({{$const}})
}
{{else}}
{{- if .Readable}}
// {{.GoName}} returns the value of {{.Name}}{{if .Unit}} in {{.Unit}}{{end}}.{{if .Doc}} {{.Doc}}{{end}}
func (n *{{$.Type}}) {{.GoName}}() ({{.GoType}}, error) {
return n.g.{{.Getter}}({{$const}})
}
{{end}}
{{- if .Writable}}
// Set{{.GoName}} writes {{.Name}}.
func (n *{{$.Type}}) Set{{.GoName}}(v {{.GoType}}) error {
return n.g.{{.Setter}}({{$const}}, v)
}
{{end}}
{{- end}}
{{- end}}`
