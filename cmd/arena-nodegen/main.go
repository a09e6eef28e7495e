// Command arena-nodegen generates typed node map accessors from a node
// map description.
//
// Usage:
//
//	arena-nodegen -description <file.yaml> -package <name> -type <Name> -output <file.go> [-prefix Node]
//
// Every feature of the description gets a name constant, a getter and,
// when writable, a setter on the generated type. Commands get a method
// executing them. Enumerations also get one constant per entry.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"

	"github.com/zacpullen/arena-api/pkg/nodemap"
)

func main() {
	descPath := flag.String("description", "", "Node map description (YAML)")
	pkg := flag.String("package", "", "Package of the generated file")
	typeName := flag.String("type", "", "Name of the generated accessor type")
	prefix := flag.String("prefix", "Node", "Prefix of the generated name constants")
	output := flag.String("output", "", "Output Go file")
	flag.Parse()

	if *descPath == "" || *pkg == "" || *typeName == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "Usage: arena-nodegen -description <file.yaml> -package <name> -type <Name> -output <file.go> [-prefix Node]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*descPath, *pkg, *typeName, *prefix, *output); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(descPath, pkg, typeName, prefix, output string) error {
	desc, err := nodemap.LoadDescription(descPath)
	if err != nil {
		return err
	}
	data, err := buildFileData(desc, filepath.Base(descPath), pkg, typeName, prefix)
	if err != nil {
		return err
	}
	code, err := Generate(data)
	if err != nil {
		return err
	}
	if err := writeFormatted(output, code); err != nil {
		return err
	}
	fmt.Printf("  generated %s (%d features)\n", output, len(data.Nodes))
	return nil
}

// writeFormatted formats Go source code with goimports and writes it to a file.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Write unformatted so you can debug the generator output
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
