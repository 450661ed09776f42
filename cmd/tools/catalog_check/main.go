package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/noah-isme/backend-liquidacion/internal/catalog"
	"github.com/noah-isme/backend-liquidacion/internal/rubro"
)

// catalogCheck validates every option catalog under a directory: each file
// must parse and no tab may list the same rubro twice once names are
// normalised. Exit code 0 = ok, 1 = violation, 2 = other error.
func main() {
	root := "config/catalog"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	violations, err := scan(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog_check error: %v\n", err)
		os.Exit(2)
	}
	if len(violations) > 0 {
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "VIOLATION: %s\n", v)
		}
		os.Exit(1)
	}
	fmt.Println("catalog_check: OK")
}

func scan(dir string) ([]string, error) {
	var violations []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
		default:
			return nil
		}
		cat, err := catalog.Load(path)
		if err != nil {
			violations = append(violations, fmt.Sprintf("%s: %v", path, err))
			return nil
		}
		for _, dup := range duplicates(cat) {
			violations = append(violations, fmt.Sprintf("%s: %s", path, dup))
		}
		return nil
	})
	return violations, err
}

func duplicates(cat catalog.Catalog) []string {
	var out []string
	for tab, options := range cat.Rubros {
		seen := make(map[string]string, len(options))
		for _, opt := range options {
			key := rubro.Normalize(opt.Value)
			if first, ok := seen[key]; ok {
				out = append(out, fmt.Sprintf("%s lists %q and %q as the same rubro", tab, first, opt.Value))
				continue
			}
			seen[key] = opt.Value
		}
	}
	return out
}
