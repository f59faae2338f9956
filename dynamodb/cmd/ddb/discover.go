package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const schemaFilename = "schema_dynamodb.yaml"

// discoverSchema finds the one schema_dynamodb.yaml below root. It is used
// when neither --schema nor ddb.yaml names a schema file.
func discoverSchema(root string) (string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || name == "vendor" || name == "node_modules" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == schemaFilename {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("no %s found below %s; pass --schema", schemaFilename, root)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("found %d schema files (%s); pass --schema", len(found), strings.Join(found, ", "))
}

func workingDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}
