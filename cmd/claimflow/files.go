package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"claimflow/internal/domain"
)

// readInputFile reads a command's input file. A missing file is reported as
// domain.ErrInputNotFound.
func readInputFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(domain.ErrInputNotFound, "%s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// requireFile fails unless path names an existing regular file.
func requireFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return eris.Wrapf(domain.ErrInputNotFound, "%s", path)
	}
	if err != nil {
		return eris.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return eris.Wrapf(domain.ErrInvalidInput, "%s is a directory", path)
	}
	return nil
}

// marshalOutput renders v as the two-space indented JSON every command emits.
func marshalOutput(v any) ([]byte, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "marshal output")
	}
	return append(body, '\n'), nil
}

// writeJSON writes v to path as indented JSON.
func writeJSON(path string, v any) error {
	body, err := marshalOutput(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}

// derivedPath returns <dir>/<base><suffix><ext> for input, where base is the
// input name without its extension. An empty ext keeps the input's
// extension, and a .txt or extensionless input becomes .json.
func derivedPath(input, suffix, ext string) string {
	inExt := filepath.Ext(input)
	base := strings.TrimSuffix(input, inExt)
	if ext == "" {
		ext = inExt
		if ext == "" || strings.EqualFold(ext, ".txt") {
			ext = ".json"
		}
	}
	return base + suffix + ext
}
