/*
DESCRIPTION
  vars.go provides reading of a local variables file, and watching of it so
  that edits are applied while camd runs.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/ausocean/utils/logging"
)

// parseVars reads variables from r. Each line holds one name=value pair;
// blank lines and lines starting with # are skipped.
func parseVars(r io.Reader) (map[string]string, error) {
	vars := make(map[string]string)
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected name=value", n)
		}
		vars[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return vars, sc.Err()
}

// readVars reads the variables file at path.
func readVars(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseVars(f)
}

// watchVars calls apply with the contents of the file at path each time it
// is written, until ctx is done. The directory is watched so that files
// replaced by editors are still seen.
func watchVars(ctx context.Context, path string, apply func(map[string]string), l logging.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	defer w.Close()

	err = w.Add(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("could not watch %s: %w", path, err)
	}
	want := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != want || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			vars, err := readVars(path)
			if err != nil {
				l.Warning(pkg+"could not read vars file", "path", path, "error", err.Error())
				continue
			}
			l.Info(pkg+"vars file changed", "path", path)
			apply(vars)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Warning(pkg+"vars watcher error", "error", err.Error())
		}
	}
}
