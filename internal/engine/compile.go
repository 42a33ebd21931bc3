package engine

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
)

// contentFiles lists the files of dir that belong to the item, as slash
// separated paths relative to dir in lexical order. Hidden entries, the item
// manifest and excluded extensions are left out.
func contentFiles(dir string, exts []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == models.ManifestFile || excluded(rel, exts) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Compile validates an item directory before it is published: the directory
// must hold content, the type's marker file must be present at its root and
// every definition (.sbc) file must be well-formed XML.
func (e *Engine) Compile(ctx context.Context, item *models.WorkItem, opts models.Options) error {
	files, err := contentFiles(item.LocalPath, opts.ExcludeExtensions)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrCompile, item.LocalPath, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: %w in %s", ErrCompile, ErrEmptyContent, item.LocalPath)
	}

	spec := item.Type.Spec()
	if spec.MarkerFile != "" {
		marker := filepath.Join(item.LocalPath, spec.MarkerFile)
		info, err := os.Stat(marker)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%w: %s is missing %s", ErrCompile, item.Title, spec.MarkerFile)
		}
		if info.Size() == 0 {
			return fmt.Errorf("%w: %s is empty", ErrCompile, marker)
		}
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.EqualFold(filepath.Ext(rel), ".sbc") {
			continue
		}
		if err := checkXML(filepath.Join(item.LocalPath, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCompile, rel, err)
		}
	}

	log.WithFields(log.Fields{"type": item.Type, "files": len(files)}).Debugf("Compiled %s", item.Title)
	return nil
}

func checkXML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	root := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			root = true
		}
	}
	if !root {
		return fmt.Errorf("no root element")
	}
	return nil
}
