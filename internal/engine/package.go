package engine

import (
	"archive/zip"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go-workshop-sync/internal/helpers"
	"go-workshop-sync/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// Package is a packed item directory ready to be sent to the service.
type Package struct {
	Path        string
	Fingerprint string // Upper-case BLAKE3 over relative paths and contents
	Files       int
	Size        int64
}

// Package zips the content of an item directory into the upload cache and
// fingerprints it. The fingerprint depends only on relative paths and file
// contents, so an untouched directory always yields the same value.
func (e *Engine) Package(item *models.WorkItem, exts []string) (Package, error) {
	files, err := contentFiles(item.LocalPath, exts)
	if err != nil {
		return Package{}, fmt.Errorf("reading %s: %w", item.LocalPath, err)
	}
	if len(files) == 0 {
		return Package{}, fmt.Errorf("%w in %s", ErrEmptyContent, item.LocalPath)
	}

	dir := e.uploadCacheDir(item.Type)
	if !helpers.CheckAndMakeDir(dir) {
		return Package{}, fmt.Errorf("creating upload cache %s", dir)
	}
	name := helpers.ConvertToSlug(filepath.Base(item.LocalPath))
	if name == "" {
		name = "item"
	}
	target := filepath.Join(dir, name+".zip")

	tmp, err := os.CreateTemp(dir, name+"-*.tmp")
	if err != nil {
		return Package{}, fmt.Errorf("creating package for %s: %w", item.Title, err)
	}
	defer func() {
		if _, statErr := os.Stat(tmp.Name()); statErr == nil {
			if removeErr := os.Remove(tmp.Name()); removeErr != nil {
				log.WithError(removeErr).Warnf("Failed to remove temporary package %s", tmp.Name())
			}
		}
	}()

	hasher := blake3.New()
	zw := zip.NewWriter(tmp)
	for _, rel := range files {
		if err := addFile(zw, hasher, item.LocalPath, rel); err != nil {
			zw.Close()
			tmp.Close()
			return Package{}, fmt.Errorf("packing %s: %w", rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return Package{}, fmt.Errorf("finishing package for %s: %w", item.Title, err)
	}
	if err := tmp.Close(); err != nil {
		return Package{}, fmt.Errorf("closing package for %s: %w", item.Title, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return Package{}, fmt.Errorf("moving package into place: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return Package{}, err
	}
	pkg := Package{
		Path:        target,
		Fingerprint: strings.ToUpper(hex.EncodeToString(hasher.Sum(nil))),
		Files:       len(files),
		Size:        info.Size(),
	}
	log.WithFields(log.Fields{"files": pkg.Files, "size": helpers.BytesToSize(uint64(pkg.Size))}).Debugf("Packed %s to %s", item.Title, target)
	return pkg, nil
}

func addFile(zw *zip.Writer, hasher io.Writer, root, rel string) error {
	src, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(rel)
	if err != nil {
		return err
	}
	// NUL-terminated path, then content, then NUL.
	if _, err := io.WriteString(hasher, rel+"\x00"); err != nil {
		return err
	}
	if _, err := io.Copy(io.MultiWriter(w, hasher), src); err != nil {
		return err
	}
	_, err = hasher.Write([]byte{0})
	return err
}
