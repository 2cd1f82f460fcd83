// Where: internal/builder/tar.go
// What: Build context packaging with source-to-destination path rewriting.
// Why: Dockerfiles and app sources live in different trees than the context layout.
package builder

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// File maps a source path (file or directory) into the build context.
type File struct {
	Source string
	Dest   string
}

// NewFile joins dir and name into a source path.
func NewFile(dir, name, dest string) File {
	return File{Source: filepath.Join(dir, name), Dest: dest}
}

// WriteContext writes a tar stream where every entry under File.Source
// is stored under File.Dest.
func WriteContext(w io.Writer, files []File) error {
	tw := tar.NewWriter(w)
	for _, file := range files {
		if err := addTree(tw, file); err != nil {
			return err
		}
	}
	return tw.Close()
}

func addTree(tw *tar.Writer, file File) error {
	root := filepath.Clean(file.Source)
	if _, err := os.Lstat(root); err != nil {
		return fmt.Errorf("stat %s: %w", file.Source, err)
	}
	dest := strings.TrimPrefix(path.Clean(filepath.ToSlash(file.Dest)), "/")
	return filepath.Walk(root, func(current string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}
		name := dest
		if rel != "." {
			name = path.Join(dest, filepath.ToSlash(rel))
		}
		return addEntry(tw, current, name, info)
	})
}

func addEntry(tw *tar.Writer, source, name string, info os.FileInfo) error {
	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(source)
		if err != nil {
			return fmt.Errorf("readlink %s: %w", source, err)
		}
		link = target
	}
	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("tar header %s: %w", source, err)
	}
	header.Name = name
	if info.IsDir() {
		header.Name += "/"
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("copy %s: %w", source, err)
	}
	return nil
}
