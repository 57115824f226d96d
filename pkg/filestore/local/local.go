// Package local stores task files under a directory of the local disk.
package local

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

type Store struct {
	root  string
	debug bool
}

func New(root string, debug bool) *Store {
	if root == "" {
		root = "."
	}
	return &Store{root: root, debug: debug}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

func (s *Store) Upload(ctx context.Context, path, name string) error {
	dst := s.path(name)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("local: couldn't create directory of %s: %w", dst, err)
	}
	if err := copyFile(path, dst); err != nil {
		return fmt.Errorf("local: couldn't store %s: %w", name, err)
	}
	if s.debug {
		log.Printf("local: stored %s\n", dst)
	}
	return nil
}

func (s *Store) Download(ctx context.Context, path, name string) error {
	if err := copyFile(s.path(name), path); err != nil {
		return fmt.Errorf("local: couldn't retrieve %s: %w", name, err)
	}
	return nil
}

// copyFile writes to a temp file first so readers never see a partial file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst))
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
