// Package store owns the directory namespace for uploaded and derived media
// files. It generates collision-resistant filenames and resolves logical
// filenames to filesystem paths and public URLs.
package store

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned when a named artifact does not exist on disk.
var ErrNotFound = errors.New("artifact not found")

// InitError indicates the backing directory could not be created or is not
// writable. This is an environment misconfiguration and fatal at startup.
type InitError struct {
	Dir string
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("storage init failed for %s: %v", e.Dir, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// MediaFile describes a materialized artifact in the store. Immutable once
// created; other components hold only the filename, never ownership.
type MediaFile struct {
	Filename string  `json:"filename"`
	Path     string  `json:"path"`
	URL      string  `json:"url"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration,omitempty"`
}

// Store maps logical filenames onto a single directory and a public URL
// prefix. All methods are safe for concurrent use.
type Store struct {
	root         string
	publicPrefix string
}

// New creates a Store rooted at dir, creating the directory if needed and
// verifying it is writable. The public prefix is the URL mount point for
// direct artifact retrieval (e.g. "/videos").
func New(dir, publicPrefix string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &InitError{Dir: dir, Err: err}
	}

	// A directory we cannot write to is as fatal as one we cannot create.
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return nil, &InitError{Dir: dir, Err: err}
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Store{
		root:         dir,
		publicPrefix: strings.TrimSuffix(publicPrefix, "/"),
	}, nil
}

// Root returns the store's filesystem root so the routing layer can mount
// it for static serving.
func (s *Store) Root() string {
	return s.root
}

// ReserveName produces a filename unique with extremely high probability by
// combining a millisecond timestamp with a random component. Two concurrent
// reservations collide only if they land in the same millisecond AND draw
// the same 1-in-1e9 random value, so no central registry or locking is used.
func (s *Store) ReserveName(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s-%d-%09d%s", prefix, time.Now().UnixMilli(), rand.IntN(1_000_000_000), ext)
}

// Path resolves a logical filename to its absolute path. Only the base name
// is used, so callers cannot escape the store root.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.root, filepath.Base(filename))
}

// URL resolves a logical filename to its public URL.
func (s *Store) URL(filename string) string {
	return s.publicPrefix + "/" + filepath.Base(filename)
}

// Stat returns the on-disk size of an artifact, or ErrNotFound if the file
// was never written (e.g. a processing sub-job produced no output).
func (s *Store) Stat(filename string) (int64, error) {
	info, err := os.Stat(s.Path(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%s: %w", filename, ErrNotFound)
		}
		return 0, err
	}
	return info.Size(), nil
}

// Save materializes an uploaded file into the store under a reserved name
// derived from the original filename's extension.
func (s *Store) Save(r io.Reader, originalName string) (*MediaFile, error) {
	filename := s.ReserveName("upload", filepath.Ext(originalName))
	path := s.Path(filename)

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filename, err)
	}

	size, err := io.Copy(out, r)
	if err != nil {
		out.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing %s: %w", filename, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("finalizing %s: %w", filename, err)
	}

	return &MediaFile{
		Filename: filename,
		Path:     path,
		URL:      s.URL(filename),
		Size:     size,
	}, nil
}

// Resolve builds a MediaFile for an existing artifact, combining Stat with
// path and URL resolution.
func (s *Store) Resolve(filename string) (*MediaFile, error) {
	size, err := s.Stat(filename)
	if err != nil {
		return nil, err
	}
	return &MediaFile{
		Filename: filename,
		Path:     s.Path(filename),
		URL:      s.URL(filename),
		Size:     size,
	}, nil
}
