package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"farmcopilot/internal/vectorstore"
)

const (
	indexFile   = "index.gob"
	chunksFile  = "chunks.json"
	currentFile = "CURRENT"
	genPrefix   = "corpus-"
)

// Storage keeps each saved corpus in its own generation directory. The
// CURRENT file names the live generation and is replaced by rename, so both
// artifacts become visible in one step.
type Storage struct {
	dir string
}

func NewStorage(dir string) (*Storage, error) {
	if dir == "" {
		return nil, errors.New("file storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file storage: %w", err)
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) Save(ctx context.Context, a vectorstore.Artifacts) error {
	if a.ID == "" || strings.ContainsAny(a.ID, `/\`) || a.ID == "." || a.ID == ".." {
		return fmt.Errorf("file storage: invalid corpus id %q", a.ID)
	}
	chunks, err := json.Marshal(vectorstore.ChunkSet{ID: a.ID, Chunks: a.Chunks})
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	gen := genPrefix + a.ID
	genDir := filepath.Join(s.dir, gen)
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", gen, err)
	}
	if err := os.WriteFile(filepath.Join(genDir, indexFile), a.Index, 0o644); err != nil {
		_ = os.RemoveAll(genDir)
		return fmt.Errorf("write %s: %w", indexFile, err)
	}
	if err := os.WriteFile(filepath.Join(genDir, chunksFile), chunks, 0o644); err != nil {
		_ = os.RemoveAll(genDir)
		return fmt.Errorf("write %s: %w", chunksFile, err)
	}
	if err := writeAtomic(filepath.Join(s.dir, currentFile), []byte(gen+"\n")); err != nil {
		_ = os.RemoveAll(genDir)
		return err
	}
	s.prune(gen)
	return nil
}

func (s *Storage) Load(ctx context.Context) (vectorstore.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return vectorstore.Artifacts{}, err
	}
	cur, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return vectorstore.Artifacts{}, vectorstore.ErrNoArtifacts
	}
	if err != nil {
		return vectorstore.Artifacts{}, fmt.Errorf("read %s: %w", currentFile, err)
	}
	genDir := filepath.Join(s.dir, strings.TrimSpace(string(cur)))

	index, err := os.ReadFile(filepath.Join(genDir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return vectorstore.Artifacts{}, vectorstore.ErrNoArtifacts
	}
	if err != nil {
		return vectorstore.Artifacts{}, fmt.Errorf("read index: %w", err)
	}
	raw, err := os.ReadFile(filepath.Join(genDir, chunksFile))
	if errors.Is(err, fs.ErrNotExist) {
		return vectorstore.Artifacts{}, vectorstore.ErrNoArtifacts
	}
	if err != nil {
		return vectorstore.Artifacts{}, fmt.Errorf("read chunks: %w", err)
	}
	var set vectorstore.ChunkSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return vectorstore.Artifacts{}, fmt.Errorf("decode chunks: %w", err)
	}
	return vectorstore.Artifacts{ID: set.ID, Index: index, Chunks: set.Chunks}, nil
}

// prune removes generations other than keep. Failures only leave garbage.
func (s *Storage) prune(keep string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), genPrefix) && e.Name() != keep {
			_ = os.RemoveAll(filepath.Join(s.dir, e.Name()))
		}
	}
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
