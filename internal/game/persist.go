package game

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// WorldFileExt is the extension used for persisted worlds.
const WorldFileExt = ".world"

// encMode is the canonical CBOR encoder shared by persistence. Canonical
// mode sorts map keys, so saving the same world twice produces identical
// bytes and load is the exact inverse of save.
var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// worldFile is the on-disk layout of a saved world.
type worldFile struct {
	Counter  uint32    `cbor:"c"`
	Entities EntityMap `cbor:"e"`
	Name     string    `cbor:"n"`
}

// WorldFilePath returns the path a world with the given name saves to.
func WorldFilePath(dir, name string) string {
	return filepath.Join(dir, name+WorldFileExt)
}

// Save writes the world to <dir>/<name>.world, creating the directory if
// needed, and returns the file path. Errors are returned to the caller;
// a failed save never corrupts the in-memory world.
func Save(w *World, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create worlds directory: %w", err)
	}

	data, err := encMode.Marshal(worldFile{
		Counter:  w.Gen.Counter(),
		Entities: w.Entities,
		Name:     w.Name,
	})
	if err != nil {
		return "", fmt.Errorf("encode world %q: %w", w.Name, err)
	}

	path := WorldFilePath(dir, w.Name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write world file: %w", err)
	}
	return path, nil
}

// Load reads a world file written by Save.
func Load(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}

	var file worldFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode world file %q: %w", path, err)
	}

	w := &World{
		Gen:      NewGeneratorAt(file.Counter),
		Entities: file.Entities,
		Name:     file.Name,
	}
	if w.Entities == nil {
		w.Entities = make(EntityMap)
	}
	return w, nil
}
