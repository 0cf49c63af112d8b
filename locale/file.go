package locale

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// NormalizeCode lower-cases a language code and maps "_" to "-".
func NormalizeCode(code string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
}

// FileName returns the dictionary file name for a language code.
func FileName(code string) string {
	return NormalizeCode(code) + ".json"
}

// ReadValue reads and decodes a JSON file without flattening it.
func ReadValue(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := Decode(data)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ReadFile reads a dictionary file. Nested files are flattened.
func ReadFile(path string) (*FlatDict, error) {
	v, err := ReadValue(path)
	if err != nil {
		return nil, err
	}
	return FromPairs(Flatten(v)), nil
}

// ReadFileOrEmpty reads a dictionary file, returning an empty dictionary
// when the file does not exist.
func ReadFileOrEmpty(path string) (*FlatDict, error) {
	d, err := ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewFlatDict(), nil
	}
	return d, err
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteFile writes the dictionary atomically: the content goes to a
// temporary file in the same directory which is then renamed over path.
func WriteFile(path string, d *FlatDict) error {
	return WriteFileAtomic(path, d.Marshal())
}

// WriteFileAtomic writes data to path through a temporary file and rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming %s: %w", tmpName, err)
	}
	return nil
}
