package os

import (
	"bytes"
	"fmt"
	"os"

	"github.com/creachadair/atomicfile"
)

// EnsureDir creates dir (and any parents) with mode if it does not exist.
func EnsureDir(dir string, mode os.FileMode) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err := os.MkdirAll(dir, mode)
		if err != nil {
			return fmt.Errorf("could not create directory %v: %w", dir, err)
		}
	}
	return nil
}

// FileExists reports whether filePath exists.
func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

// WriteFileAtomic replaces filePath with contents so that readers never
// observe a partially written file.
func WriteFileAtomic(filePath string, contents []byte, mode os.FileMode) error {
	_, err := atomicfile.WriteAll(filePath, bytes.NewReader(contents), mode)
	return err
}
