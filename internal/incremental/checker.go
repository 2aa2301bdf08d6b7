package incremental

import (
	"fmt"
	"os"
)

// NeedsUpdate reports whether dest must be regenerated from src: the
// destination is missing or its modification time is older than the source.
func NeedsUpdate(src, dest string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat source: %w", err)
	}
	destInfo, err := os.Stat(dest)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat destination: %w", err)
	}
	if destInfo.IsDir() {
		return true, nil
	}
	return destInfo.ModTime().Before(srcInfo.ModTime()), nil
}
