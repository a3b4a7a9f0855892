package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirName is the per-project data directory looked up by FindDataDir.
const DataDirName = ".synote"

// FindDataDir looks upwards from startDir for a .synote directory, so notes can
// be kept next to a project instead of in the home directory.
func FindDataDir(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if isDir(filepath.Join(dir, DataDirName)) {
			return filepath.Join(dir, DataDirName), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("no %s directory found above %s", DataDirName, abs)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
