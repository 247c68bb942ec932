package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var projectRoot = sync.OnceValues(findProjectRoot)

// GetProjectRoot returns the directory holding the module's go.mod.
func GetProjectRoot() (string, error) {
	return projectRoot()
}

func findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	start := filepath.Dir(filename)
	for dir := start; ; {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find go.mod above %s", start)
		}
		dir = parent
	}
}

// TestDataPath joins elem onto the module's testdata directory.
func TestDataPath(t *testing.T, elem ...string) string {
	t.Helper()

	root, err := GetProjectRoot()
	require.NoError(t, err, "Failed to find project root")
	return filepath.Join(append([]string{root, "testdata"}, elem...)...)
}

// GetTestDataDir returns the path to the testdata directory.
func GetTestDataDir(t *testing.T) string {
	t.Helper()
	return TestDataPath(t)
}

// GetTestImageDir returns testdata/images/<category>.
func GetTestImageDir(t *testing.T, category string) string {
	t.Helper()
	return TestDataPath(t, "images", category)
}

// GetFixturesDir returns the path to the scene fixtures.
func GetFixturesDir(t *testing.T) string {
	t.Helper()
	return TestDataPath(t, "fixtures")
}

// CreateTempDir returns a per-test scratch directory.
func CreateTempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// WriteSceneDir renders every standard scene into a fresh temporary
// directory and returns its path.
func WriteSceneDir(t *testing.T) string {
	t.Helper()

	dir := CreateTempDir(t)
	for _, s := range StandardScenes() {
		img, _ := GenerateScene(s.Config)
		SaveImage(t, img, filepath.Join(dir, s.Name+".png"))
	}
	return dir
}

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
