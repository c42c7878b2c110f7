package infra

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// GetWorkDir expands the data directory and makes sure it exists.
func GetWorkDir(dotPath string, path ...string) (string, error) {
	parts := append([]string{dotPath}, path...)
	workDir, err := homedir.Expand(filepath.Join(parts...))
	if err != nil {
		return "", errors.Wrap(err, "expand work dir")
	}
	if err = os.MkdirAll(workDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create work dir")
	}
	return workDir, nil
}

func GetResourcesPath(path ...string) string {
	return filepath.ToSlash(filepath.Join(path...))
}
