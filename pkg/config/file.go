package config

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/treeaudit/pkg/errors"
)

// ReadFile parses the config file at `path` without applying defaults or the
// environment. A missing file results in an errors.NotFoundError.
func ReadFile(path string) (File, error) {
	path, err := homedirExpand(path)
	if err != nil {
		return File{}, errors.WithContext(err, "expand config path")
	}

	file := File{Version: InitialConfigVersion}
	if err := parseConfig(path, &file, SupportedConfigVersion); err != nil {
		return File{}, err
	}
	return file, nil
}

// WriteFile writes `file` to `path`, creating parent directories as needed.
// It returns the path that was written to.
func WriteFile(path string, file File) (string, error) {
	path, err := homedirExpand(path)
	if err != nil {
		return "", errors.WithContext(err, "expand config path")
	}

	if file.Version == "" {
		file.Version = SupportedConfigVersion
	}

	yamlBytes, err := yaml.Marshal(file)
	if err != nil {
		return "", errors.WithContext(err, "marshal")
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.WithContext(err, "make parent directory")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return "", errors.WithContext(err, "write")
	}
	return path, nil
}
