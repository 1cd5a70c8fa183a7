package config

import (
	"os"
	"path/filepath"

	"github.com/mrz1836/mavsign/internal/constants"
	"github.com/mrz1836/mavsign/internal/errors"
)

// HomeDir returns the mavsign home directory. MAVSIGN_HOME overrides the
// default of ~/.mavsign.
func HomeDir() (string, error) {
	if dir := os.Getenv("MAVSIGN_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.MavsignHome), nil
}

// GlobalConfigPath returns the global configuration file, ~/.mavsign/config.yaml.
func GlobalConfigPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// ProjectConfigPath returns the project configuration file relative to the
// working directory.
func ProjectConfigPath() string {
	return filepath.Join(constants.MavsignHome, constants.ConfigFileName)
}

// DefaultKeyPath returns where the signing key lives when key_file is unset.
func DefaultKeyPath() (string, error) {
	dir, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.KeysDir, constants.KeyFileName), nil
}

// ResolveKeyFile returns cfg's key file, or DefaultKeyPath when unset.
// A leading ~/ expands to the user's home directory.
func (cfg SigningConfig) ResolveKeyFile() (string, error) {
	path := cfg.KeyFile
	if path == "" {
		return DefaultKeyPath()
	}
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get home directory")
		}
		path = filepath.Join(home, path[2:])
	}
	return path, nil
}
