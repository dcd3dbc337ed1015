package scbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const configFileName = "scb.config"

// Config is the fixed FTP connection record loaded from scb.config. It is
// immutable after LoadConfig.
type Config struct {
	Server   string `json:"-"`
	User     string `json:"-"`
	Password string `json:"-"`
}

// configFile mirrors the on-disk JSON shape:
//
//	{ "FTP": { "ftp_server": "...", "ftp_user": "...", "ftp_password": "..." } }
type configFile struct {
	FTP struct {
		Server   string `json:"ftp_server"`
		User     string `json:"ftp_user"`
		Password string `json:"ftp_password"`
	} `json:"FTP"`
}

// FindProjectRoot walks upward from dir looking for scb.config, returning the
// directory that contains it. Returns ErrConfigNotFound if no ancestor has one.
func FindProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}
		dir = parent
	}
}

// LoadConfig reads and parses scb.config from projectRoot.
func LoadConfig(projectRoot string) (Config, error) {
	raw, err := os.ReadFile(filepath.Join(projectRoot, configFileName))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
	}
	var cf configFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if cf.FTP.Server == "" {
		return Config{}, fmt.Errorf("%w: missing FTP.ftp_server", ErrConfigInvalid)
	}
	return Config{
		Server:   cf.FTP.Server,
		User:     cf.FTP.User,
		Password: cf.FTP.Password,
	}, nil
}
