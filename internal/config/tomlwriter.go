package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileRef records a config file uploaded to the backend.
type ConfigFileRef struct {
	ID       int64  `toml:"id"`
	FileName string `toml:"file_name"`
}

// File represents the structure of tgimport.toml.
type File struct {
	Defaults struct {
		BaseURL  string `toml:"base_url,omitempty"`
		Token    string `toml:"token,omitempty"`
		ConfigID int64  `toml:"config_id,omitempty"`
	} `toml:"defaults"`
	Serve struct {
		Listen   string `toml:"listen,omitempty"`
		Database string `toml:"database,omitempty"`
	} `toml:"serve"`
	Mapping struct {
		ProfileDir string `toml:"profile_dir,omitempty"`
	} `toml:"mapping"`
	ConfigFiles []ConfigFileRef `toml:"config_files,omitempty"`
}

// LoadFile loads tgimport.toml. A missing file returns an error wrapping os.ErrNotExist.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	var cfg File
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveFile writes the config back to disk with config files ordered by id.
func SaveFile(path string, cfg File) error {
	if len(cfg.ConfigFiles) > 1 {
		sort.Slice(cfg.ConfigFiles, func(i, j int) bool {
			return cfg.ConfigFiles[i].ID < cfg.ConfigFiles[j].ID
		})
	}
	buf := bytes.Buffer{}
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// RememberConfigFile records an uploaded config file in tgimport.toml and makes it the default. The file is
// created when it does not exist yet.
func RememberConfigFile(path string, id int64, fileName string) error {
	cfg, err := LoadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = File{}
	}

	refs := cfg.ConfigFiles[:0]
	for _, ref := range cfg.ConfigFiles {
		if ref.ID == id || strings.EqualFold(ref.FileName, fileName) {
			continue
		}
		refs = append(refs, ref)
	}
	cfg.ConfigFiles = append(refs, ConfigFileRef{ID: id, FileName: fileName})
	cfg.Defaults.ConfigID = id

	return SaveFile(path, cfg)
}

// LookupConfigFile finds a remembered config file id by file name, ignoring case.
func (e Env) LookupConfigFile(fileName string) (int64, bool) {
	for _, ref := range e.ConfigFiles {
		if strings.EqualFold(ref.FileName, fileName) {
			return ref.ID, true
		}
	}
	return 0, false
}
