package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultPreviewRows = 200

type uiConfig struct {
	Theme         string   `yaml:"theme,omitempty"`
	Strict        bool     `yaml:"strict,omitempty"`
	HeadingsType  string   `yaml:"headings_type,omitempty"`
	PreviewRows   int      `yaml:"preview_rows,omitempty"`
	ExportCommand []string `yaml:"export_command,omitempty"`
	LogFile       string   `yaml:"log_file,omitempty"`
}

func (c *uiConfig) previewRows() int {
	if c == nil || c.PreviewRows == 0 {
		return defaultPreviewRows
	}
	return c.PreviewRows
}

func loadUIConfig(path string) (*uiConfig, string) {
	if path == "" {
		configDir := resolveConfigDir()
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return &uiConfig{}, filepath.Join(configDir, "ui.yaml")
		}
		path = filepath.Join(configDir, "ui.yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &uiConfig{}, path
	}
	var cfg uiConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &uiConfig{}, path
	}
	return &cfg, path
}

func saveUIConfig(cfg *uiConfig, path string) error {
	if cfg == nil {
		cfg = &uiConfig{}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func resolveConfigDir() string {
	if dir := os.Getenv("FLATVIEW_CONFIG_DIR"); dir != "" {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "flatview")
}
