// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the persistent flags. Zero values are left unset.
type fileConfig struct {
	Port           string `yaml:"port"`
	Baud           int    `yaml:"baud"`
	URL            string `yaml:"url"`
	Username       string `yaml:"username"`
	NoSSLVerify    bool   `yaml:"no_ssl_verify"`
	NoLengthPrefix bool   `yaml:"no_length_prefix"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
}

func readConfigFile(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyTo sets every flag the config gives a value for, unless the flag
// was set on the command line.
func (c fileConfig) applyTo(fs *pflag.FlagSet) error {
	values := map[string]string{}
	if c.Port != "" {
		values["port"] = c.Port
	}
	if c.Baud != 0 {
		values["baud"] = strconv.Itoa(c.Baud)
	}
	if c.URL != "" {
		values["url"] = c.URL
	}
	if c.Username != "" {
		values["username"] = c.Username
	}
	if c.NoSSLVerify {
		values["no-ssl-verify"] = "true"
	}
	if c.NoLengthPrefix {
		values["no-length-prefix"] = "true"
	}
	if c.LogLevel != "" {
		values["log-level"] = c.LogLevel
	}
	if c.LogFile != "" {
		values["log-file"] = c.LogFile
	}

	for name, value := range values {
		if fs.Changed(name) {
			continue
		}
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("config %s: %w", name, err)
		}
	}
	return nil
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if configPath == "" {
		return nil
	}
	cfg, err := readConfigFile(configPath)
	if err != nil {
		return err
	}
	return cfg.applyTo(cmd.Flags())
}
