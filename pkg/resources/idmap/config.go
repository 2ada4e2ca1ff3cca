package idmap

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ScanConfig is the yaml form of a scan invocation. Flags given on the
// command line win over values loaded from a file.
type ScanConfig struct {
	InputDirectories []string `yaml:"input_directories"`
	OutputDirectory  string   `yaml:"output_directory"`
	TargetApkPath    string   `yaml:"target_apk_path"`
	OverridePolicies []string `yaml:"override_policies"`
}

// LoadScanConfig reads a scan configuration file.
func LoadScanConfig(path string) (*ScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scan config %s", path)
	}
	var cfg ScanConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse scan config %s", path)
	}
	return &cfg, nil
}

// Policies parses the configured override policy names.
func (c *ScanConfig) Policies() (PolicyFlags, error) {
	if len(c.OverridePolicies) == 0 {
		return 0, nil
	}
	return ParsePolicies(strings.Join(c.OverridePolicies, "|"))
}
