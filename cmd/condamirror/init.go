package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

const configHeader = `# condamirror configuration.
#
# subdirs:         platform partitions to mirror
# local:           existing mirror to diff against (omit for a full patch)
# patches:         where dated patch directories are written
# python_versions: interpreter series worth keeping (omit for all)
# channels:        upstream channels with optional include/exclude match specs
`

// starterConfig mirrors Config with the timeout as text, the way the file
// spells it.
type starterConfig struct {
	Subdirs        []string        `yaml:"subdirs"`
	Local          string          `yaml:"local"`
	Patches        string          `yaml:"patches"`
	PythonVersions []string        `yaml:"python_versions"`
	Channels       []ChannelConfig `yaml:"channels"`
	Timeout        string          `yaml:"timeout"`
	Concurrency    int             `yaml:"concurrency"`
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "config.yml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	starter := starterConfig{
		Subdirs:        []string{"linux-64", "noarch"},
		Local:          "mirror",
		Patches:        "patches",
		PythonVersions: []string{"3.11", "3.12"},
		Channels: []ChannelConfig{{
			URL:     "https://conda.anaconda.org/conda-forge",
			Include: []string{"numpy", "scipy >=1.10"},
		}},
		Timeout:     "30s",
		Concurrency: 8,
	}
	body, err := yaml.Marshal(starter)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(configHeader), body...), 0o644); err != nil {
		return err
	}
	logger.Info("wrote starter config", "path", path)
	return nil
}
