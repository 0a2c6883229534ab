package agentlink

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/pilotdesk/agentlink-go/internal/config"
)

// optionsFile is the YAML schema for a client configuration file. Pointer
// fields distinguish "absent" from a zero value so the documented defaults
// survive a partial file.
type optionsFile struct {
	Executable       string            `yaml:"executable"`
	Args             []string          `yaml:"args"`
	Cwd              string            `yaml:"cwd"`
	Env              map[string]string `yaml:"env"`
	Transport        string            `yaml:"transport"`
	Port             int               `yaml:"port"`
	LogLevel         string            `yaml:"logLevel"`
	AutoStart        *bool             `yaml:"autoStart"`
	AutoRestart      *bool             `yaml:"autoRestart"`
	ReadyTimeout     string            `yaml:"readyTimeout"`
	Model            string            `yaml:"model"`
	QueryTimeout     string            `yaml:"queryTimeout"`
	IncludeEphemeral *bool             `yaml:"includeEphemeral"`
}

// LoadOptionsFile reads a YAML configuration file and converts it into
// functional options, ready to pass to NewClient or Query. Options built from
// code can be appended after the loaded ones to override file values.
//
// Example file:
//
//	executable: /usr/local/bin/agentd
//	transport: tcp
//	logLevel: debug
//	queryTimeout: 90s
//	env:
//	  AGENT_HOME: /var/lib/agentd
//
// Durations use Go syntax ("10s", "1m30s").
func LoadOptionsFile(path string) ([]Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}

	var file optionsFile

	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse options file: %w", err)
	}

	return file.toOptions()
}

// toOptions converts the parsed file into functional options, validating
// enumerated and duration fields.
func (f *optionsFile) toOptions() ([]Option, error) {
	var opts []Option

	if f.Executable != "" {
		opts = append(opts, WithExecutable(f.Executable))
	}

	if len(f.Args) > 0 {
		opts = append(opts, WithArgs(f.Args...))
	}

	if f.Cwd != "" {
		opts = append(opts, WithCwd(f.Cwd))
	}

	if len(f.Env) > 0 {
		opts = append(opts, WithEnv(f.Env))
	}

	switch f.Transport {
	case "":
	case string(config.TransportStdio):
		opts = append(opts, WithStdio())
	case string(config.TransportTCP):
		if f.Port > 0 {
			opts = append(opts, WithTCPPort(f.Port))
		} else {
			opts = append(opts, WithTCP())
		}
	default:
		return nil, fmt.Errorf("unknown transport %q", f.Transport)
	}

	if f.LogLevel != "" {
		opts = append(opts, WithLogLevel(f.LogLevel))
	}

	if f.AutoStart != nil {
		opts = append(opts, WithAutoStart(*f.AutoStart))
	}

	if f.AutoRestart != nil {
		opts = append(opts, WithAutoRestart(*f.AutoRestart))
	}

	if f.ReadyTimeout != "" {
		d, err := time.ParseDuration(f.ReadyTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse readyTimeout: %w", err)
		}

		opts = append(opts, WithReadyTimeout(d))
	}

	if f.Model != "" {
		opts = append(opts, WithModel(f.Model))
	}

	if f.QueryTimeout != "" {
		d, err := time.ParseDuration(f.QueryTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse queryTimeout: %w", err)
		}

		opts = append(opts, WithQueryTimeout(d))
	}

	if f.IncludeEphemeral != nil {
		opts = append(opts, WithIncludeEphemeral(*f.IncludeEphemeral))
	}

	return opts, nil
}
