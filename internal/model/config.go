package model

import (
	"context"
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

type Config struct {
	Version   int       `json:"version" yaml:"version"` // fixed 0 for now
	DevServer DevServer `json:"devserver" yaml:"devserver"`
	Service   Service   `json:"service,omitempty" yaml:"service,omitempty"`
}

// DevServer describes the supervised subprocess. Path, Dir and Args are
// passed through to the OS untouched.
type DevServer struct {
	Path    string            `json:"path" yaml:"path"`
	Dir     string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Stdin   string            `json:"stdin,omitempty" yaml:"stdin,omitempty"` // fed once, then the pipe stays open
	Timeout string            `json:"ready_timeout,omitempty" yaml:"ready_timeout,omitempty"`
}

// ReadyTimeout returns the parsed ready_timeout, zero means no limit.
func (d DevServer) ReadyTimeout() (time.Duration, error) {
	if d.Timeout == "" {
		return 0, nil
	}
	t, err := time.ParseDuration(d.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing devserver.ready_timeout: %w", err)
	}
	return t, nil
}

type Service struct {
	Verbose  bool      `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log      string    `json:"log,omitempty" yaml:"log,omitempty"` // "stderr"|"stdout"|"discard"|path
	Announce *Announce `json:"announce,omitempty" yaml:"announce,omitempty"`
}

// Announce lists where the discovered URL is published, stdout when empty.
type Announce struct {
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// DefaultConfig is stored as devserver.yaml when no configuration exists yet.
func DefaultConfig(_ context.Context) Config {
	return Config{
		Version: 0,
		DevServer: DevServer{
			Path:    "npm",
			Dir:     ".",
			Args:    []string{"run", "dev"},
			Timeout: "2m",
		},
		Service: Service{
			Log: LogStderr,
		},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("devserver.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),
		cue.Concrete(true),
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}
	return out, nil
}
