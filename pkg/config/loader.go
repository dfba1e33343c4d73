package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
)

// schema is the CUE schema the user's configuration is unified with.
// Unification rejects unknown fields and wrong types before decoding.
const schema = `
#Runtime: {
	kind:                 string & !=""
	version:              string | *""
	display_name:         string | *""
	frameworks_dir:       string & !=""
	packages_dir:         string | *""
	metadata_cache_path:  string | *""
	tool_paths:           [...string] | *[]
	environment:          {[string]: string}
}

#Telemetry: {
	log_level:        "trace" | "debug" | "info" | "warn" | "error" | "fatal" | *"info"
	log_format:       "console" | "json" | *"console"
	metrics_enabled:  bool | *false
	metrics_listen:   string | *":9090"
	tracing_enabled:  bool | *false
	tracing_exporter: "otlp" | "stdout" | "none" | *"stdout"
	tracing_endpoint: string | *""
}

runtime:   #Runtime
telemetry: #Telemetry
`

// Loader parses engine configuration files.
type Loader struct {
	ctx      *cue.Context
	validate *validator.Validate
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{
		ctx:      cuecontext.New(),
		validate: validator.New(),
	}
}

// Load reads, unifies and decodes the configuration at path.
func (l *Loader) Load(path string) (*EngineConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return l.LoadBytes(content)
}

// LoadBytes parses configuration from raw CUE source.
func (l *Loader) LoadBytes(content []byte) (*EngineConfig, error) {
	schemaVal := l.ctx.CompileString(schema)
	if err := schemaVal.Err(); err != nil {
		return nil, fmt.Errorf("internal schema error: %w", err)
	}

	val := l.ctx.CompileBytes(content)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	unified := schemaVal.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config failed schema validation: %w", err)
	}

	cfg := &EngineConfig{}
	if err := unified.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := l.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
