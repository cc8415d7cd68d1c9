package driver

import (
	"maps"
	"slices"

	"github.com/yachtsy/yachtsy-mcp-go/internal/config"
)

// APIKeyEnv is the variable that carries the Yachtsy credential to the child.
const APIKeyEnv = "YACHTSY_API_KEY"

// Params describes how to launch the server process.
type Params struct {
	Command string
	Args    []string
	// Env holds overrides applied on top of the parent environment.
	Env map[string]string
}

// Environ returns base followed by the overrides in key order. Later
// entries win when exec de-duplicates the environment.
func (p Params) Environ(base []string) []string {
	env := slices.Clone(base)
	for _, k := range slices.Sorted(maps.Keys(p.Env)) {
		env = append(env, k+"="+p.Env[k])
	}
	return env
}

// Configure loads the client configuration from the environment and derives
// the launch parameters. An unset YACHTSY_API_KEY becomes the placeholder.
func Configure() (Params, *config.Client, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return Params{}, nil, wrap(KindConfiguration, "load config", err)
	}
	return ParamsFromConfig(cfg), cfg, nil
}

// ParamsFromConfig builds Params without touching the environment.
func ParamsFromConfig(cfg *config.Client) Params {
	key := cfg.APIKey
	if key == "" {
		key = config.PlaceholderAPIKey
	}
	return Params{
		Command: cfg.ServerCommand,
		Args:    slices.Clone(cfg.ServerArgs),
		Env:     map[string]string{APIKeyEnv: key},
	}
}
