package service

import (
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/CZERTAINLY/devserver/internal/model"
)

// CommandFromConfig converts the devserver section of a config file.
// Env values starting with $ are expanded from the current environment.
func CommandFromConfig(cfg model.DevServer) Command {
	env := make([]string, 0, len(cfg.Env))
	for _, k := range slices.Sorted(maps.Keys(cfg.Env)) {
		v := cfg.Env[k]
		if strings.HasPrefix(v, "$") {
			v = os.ExpandEnv(v)
		}
		env = append(env, k+"="+v)
	}

	cmd := Command{
		Path: cfg.Path,
		Dir:  cfg.Dir,
		Args: append([]string(nil), cfg.Args...),
		Env:  env,
	}
	if cfg.Stdin != "" {
		cmd.Stdin = strings.NewReader(cfg.Stdin)
	}
	return cmd
}
