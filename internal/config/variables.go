package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/processors"
)

// scriptTimeout bounds one evaluation of a variable script.
const scriptTimeout = 250 * time.Millisecond

var variableName = regexp.MustCompile(`^[\w.\-]+$`)

// ScriptVariable is a placeholder whose value comes from a JavaScript
// expression, for example {name: "greeting", script: "'hi ' + new Date().getFullYear()"}.
type ScriptVariable struct {
	Name   string `yaml:"name" toml:"name"`
	Script string `yaml:"script" toml:"script"`
}

// Validate checks the name and that the script compiles.
func (v ScriptVariable) Validate() error {
	if !variableName.MatchString(v.Name) {
		return fmt.Errorf("invalid variable name %q", v.Name)
	}
	if strings.TrimSpace(v.Script) == "" {
		return fmt.Errorf("variable %q has no script", v.Name)
	}
	if _, err := goja.Compile(v.Name, v.Script, false); err != nil {
		return fmt.Errorf("variable %q: %w", v.Name, err)
	}
	return nil
}

// CompileVariables turns scripted variables into placeholder generators.
// Each call of a generator runs the script in a fresh VM; a failing or
// overrunning script yields an empty string.
func CompileVariables(vars []ScriptVariable) (map[string]processors.Generator, error) {
	out := make(map[string]processors.Generator, len(vars))
	for _, v := range vars {
		prg, err := goja.Compile(v.Name, v.Script, false)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		name := v.Name
		out[name] = func() string {
			s, err := runScript(prg)
			if err != nil {
				log.Warn().Err(err).Str("variable", name).Msg("config: variable script failed")
				return ""
			}
			return s
		}
	}
	return out, nil
}

// Generators returns the built-in variables overlaid with the scripted ones.
func (c *Config) Generators(now func() time.Time) (map[string]processors.Generator, error) {
	scripted, err := CompileVariables(c.Variables)
	if err != nil {
		return nil, err
	}
	return processors.MergeGenerators(processors.DefaultGenerators(now), scripted), nil
}

func runScript(prg *goja.Program) (string, error) {
	vm := goja.New()
	timer := time.AfterFunc(scriptTimeout, func() {
		vm.Interrupt("timeout")
	})
	defer timer.Stop()

	val, err := vm.RunProgram(prg)
	if err != nil {
		return "", err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", nil
	}
	return val.String(), nil
}
