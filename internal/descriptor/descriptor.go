// Package descriptor normalizes a raw runtime-environment mapping into
// a typed record and serializes it canonically, following the
// validation rules of runtime_env.py's RuntimeEnvDict.
package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ray-project/runtimeenv-go/internal/rterrors"
)

// localDevModeEnvVar forces the LocalDev override on, mirroring
// runtime_env.py:198's RAY_RUNTIME_ENV_LOCAL_DEV_MODE check.
const localDevModeEnvVar = "RAY_RUNTIME_ENV_LOCAL_DEV_MODE"

// Descriptor is the normalized runtime-environment record.
type Descriptor struct {
	WorkingDir string
	PyModules  []string
	Pip        string // pre-rendered requirements.txt content, or "" when absent
	Conda      any    // string (named env) or map[string]any (inline YAML), nil when absent
	EnvVars    map[string]string
	URIs       []string

	// Passthrough fields. Unlike WorkingDir, PyModules, Pip, Conda and
	// EnvVars, these are entirely absent from serialization when unset,
	// never forced to an explicit null; URIs is likewise omitted when
	// nil.
	Release  *string
	Commit   *string
	LocalDev *bool
}

// PlatformSupport reports whether pip/conda dependency managers are
// wired in on the current platform. Overridable for tests; defaults to
// true everywhere since this module validates shape only.
var PlatformSupport = func() bool { return true }

// CurrentCommit resolves the host library's build identity, injected
// into Commit when pip/conda is set and the caller didn't supply one
// (runtime_env.py:189-193). Empty string means unknown.
var CurrentCommit = func() string { return "" }

// Normalize validates and normalizes a raw descriptor mapping.
func Normalize(raw map[string]any) (*Descriptor, error) {
	d := &Descriptor{}

	workingDir, err := normalizeWorkingDir(raw)
	if err != nil {
		return nil, err
	}
	d.WorkingDir = workingDir

	if v, ok := raw["py_modules"]; ok {
		mods, err := normalizeStringList(v)
		if err != nil {
			return nil, &rterrors.BadDescriptorError{Field: "py_modules", Err: err}
		}
		d.PyModules = mods
	}

	condaRaw, hasConda := raw["conda"]
	pipRaw, hasPip := raw["pip"]
	if hasConda && condaRaw != nil && hasPip && pipRaw != nil {
		return nil, &rterrors.BadDescriptorError{
			Field: "pip",
			Err:   fmt.Errorf("'pip' and 'conda' fields cannot both be specified; put pip dependencies inside the conda YAML config instead"),
		}
	}

	if !PlatformSupport() {
		if hasConda && condaRaw != nil {
			return nil, &rterrors.UnsupportedError{Field: "conda", Platform: currentPlatform()}
		}
		if hasPip && pipRaw != nil {
			return nil, &rterrors.UnsupportedError{Field: "pip", Platform: currentPlatform()}
		}
	}

	if hasConda && condaRaw != nil {
		conda, err := normalizeConda(condaRaw, workingDir)
		if err != nil {
			return nil, &rterrors.BadDescriptorError{Field: "conda", Err: err}
		}
		d.Conda = conda
	}

	if hasPip && pipRaw != nil {
		pip, err := normalizePip(pipRaw, workingDir)
		if err != nil {
			return nil, &rterrors.BadDescriptorError{Field: "pip", Err: err}
		}
		d.Pip = pip
	}

	if v, ok := raw["env_vars"]; ok && v != nil {
		envVars, err := normalizeEnvVars(v)
		if err != nil {
			return nil, &rterrors.BadDescriptorError{Field: "env_vars", Err: err}
		}
		d.EnvVars = envVars
	}

	if v, ok := raw["uris"]; ok {
		uris, err := normalizeStringList(v)
		if err != nil {
			return nil, &rterrors.BadDescriptorError{Field: "uris", Err: err}
		}
		d.URIs = uris
	}

	normalizePassthrough(raw, d)

	return d, nil
}

func currentPlatform() string {
	return "this platform"
}

func normalizeWorkingDir(raw map[string]any) (string, error) {
	v, ok := raw["working_dir"]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &rterrors.BadDescriptorError{
			Field: "working_dir",
			Err:   fmt.Errorf("must be a string, got %T", v),
		}
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		return "", &rterrors.BadDescriptorError{Field: "working_dir", Err: err}
	}
	return abs, nil
}

func normalizeStringList(v any) ([]string, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list of strings, got %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("list entries must be strings, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func normalizeEnvVars(v any) (map[string]string, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("must be a mapping of string to string, got %T", v)
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("env_vars[%q] must be a string, got %T", k, val)
		}
		out[k] = s
	}
	return out, nil
}

// normalizePip handles both the list-of-dependencies form (joined into
// requirements.txt content) and the path-to-requirements-file form,
// resolved relative to workingDir (see runtime_env.py:143-157).
func normalizePip(v any, workingDir string) (string, error) {
	switch pip := v.(type) {
	case string:
		path := pip
		if workingDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(workingDir, path)
		}
		content, err := os.ReadFile(path) //nolint:gosec // path resolved from caller-supplied descriptor, same trust boundary as working_dir itself
		if err != nil {
			return "", fmt.Errorf("read pip requirements file %s: %w", path, err)
		}
		return string(content), nil
	case []any:
		deps, err := normalizeStringList(pip)
		if err != nil {
			return "", err
		}
		return strings.Join(deps, "\n") + "\n", nil
	default:
		return "", fmt.Errorf("must be a string (requirements file path) or list of strings, got %T", v)
	}
}

// normalizeConda handles the named-environment string form, the
// YAML-path string form (suffix decides interpretation), and the
// inline mapping form.
func normalizeConda(v any, workingDir string) (any, error) {
	switch conda := v.(type) {
	case string:
		ext := filepath.Ext(conda)
		if ext == ".yaml" || ext == ".yml" {
			path := conda
			if workingDir != "" && !filepath.IsAbs(path) {
				path = filepath.Join(workingDir, path)
			}
			data, err := os.ReadFile(path) //nolint:gosec // path resolved from caller-supplied descriptor, same trust boundary as working_dir itself
			if err != nil {
				return nil, fmt.Errorf("read conda YAML file %s: %w", path, err)
			}
			var parsed map[string]any
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return nil, fmt.Errorf("invalid conda YAML file %s: %w", path, err)
			}
			return parsed, nil
		}
		// named preinstalled environment, used as-is.
		return conda, nil
	case map[string]any:
		return conda, nil
	default:
		return nil, fmt.Errorf("must be a string or mapping, got %T", v)
	}
}

func normalizePassthrough(raw map[string]any, d *Descriptor) {
	if v, ok := raw["release"].(string); ok {
		d.Release = &v
	}

	if v, ok := raw["commit"].(string); ok {
		d.Commit = &v
	} else if d.Pip != "" || d.Conda != nil {
		if commit := CurrentCommit(); commit != "" {
			d.Commit = &commit
		}
	}

	localDev, explicit := raw["local_dev"].(bool)
	if os.Getenv(localDevModeEnvVar) != "" {
		localDev = true
		explicit = true
	}
	if explicit {
		d.LocalDev = &localDev
	}
}

// Serialize produces the canonical sorted-key JSON form used as a
// cache key. WorkingDir/PyModules/Pip/Conda/EnvVars always serialize
// (null when unset); Release/Commit/LocalDev are omitted entirely
// when unset. All-null collapses to "{}".
func (d *Descriptor) Serialize() (string, error) {
	m := map[string]any{
		"working_dir": nullable(d.WorkingDir),
		"py_modules":  nullableSlice(d.PyModules),
		"pip":         nullable(d.Pip),
		"conda":       d.Conda,
		"env_vars":    nullableMap(d.EnvVars),
	}
	if d.URIs != nil {
		m["uris"] = d.URIs
	}
	if d.Release != nil {
		m["release"] = *d.Release
	}
	if d.Commit != nil {
		m["commit"] = *d.Commit
	}
	if d.LocalDev != nil {
		m["local_dev"] = *d.LocalDev
	}

	allNull := true
	for _, v := range m {
		if v != nil {
			allNull = false
			break
		}
	}
	if allNull {
		return "{}", nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("serialize descriptor: %w", err)
	}
	return string(data), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableSlice(s []string) any {
	if len(s) == 0 {
		return nil
	}
	return s
}

func nullableMap(m map[string]string) any {
	if len(m) == 0 {
		return nil
	}
	return m
}
