// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// Environment variable names exported to shell phases.
const (
	EnvStaging = "PKGCHAN_STAGING"
	EnvSource  = "PKGCHAN_SOURCE"
	EnvName    = "PKGCHAN_NAME"
	EnvVersion = "PKGCHAN_VERSION"
	EnvBuildID = "PKGCHAN_BUILD_ID"

	envInputPrefix = "PKGCHAN_INPUT_"
	envParamPrefix = "PKGCHAN_PARAM_"
)

// InputVar returns the variable holding the path of the input labelled label.
func InputVar(label string) string { return envInputPrefix + envKey(label) }

// ParamVar returns the variable holding the recipe parameter key.
func ParamVar(key string) string { return envParamPrefix + envKey(key) }

// Environ returns the environment shell phases run with, as sorted KEY=VALUE
// pairs. PATH is the bin directories of the inputs followed by the
// host PATH.
func Environ(env *recipe.PhaseEnv) []string {
	vars := map[string]string{
		EnvStaging:          env.StagingDir,
		EnvSource:           env.SourcePath,
		EnvName:             env.Recipe.Name,
		EnvVersion:          env.Recipe.Version,
		EnvBuildID:          env.BuildID,
		"HOME":              env.StagingDir,
		"LC_ALL":            "C",
		"SOURCE_DATE_EPOCH": "1",
	}

	var path []string
	for _, in := range env.Inputs {
		vars[InputVar(in.Label)] = in.Path
		path = append(path, filepath.Join(in.Path, "bin"))
	}
	if host := os.Getenv("PATH"); host != "" {
		path = append(path, host)
	}
	vars["PATH"] = strings.Join(path, string(os.PathListSeparator))

	for k, v := range env.Params {
		vars[ParamVar(k)] = v
	}

	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}

// envKey upper-cases s and replaces anything outside [A-Z0-9_] with '_'.
func envKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
