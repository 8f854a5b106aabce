// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkgchan/pkgchan/internal/builtin"
	"github.com/pkgchan/pkgchan/pkg/fspath"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// ParamPatches holds the substitutions of the default patch phase, one per
// line: FILE<TAB>REGEXP<TAB>REPLACEMENT. FILE is relative to the staging root.
const ParamPatches = "patches"

// Patch is the default patch phase. Every substitution must match at least once.
func Patch(_ context.Context, env *recipe.PhaseEnv) error {
	patches := env.Params[ParamPatches]
	if strings.TrimSpace(patches) == "" {
		return nil
	}
	for n, line := range strings.Split(patches, "\n") {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return fmt.Errorf("param %s line %d: want FILE<TAB>REGEXP<TAB>REPLACEMENT, got %d field(s)",
				ParamPatches, n+1, len(fields))
		}
		file, err := fspath.SafeJoin(env.StagingDir, fields[0])
		if err != nil {
			return fmt.Errorf("param %s line %d: %w", ParamPatches, n+1, err)
		}
		env.Logger.Debug("substituting", "file", fields[0], "pattern", fields[1])
		if err := builtin.SubstituteFile(file, fields[1:], true); err != nil {
			return fmt.Errorf("param %s line %d: %w", ParamPatches, n+1, err)
		}
	}
	return nil
}
