// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"context"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// Base sequence names of DefaultCatalog.
const (
	SequenceGNU     = "gnu"
	SequenceBinary  = "binary"
	SequenceCopy    = "copy"
	SequenceTrivial = "trivial"
)

// Default shell snippets of the gnu sequence. Each is a no-op when the
// unpacked tree has nothing to run.
const (
	configureScript = `if [ -x ./configure ]; then
  ./configure --prefix="${PKGCHAN_PARAM_PREFIX:-/usr}" ${PKGCHAN_PARAM_CONFIGURE_FLAGS}
fi`
	buildScript = `if [ -f Makefile ] || [ -f makefile ] || [ -f GNUmakefile ]; then
  make ${PKGCHAN_PARAM_MAKE_FLAGS}
fi`
	checkScript = `if [ "${PKGCHAN_PARAM_TESTS:-true}" = true ] && [ -f Makefile ] && grep -q '^check:' Makefile; then
  make check
fi`
	installScript = `if [ -f Makefile ] || [ -f makefile ] || [ -f GNUmakefile ]; then
  make install DESTDIR="$PKGCHAN_STAGING/destdir"
fi`
)

// DefaultCatalog returns the built-in base sequences. sh runs the gnu
// sequence's shell snippets; a nil sh uses NewShell().
//
//	gnu:     unpack patch configure build check install
//	binary:  unpack patch install
//	copy:    unpack install
//	trivial: build
//
// Only gnu strips the top-level directory of source archives by default.
// The binary and copy install phases do nothing: their output comes entirely
// from the recipe's install plan.
func DefaultCatalog(sh *Shell) recipe.Catalog {
	if sh == nil {
		sh = NewShell()
	}
	return recipe.Catalog{
		SequenceGNU: {Name: SequenceGNU, Phases: []recipe.Phase{
			{Name: "unpack", Fn: Unpack(1)},
			{Name: "patch", Fn: Patch},
			{Name: "configure", Fn: sh.Phase(configureScript)},
			{Name: "build", Fn: sh.Phase(buildScript)},
			{Name: "check", Fn: sh.Phase(checkScript)},
			{Name: "install", Fn: sh.Phase(installScript)},
		}},
		SequenceBinary: {Name: SequenceBinary, Phases: []recipe.Phase{
			{Name: "unpack", Fn: Unpack(0)},
			{Name: "patch", Fn: Patch},
			{Name: "install", Fn: noop},
		}},
		SequenceCopy: {Name: SequenceCopy, Phases: []recipe.Phase{
			{Name: "unpack", Fn: Unpack(0)},
			{Name: "install", Fn: noop},
		}},
		SequenceTrivial: {Name: SequenceTrivial, Phases: []recipe.Phase{
			{Name: "build", Fn: noop},
		}},
	}
}

func noop(context.Context, *recipe.PhaseEnv) error { return nil }
