// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

func phaseEnv(t *testing.T) *recipe.PhaseEnv {
	t.Helper()
	return &recipe.PhaseEnv{
		Recipe:     recipe.Identity{Name: "hello", Version: "2.12"},
		BuildID:    "build-1",
		StagingDir: t.TempDir(),
		SourcePath: "/cache/hello.tar.gz",
		Inputs:     []recipe.ResolvedInput{{Label: "gtk+", Path: "/store/gtk-3"}},
		Params:     map[string]string{"configure-flags": "--disable-nls"},
		Stdout:     &bytes.Buffer{},
		Stderr:     &bytes.Buffer{},
		Logger:     logging.Discard(),
	}
}

func TestShell_Environment(t *testing.T) {
	t.Parallel()

	env := phaseEnv(t)
	script := `echo "$PKGCHAN_NAME@$PKGCHAN_VERSION $PKGCHAN_INPUT_GTK_ $PKGCHAN_PARAM_CONFIGURE_FLAGS" > out.txt
[ "$PWD" = "$PKGCHAN_STAGING" ] || exit 3`
	fn, err := NewShell().Compile("build", script)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if err := fn(t.Context(), env); err != nil {
		t.Fatalf("phase error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(env.StagingDir, "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := strings.TrimSpace(string(data)), "hello@2.12 /store/gtk-3 --disable-nls"; got != want {
		t.Errorf("out.txt = %q, want %q", got, want)
	}
}

func TestShell_ErrexitStopsOnFirstFailure(t *testing.T) {
	t.Parallel()

	env := phaseEnv(t)
	err := ShellPhase("false\ntouch reached")(t.Context(), env)
	if err == nil || !strings.Contains(err.Error(), "status 1") {
		t.Fatalf("phase error = %v, want exit status 1", err)
	}
	if _, err := os.Stat(filepath.Join(env.StagingDir, "reached")); err == nil {
		t.Error("script continued after a failing command")
	}
}

func TestShell_BuiltinsRunInProcess(t *testing.T) {
	t.Parallel()

	env := phaseEnv(t)
	script := `mkdir -p opt/app/bin
echo '#!/bin/sh' > opt/app/bin/app
chmod 755 opt/app/bin/app
ln -s app/bin/app opt/launcher`
	if err := ShellPhase(script)(t.Context(), env); err != nil {
		t.Fatalf("phase error = %v", err)
	}
	info, err := os.Stat(filepath.Join(env.StagingDir, "opt", "app", "bin", "app"))
	if err != nil || info.Mode().Perm() != 0o755 {
		t.Errorf("app = (%v, %v), want mode 0755", info, err)
	}
}

func TestShell_CompileSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := NewShell().Compile("configure", "if then fi (")
	var se *ScriptError
	if !errors.As(err, &se) || se.Name != "configure" {
		t.Fatalf("Compile() error = %v, want *ScriptError", err)
	}
	if err := ShellPhase("if then")(t.Context(), phaseEnv(t)); !errors.As(err, &se) {
		t.Errorf("deferred parse error = %v, want *ScriptError", err)
	}
}

func TestEnviron(t *testing.T) {
	t.Parallel()

	env := phaseEnv(t)
	vars := Environ(env)
	if !slices.IsSorted(vars) {
		t.Error("Environ() is not sorted")
	}
	for _, want := range []string{
		"PKGCHAN_NAME=hello",
		"PKGCHAN_VERSION=2.12",
		"PKGCHAN_BUILD_ID=build-1",
		"PKGCHAN_SOURCE=/cache/hello.tar.gz",
		"PKGCHAN_INPUT_GTK_=/store/gtk-3",
		"PKGCHAN_PARAM_CONFIGURE_FLAGS=--disable-nls",
		"PKGCHAN_STAGING=" + env.StagingDir,
	} {
		if !slices.Contains(vars, want) {
			t.Errorf("Environ() lacks %q", want)
		}
	}
	for _, v := range vars {
		if strings.HasPrefix(v, "PATH=") && !strings.HasPrefix(v, "PATH="+filepath.Join("/store/gtk-3", "bin")) {
			t.Errorf("PATH does not start with input bin dir: %q", v)
		}
	}
}

func TestPatch(t *testing.T) {
	t.Parallel()

	env := phaseEnv(t)
	if err := os.MkdirAll(filepath.Join(env.StagingDir, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	launcher := filepath.Join(env.StagingDir, "bin", "launch")
	if err := os.WriteFile(launcher, []byte("exec /usr/lib/app/app\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	env.Params = map[string]string{ParamPatches: "# fix prefix\nbin/launch\t/usr/lib\t/opt\n"}
	if err := Patch(t.Context(), env); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	data, _ := os.ReadFile(launcher)
	if string(data) != "exec /opt/app/app\n" {
		t.Errorf("launcher = %q", data)
	}

	tests := []struct {
		name    string
		patches string
	}{
		{"no match", "bin/launch\tnot-there\tx"},
		{"escape", "../outside\ta\tb"},
		{"missing field", "bin/launch\tonly-pattern"},
	}
	for _, tt := range tests {
		env.Params = map[string]string{ParamPatches: tt.patches}
		if err := Patch(t.Context(), env); err == nil {
			t.Errorf("%s: Patch() succeeded", tt.name)
		}
	}
}
