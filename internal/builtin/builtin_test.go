// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

func handlerCtx(t *testing.T, dir string) (context.Context, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	return WithHandlerContext(t.Context(), &HandlerContext{
		Stdin:     strings.NewReader(""),
		Stdout:    &stdout,
		Stderr:    &bytes.Buffer{},
		Dir:       dir,
		LookupEnv: os.LookupEnv,
	}), &stdout
}

func runScript(t *testing.T, reg *Registry, dir, script string) (string, error) {
	t.Helper()
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "test")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron("PATH=/nonexistent")),
		interp.StdIO(nil, &stdout, &stderr),
		interp.ExecHandlers(reg.ExecHandler),
	)
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	err = runner.Run(t.Context(), prog)
	return stdout.String() + stderr.String(), err
}

func TestDefault_Names(t *testing.T) {
	t.Parallel()

	want := []string{"cat", "chmod", "cp", "gzip", "ln", "mkdir", "mv", "rm", "substitute", "tar", "touch"}
	if got := Default().Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	if err := reg.Register(newLnCommand()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(newLnCommand()); err == nil {
		t.Error("duplicate Register() succeeded")
	}
	if err := reg.Register(&coreCommand{}); err == nil {
		t.Error("Register() of unnamed command succeeded")
	}
	if err := reg.Run(t.Context(), []string{"nope"}); err == nil || !strings.Contains(err.Error(), "command not found") {
		t.Errorf("Run(nope) error = %v", err)
	}
}

func TestExecHandler_RunsBuiltinsWithoutHostPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out, err := runScript(t, Default(), dir, `
mkdir -p share/doc
echo hello > share/doc/README
cp share/doc/README share/doc/README.bak
mv share/doc/README.bak share/NOTES
ln -s doc/README share/link
cat share/link
`)
	if err != nil {
		t.Fatalf("script failed: %v\n%s", err, out)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("output = %q, want hello", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "share", "NOTES")); err != nil {
		t.Errorf("mv did not produce NOTES: %v", err)
	}
	target, err := os.Readlink(filepath.Join(dir, "share", "link"))
	if err != nil || target != "doc/README" {
		t.Errorf("Readlink() = (%q, %v), want relative target", target, err)
	}
}

func TestExecHandler_FailingBuiltinDoesNotFallBack(t *testing.T) {
	t.Parallel()

	out, err := runScript(t, Default(), t.TempDir(), "cat missing-file")
	var status interp.ExitStatus
	if !errors.As(err, &status) || status != 1 {
		t.Fatalf("Run() error = %v, want exit status 1", err)
	}
	if !strings.Contains(out, "[builtin] cat:") {
		t.Errorf("stderr %q lacks builtin prefix", out)
	}
}

func TestExecHandler_UnregisteredFallsThrough(t *testing.T) {
	t.Parallel()

	// With PATH pointing nowhere, the default handler reports "not found".
	_, err := runScript(t, NewRegistry(), t.TempDir(), "mkdir x")
	var status interp.ExitStatus
	if !errors.As(err, &status) || status != 127 {
		t.Fatalf("Run() error = %v, want exit status 127", err)
	}
}

func TestLn(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, _ := handlerCtx(t, dir)
	cmd := newLnCommand()

	if err := cmd.Run(ctx, []string{"ln", "a", "hard"}); err != nil {
		t.Fatalf("ln a hard: %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "hard")); string(data) != "a" {
		t.Errorf("hard link content = %q", data)
	}

	if err := cmd.Run(ctx, []string{"ln", "-s", "a", "soft"}); err != nil {
		t.Fatalf("ln -s a soft: %v", err)
	}
	if err := cmd.Run(ctx, []string{"ln", "-s", "a", "soft"}); err == nil {
		t.Error("ln -s over existing link succeeded without -f")
	}
	if err := cmd.Run(ctx, []string{"ln", "-sf", "hard", "soft"}); err != nil {
		t.Fatalf("ln -sf: %v", err)
	}
	if target, _ := os.Readlink(filepath.Join(dir, "soft")); target != "hard" {
		t.Errorf("soft -> %q, want hard", target)
	}

	if err := cmd.Run(ctx, []string{"ln", "-s", "only-one"}); err == nil {
		t.Error("ln with one operand succeeded")
	}
}

func TestSubstitute(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "launcher.sh")
	content := "#!/bin/sh\nexec /usr/bin/tool --data=/usr/share/tool\n"
	if err := os.WriteFile(file, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	ctx, _ := handlerCtx(t, dir)
	cmd := newSubstituteCommand()

	err := cmd.Run(ctx, []string{"substitute", "launcher.sh", `/usr/(bin|share)`, `/opt/tool/${1}`})
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	got, _ := os.ReadFile(file)
	want := "#!/bin/sh\nexec /opt/tool/bin/tool --data=/opt/tool/share/tool\n"
	if string(got) != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	info, _ := os.Stat(file)
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}

	if err := cmd.Run(ctx, []string{"substitute", "-strict", "launcher.sh", "nomatch", "x"}); err == nil {
		t.Error("-strict substitute with no match succeeded")
	}
	if err := cmd.Run(ctx, []string{"substitute", "launcher.sh", "only-pattern"}); err == nil {
		t.Error("substitute without replacement succeeded")
	}
	if err := cmd.Run(ctx, []string{"substitute", "launcher.sh", "(", "x"}); err == nil {
		t.Error("substitute with invalid regexp succeeded")
	}
}

func TestCoreCommand_Touch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx, _ := handlerCtx(t, dir)
	cmd := newCoreCommand("touch", touchFactory)
	if err := cmd.Run(ctx, []string{"touch", "stamp"}); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "stamp")); err != nil {
		t.Errorf("touch did not create file: %v", err)
	}
}
