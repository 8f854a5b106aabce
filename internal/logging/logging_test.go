// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format Format
		check  func(t *testing.T, out string)
	}{
		{FormatJSON, func(t *testing.T, out string) {
			var m map[string]any
			if err := json.Unmarshal([]byte(out), &m); err != nil {
				t.Fatalf("output %q is not JSON: %v", out, err)
			}
			if m["recipe"] != "hello@2.12" {
				t.Errorf("recipe field = %v", m["recipe"])
			}
		}},
		{FormatLogfmt, func(t *testing.T, out string) {
			if !strings.Contains(out, "recipe=hello@2.12") {
				t.Errorf("logfmt output %q lacks recipe field", out)
			}
		}},
		{FormatText, func(t *testing.T, out string) {
			if !strings.Contains(out, "phase started") {
				t.Errorf("text output %q lacks message", out)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			l, err := New(&buf, Options{Level: "debug", Format: tt.format})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			l.Info("phase started", "recipe", "hello@2.12")
			tt.check(t, strings.TrimSpace(buf.String()))
		})
	}
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := New(&buf, Options{Level: "warn", Format: FormatLogfmt})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, Options{Format: "xml"}); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("New(xml) error = %v, want ErrInvalidFormat", err)
	}
	if _, err := New(&bytes.Buffer{}, Options{Level: "loud"}); err == nil {
		t.Error("New(loud) succeeded, want error")
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext() without logger returned nil")
	}
	var buf bytes.Buffer
	l, _ := New(&buf, Options{Format: FormatLogfmt})
	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("logger from context did not write: %q", buf.String())
	}
}
