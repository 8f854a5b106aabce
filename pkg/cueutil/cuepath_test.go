// SPDX-License-Identifier: MPL-2.0

package cueutil_test

import (
	"testing"

	"github.com/pkgchan/pkgchan/pkg/cueutil"
)

func TestCUEPath_String(t *testing.T) {
	t.Parallel()

	path := cueutil.CUEPath("recipes[0].name")
	if got := path.String(); got != "recipes[0].name" {
		t.Errorf("CUEPath.String() = %q, want %q", got, "recipes[0].name")
	}
}

func TestCUEPath_FieldIndex(t *testing.T) {
	t.Parallel()

	got := cueutil.CUEPath("").Field("recipes").Index(2).Field("install").Index(0)
	if want := cueutil.CUEPath("recipes[2].install[0]"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
