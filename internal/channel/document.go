// SPDX-License-Identifier: MPL-2.0

package channel

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type (
	// File is the decoded form of one channel file.
	File struct {
		Recipes []Document `json:"recipes" yaml:"recipes"`
	}

	// Document is the declarative form of a recipe as written in a channel.
	Document struct {
		Name        string                `json:"name" yaml:"name"`
		Version     string                `json:"version" yaml:"version"`
		Synopsis    string                `json:"synopsis,omitempty" yaml:"synopsis,omitempty"`
		Description string                `json:"description,omitempty" yaml:"description,omitempty"`
		Homepage    string                `json:"homepage,omitempty" yaml:"homepage,omitempty"`
		License     string                `json:"license,omitempty" yaml:"license,omitempty"`
		Source      *SourceDocument       `json:"source,omitempty" yaml:"source,omitempty"`
		Inputs      []recipe.InputRef     `json:"inputs,omitempty" yaml:"inputs,omitempty"`
		BuildSystem string                `json:"build_system" yaml:"build_system"`
		Phases      []PhaseDocument       `json:"phases,omitempty" yaml:"phases,omitempty"`
		Params      map[string]string     `json:"params,omitempty" yaml:"params,omitempty"`
		Install     []recipe.InstallEntry `json:"install,omitempty" yaml:"install,omitempty"`
	}

	// SourceDocument holds either the url or the git form of a source.
	SourceDocument struct {
		URL    string `json:"url,omitempty" yaml:"url,omitempty"`
		Git    string `json:"git,omitempty" yaml:"git,omitempty"`
		Commit string `json:"commit,omitempty" yaml:"commit,omitempty"`
		SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	}

	// PhaseDocument is one phase override with its shell script.
	PhaseDocument struct {
		Op     string `json:"op" yaml:"op"`
		Anchor string `json:"anchor,omitempty" yaml:"anchor,omitempty"`
		Name   string `json:"name" yaml:"name"`
		Script string `json:"script,omitempty" yaml:"script,omitempty"`
	}

	// Format selects the encoding used by Encode.
	Format string
)

// Override operations.
const (
	OpInsertAfter  = "insert-after"
	OpInsertBefore = "insert-before"
	OpReplace      = "replace"
	OpDelete       = "delete"
)

// Encode formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Identity returns the identity the document declares.
func (d Document) Identity() recipe.Identity {
	return recipe.Identity{Name: d.Name, Version: d.Version}
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown output format %q (valid: yaml, json)", format)
	}
}
