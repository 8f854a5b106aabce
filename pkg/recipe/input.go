// SPDX-License-Identifier: MPL-2.0

package recipe

type (
	// InputRef declares a dependency on another recipe. An empty Label defaults to
	// Name; an empty Version selects the newest registered version.
	InputRef struct {
		Label   string `json:"label,omitempty" yaml:"label,omitempty"`
		Name    string `json:"name" yaml:"name"`
		Version string `json:"version,omitempty" yaml:"version,omitempty"`
	}

	// ResolvedInput is a realized input: its label and the absolute path of the
	// built artifact.
	ResolvedInput struct {
		Label string `json:"label" toml:"label"`
		Path  string `json:"path" toml:"path"`
	}
)

// EffectiveLabel returns Label, or Name when no label was given.
func (r InputRef) EffectiveLabel() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Name
}

// String returns "label=name[@version]".
func (r InputRef) String() string {
	s := r.EffectiveLabel() + "=" + r.Name
	if r.Version != "" {
		s += "@" + r.Version
	}
	return s
}
