// SPDX-License-Identifier: MPL-2.0

package cueutil

import "strconv"

// CUEPath is a JSON-path style location inside a CUE document, such as
// "recipes[0].install[1].dest".
type CUEPath string

// String returns the string representation of the CUEPath.
func (p CUEPath) String() string { return string(p) }

// Field returns the path of a named child field.
func (p CUEPath) Field(name string) CUEPath {
	if p == "" {
		return CUEPath(name)
	}
	return CUEPath(string(p) + "." + name)
}

// Index returns the path of the i-th list element.
func (p CUEPath) Index(i int) CUEPath {
	return CUEPath(string(p) + "[" + strconv.Itoa(i) + "]")
}
