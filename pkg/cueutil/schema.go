// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultMaxFileSize bounds the documents Decode accepts unless
// WithMaxFileSize says otherwise.
const DefaultMaxFileSize int64 = 5 << 20

type (
	// Schema is embedded CUE source together with the definition documents
	// are unified with, such as "#Channel".
	Schema struct {
		src        []byte
		definition string
	}

	// Option configures Decode.
	Option func(*decodeOptions)

	decodeOptions struct {
		filename    string
		maxFileSize int64
		partial     bool
	}
)

// NewSchema returns the schema rooted at definition within src.
func NewSchema(src []byte, definition string) Schema {
	return Schema{src: src, definition: definition}
}

// WithFilename names the document in positions and errors.
func WithFilename(name string) Option {
	return func(o *decodeOptions) { o.filename = name }
}

// WithMaxFileSize rejects documents larger than n bytes. Values below 1
// keep DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(o *decodeOptions) {
		if n > 0 {
			o.maxFileSize = n
		}
	}
}

// WithPartial accepts documents whose optional fields stay unset. The config
// file is decoded this way; channel files must be concrete.
func WithPartial() Option {
	return func(o *decodeOptions) { o.partial = true }
}

// Decode validates data against s and decodes the unified value into a T.
func Decode[T any](s Schema, data []byte, opts ...Option) (*T, error) {
	o := decodeOptions{filename: "<input>", maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(&o)
	}

	if size := int64(len(data)); size > o.maxFileSize {
		return nil, &FileTooLargeError{File: o.filename, Size: size, Limit: o.maxFileSize}
	}

	ctx := cuecontext.New()
	root := ctx.CompileBytes(s.src).LookupPath(cue.ParsePath(s.definition))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("schema %s: %w", s.definition, err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := doc.Err(); err != nil {
		return nil, newDocumentError(o.filename, err)
	}
	unified := root.Unify(doc)
	if err := unified.Validate(cue.Concrete(!o.partial)); err != nil {
		return nil, newDocumentError(o.filename, err)
	}

	var out T
	if err := unified.Decode(&out); err != nil {
		return nil, newDocumentError(o.filename, err)
	}
	return &out, nil
}
