// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates pkgchan's CUE documents against their embedded
// schemas.
//
// Channel files and the config file share one flow: the schema's root
// definition is unified with the document, the result is validated, and it
// is decoded into a Go value. Schema violations come back as a
// *DocumentError listing every problem with its CUEPath, so callers can
// attribute each one to the recipe or setting it belongs to.
//
//	//go:embed recipe_schema.cue
//	var src []byte
//
//	var channelSchema = cueutil.NewSchema(src, "#Channel")
//
//	file, err := cueutil.Decode[File](channelSchema, data,
//	    cueutil.WithFilename("core.cue"),
//	    cueutil.WithMaxFileSize(limit),
//	)
package cueutil
