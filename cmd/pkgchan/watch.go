// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/pkgchan/pkgchan/internal/watch"
)

// runWatchMode builds the targets once, then rebuilds them whenever a channel
// file changes. It blocks until ctx is cancelled (e.g., Ctrl+C).
//
// Each change reloads the channel before rebuilding, so edited recipes take
// effect. Only the targets' store entries are discarded; inputs keep theirs
// unless their identity changes.
func runWatchMode(ctx context.Context, app *App, s *session, refs []string) error {
	fmt.Fprintf(app.stdout, "%s Watch mode: initial build of %v\n", VerboseHighlightStyle.Render("→"), refs)
	if err := buildTargets(ctx, app, s, refs, false); err != nil {
		// The user may fix the recipe and save again.
		renderError(app.stderr, commandError(err, "build"), false)
	}

	fmt.Fprintf(app.stdout, "\n%s Watching %v for changes (Ctrl+C to stop)...\n\n", VerboseHighlightStyle.Render("→"), s.dirs)

	w, err := watch.New(watch.Config{
		Roots:  s.dirs,
		Logger: s.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "%s Detected %d change(s). Rebuilding...\n", VerboseHighlightStyle.Render("→"), len(changed))
			if err := s.reload(); err != nil {
				renderError(app.stderr, commandError(err, "reload channels"), false)
			} else if err := buildTargets(ctx, app, s, refs, true); err != nil {
				renderError(app.stderr, commandError(err, "build"), false)
			}
			fmt.Fprintf(app.stdout, "\n%s Watching for changes...\n\n", VerboseHighlightStyle.Render("→"))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	return w.Run(ctx)
}
