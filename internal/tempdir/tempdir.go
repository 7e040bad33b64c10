// Package tempdir provides scoped per-encode temporary workspaces.
//
// Each workspace gets a unique identifier, so concurrent encodes in one
// process (or across processes sharing a temp root) never collide. The
// caller receives a cleanup function and must invoke it on every exit path.
package tempdir

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// New creates a uniquely named temporary directory with the given prefix.
// It returns the directory path and a cleanup function that removes the
// directory and everything beneath it. Cleanup is idempotent.
func New(prefix string) (string, func() error, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("%s-%s-", prefix, uuid.NewString()))
	if err != nil {
		return "", nil, fmt.Errorf("tempdir: create workspace: %w", err)
	}

	cleanup := func() error {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("tempdir: remove workspace: %w", err)
		}
		return nil
	}
	return dir, cleanup, nil
}
