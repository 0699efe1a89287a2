// ABOUTME: Errors surfaced by the mixgraph engine
// ABOUTME: ErrDisposed is the only error playback control returns
package mixgraph

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned by any operation on a disposed store, mixer or channel
var ErrDisposed = errors.New("mixgraph: use of disposed component")

func disposedError(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrDisposed, kind, id)
}
