package engine

import (
	"context"
	"io"

	"github.com/datallboy/bossfetch/internal/domain"
)

//go:generate mockgen -source=mirror.go -destination=mocks/mock_mirror.go -package=mocks

// Mirror transfers one item into local storage and returns its size in bytes.
// Implementations must abort an in-flight transfer when ctx is cancelled.
type Mirror interface {
	Fetch(ctx context.Context, item domain.RemoteItem) (int64, error)
}

// MirrorFactory builds a fresh Mirror for every worker. Workers never share
// a client instance.
type MirrorFactory func() (Mirror, error)

func closeMirror(m Mirror) {
	if c, ok := m.(io.Closer); ok {
		_ = c.Close()
	}
}
