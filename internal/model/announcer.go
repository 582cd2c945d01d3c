package model

import "context"

// Announcer publishes the discovered dev server URL to the hosting application.
type Announcer interface {
	Announce(ctx context.Context, u URL) error
}

type AnnounceCloser interface {
	Announcer
	Close() error
}
