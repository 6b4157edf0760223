// Package core provides the shared types of the replicator: version
// records, ordered version maps, tarball streams and publish outcomes.
package core

import (
	"context"
	"io"
)

// Outcome is the terminal state of one version during a run.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomePublished
	OutcomeSkippedAlreadyPresent
	OutcomeSkippedConflict
	OutcomeFailed
	// OutcomeWouldPublish is reported instead of publishing in dry-run mode.
	OutcomeWouldPublish
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeSkippedAlreadyPresent:
		return "skipped-already-present"
	case OutcomeSkippedConflict:
		return "skipped-conflict"
	case OutcomeFailed:
		return "failed"
	case OutcomeWouldPublish:
		return "would-publish"
	default:
		return "pending"
	}
}

// Tarball is a live download of a version's package archive.
// It must be consumed or closed exactly once by its holder.
type Tarball struct {
	Body io.ReadCloser
	Size int64 // -1 if unknown
	URL  string
	// Expected holds the checksums the source advertised for the archive.
	Expected Dist

	closed bool
}

// Read reads from the underlying stream.
func (t *Tarball) Read(p []byte) (int, error) {
	return t.Body.Read(p)
}

// Close releases the stream. Calling it more than once is harmless.
func (t *Tarball) Close() error {
	if t == nil || t.closed || t.Body == nil {
		return nil
	}
	t.closed = true
	return t.Body.Close()
}

// Closed reports whether Close has been called.
func (t *Tarball) Closed() bool {
	return t.closed
}

// Source is a registry versions are copied from.
type Source interface {
	// FetchVersions returns the package's versions. A package the registry
	// does not know yields an empty map.
	FetchVersions(ctx context.Context, name string) (*VersionMap, error)

	// FetchTarball opens the archive of rec.
	FetchTarball(ctx context.Context, name string, rec VersionRecord) (*Tarball, error)
}

// Destination is a registry versions are published to.
type Destination interface {
	FetchVersions(ctx context.Context, name string) (*VersionMap, error)

	// Publish uploads meta together with the archive read from tarball.
	// A version the registry already holds is reported as a conflict.
	Publish(ctx context.Context, name string, meta VersionRecord, tarball *Tarball) error
}
