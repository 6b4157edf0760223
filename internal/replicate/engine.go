// Package replicate copies missing package versions from one registry to
// another.
//
// Packages are processed in the order given and versions in the order the
// source registry lists them, one at a time. A version the destination
// already has is skipped, a publish the destination rejects as a duplicate
// is skipped, and any other failure stops the run.
package replicate

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/regcopy/client"
	"github.com/git-pkgs/regcopy/internal/core"
)

// Engine replays versions from a source registry onto a destination.
type Engine struct {
	source core.Source
	dest   core.Destination
	dryRun bool
	logger *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDryRun reports what would be copied without downloading archives or
// publishing.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) {
		e.dryRun = dryRun
	}
}

// WithLogger sets the logger progress lines are written to.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine returns an engine copying from src to dst.
func NewEngine(src core.Source, dst core.Destination, opts ...Option) *Engine {
	e := &Engine{
		source: src,
		dest:   dst,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run copies every package in order and stops at the first failure. The
// report covers all work done, including the failed version.
func (e *Engine) Run(ctx context.Context, packages []string) (*Report, error) {
	report := &Report{DryRun: e.dryRun}
	if e.dryRun {
		e.logger.Info("dry run: nothing will be published")
	}

	for _, name := range packages {
		pr, err := e.SyncPackage(ctx, name)
		report.Packages = append(report.Packages, pr)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// SyncPackage copies the versions of name the destination is missing.
func (e *Engine) SyncPackage(ctx context.Context, name string) (*PackageReport, error) {
	pr := &PackageReport{Name: name}

	srcVersions, err := e.source.FetchVersions(ctx, name)
	if err != nil {
		return pr, fmt.Errorf("%s: reading source: %w", name, err)
	}
	dstVersions, err := e.dest.FetchVersions(ctx, name)
	if err != nil {
		return pr, fmt.Errorf("%s: reading destination: %w", name, err)
	}

	missing := make(map[string]struct{})
	for _, v := range Diff(srcVersions, dstVersions) {
		missing[v] = struct{}{}
	}
	e.logger.Debug("computed version diff", "package", name,
		"source", srcVersions.Len(), "destination", dstVersions.Len(), "missing", len(missing))

	for _, version := range srcVersions.Versions() {
		if _, ok := missing[version]; !ok {
			pr.add(version, core.OutcomeSkippedAlreadyPresent, nil)
			e.logger.Infof("%s@%s already exists on destination", name, version)
			continue
		}
		if err := ctx.Err(); err != nil {
			return pr, err
		}

		rec, _ := srcVersions.Get(version)
		outcome, err := e.replay(ctx, name, version, rec)
		pr.add(version, outcome, err)
		if err != nil {
			return pr, err
		}
	}
	return pr, nil
}

// replay takes one missing version through sanitize, download and publish.
func (e *Engine) replay(ctx context.Context, name, version string, rec core.VersionRecord) (core.Outcome, error) {
	meta := Sanitize(rec)
	if err := ValidatePublishable(name, version, meta); err != nil {
		return core.OutcomeFailed, err
	}

	if e.dryRun {
		e.logger.Infof("%s@%s would be cloned", name, version)
		return core.OutcomeWouldPublish, nil
	}

	tarball, err := e.source.FetchTarball(ctx, name, rec)
	if err != nil {
		return core.OutcomeFailed, fmt.Errorf("%s@%s: %w", name, version, err)
	}

	err = e.dest.Publish(ctx, name, meta, tarball)
	if closeErr := tarball.Close(); closeErr != nil {
		e.logger.Debug("closing tarball", "url", tarball.URL, "err", closeErr)
	}

	switch {
	case err == nil:
		e.logger.Infof("%s@%s cloned", name, version)
		return core.OutcomePublished, nil
	case client.KindOf(err) == client.KindConflict:
		e.logger.Warnf("%s@%s already exists on the destination, skipping.", name, version)
		return core.OutcomeSkippedConflict, nil
	default:
		return core.OutcomeFailed, fmt.Errorf("%s@%s: %w", name, version, err)
	}
}
