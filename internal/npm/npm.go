// Package npm talks to registries speaking the npm registry protocol:
// reading package documents, downloading version archives and publishing.
package npm

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/regcopy/client"
	"github.com/git-pkgs/regcopy/fetch"
	"github.com/git-pkgs/regcopy/internal/core"
)

const (
	DefaultURL = "https://registry.npmjs.org"
	ecosystem  = "npm"
)

// Maintainer is the identity written into published documents.
type Maintainer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Registry is one npm-protocol registry.
type Registry struct {
	baseURL    string
	client     *client.Client
	fetcher    fetch.FetcherInterface
	resolver   *fetch.Resolver
	urls       *URLs
	maintainer *Maintainer
	logger     *log.Logger
	maxTarball int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithFetcher sets the artifact fetcher used for tarball downloads.
func WithFetcher(f fetch.FetcherInterface) Option {
	return func(r *Registry) {
		r.fetcher = f
	}
}

// WithMaintainer sets the identity recorded as maintainer on publish.
func WithMaintainer(m Maintainer) Option {
	return func(r *Registry) {
		r.maintainer = &m
	}
}

// WithLogger sets the logger for request level debug output.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithMaxTarballSize bounds the archive size accepted for publishing.
func WithMaxTarballSize(n int64) Option {
	return func(r *Registry) {
		r.maxTarball = n
	}
}

// New returns a registry rooted at baseURL. A nil c uses client.DefaultClient.
func New(baseURL string, c *client.Client, opts ...Option) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if c == nil {
		c = client.DefaultClient()
	}
	r := &Registry{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     c,
		logger:     log.Default(),
		maxTarball: defaultMaxTarballSize,
	}
	r.urls = &URLs{baseURL: r.baseURL}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		r.fetcher = fetch.NewFetcher()
	}
	r.resolver = fetch.NewResolver(r.urls)
	return r
}

func (r *Registry) Ecosystem() string {
	return ecosystem
}

// BaseURL returns the registry root without a trailing slash.
func (r *Registry) BaseURL() string {
	return r.baseURL
}

func (r *Registry) URLs() client.URLBuilder {
	return r.urls
}

// FetchVersions reads the package document and returns its versions in
// registry order. A package the registry does not have yields an empty map.
func (r *Registry) FetchVersions(ctx context.Context, name string) (*core.VersionMap, error) {
	doc, err := r.fetchDocument(ctx, r.urls.Package(name))
	if err != nil {
		if client.KindOf(err) == client.KindNotFound {
			r.logger.Debug("package not found", "registry", r.baseURL, "package", name)
			return core.NewVersionMap(), nil
		}
		return nil, fmt.Errorf("fetching %s from %s: %w", name, r.baseURL, err)
	}
	r.logger.Debug("fetched package", "registry", r.baseURL, "package", name, "versions", doc.Versions.Len())
	return doc.Versions, nil
}

func (r *Registry) fetchDocument(ctx context.Context, url string) (*core.Document, error) {
	body, err := r.client.GetBody(ctx, url)
	if err != nil {
		return nil, err
	}
	return core.ParseDocument(body)
}

// FetchTarball opens the archive of rec. The advertised dist.tarball is
// used when present, otherwise the registry's conventional location.
func (r *Registry) FetchTarball(ctx context.Context, name string, rec core.VersionRecord) (*core.Tarball, error) {
	dist, err := rec.Dist()
	if err != nil {
		return nil, fmt.Errorf("%s@%s: %w", name, rec.Version(), err)
	}
	info, err := r.resolver.Resolve(name, rec.Version(), dist.Tarball, dist.Integrity)
	if err != nil {
		return nil, fmt.Errorf("%s@%s: %w", name, rec.Version(), err)
	}

	r.logger.Debug("downloading tarball", "package", name, "version", rec.Version(), "url", info.URL)
	artifact, err := r.fetcher.Fetch(ctx, info.URL)
	if client.KindOf(err) == client.KindNotFound {
		return nil, fmt.Errorf("downloading %s: %w", info.URL,
			&client.NotFoundError{Ecosystem: r.Ecosystem(), Name: name, Version: rec.Version()})
	}
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", info.URL, err)
	}
	return &core.Tarball{
		Body:     artifact.Body,
		Size:     artifact.Size,
		URL:      info.URL,
		Expected: dist,
	}, nil
}
