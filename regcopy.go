// Package regcopy copies published package versions between npm-protocol
// registries.
//
// For each named package it compares the versions on a source registry with
// those on a destination, and publishes every missing version (metadata and
// tarball) to the destination in the order the source lists them.
//
// Basic usage:
//
//	report, err := regcopy.Sync(ctx, regcopy.Config{
//		From:     regcopy.EndpointConfig{URL: "https://registry.npmjs.org", Token: fromToken},
//		To:       regcopy.EndpointConfig{URL: "https://pkgs.example.com/npm/", Username: "ci", Password: pw},
//		Packages: []string{"left-pad", "@babel/core"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(report.Count(regcopy.Published), "versions copied")
package regcopy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/purl"
	"github.com/go-playground/validator/v10"

	"github.com/git-pkgs/regcopy/client"
	"github.com/git-pkgs/regcopy/fetch"
	"github.com/git-pkgs/regcopy/internal/auth"
	"github.com/git-pkgs/regcopy/internal/core"
	"github.com/git-pkgs/regcopy/internal/npm"
	"github.com/git-pkgs/regcopy/internal/replicate"
)

// Usage is the one-line summary printed when a configuration is rejected.
const Usage = "usage: regcopy --from <repository url> --from-token <token> --to <repository url> --to-token <token> moduleA [moduleB...]"

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Re-export types from internal packages
type (
	// Report is the observable result of a run.
	Report = replicate.Report

	// PackageReport collects the results of one package.
	PackageReport = replicate.PackageReport

	// VersionResult is what happened to one version.
	VersionResult = replicate.VersionResult

	// Outcome is the terminal state of one version.
	Outcome = core.Outcome
)

// Re-export constants
const (
	Published             = core.OutcomePublished
	SkippedAlreadyPresent = core.OutcomeSkippedAlreadyPresent
	SkippedConflict       = core.OutcomeSkippedConflict
	Failed                = core.OutcomeFailed
	WouldPublish          = core.OutcomeWouldPublish
)

// Re-export errors
var (
	ErrNotFound           = client.ErrNotFound
	ErrConflict           = client.ErrConflict
	ErrMissingCredentials = auth.ErrMissingCredentials
	ErrInvalidMetadata    = replicate.ErrInvalidMetadata
	ErrIntegrityMismatch  = npm.ErrIntegrityMismatch
)

// EndpointConfig is the user supplied location and credentials of one
// registry. Either Token or Username and Password must be set.
type EndpointConfig struct {
	URL      string `toml:"url" validate:"required,http_url"`
	Token    string `toml:"token"`
	Username string `toml:"username" validate:"required_without=Token"`
	Password string `toml:"password" validate:"required_without=Token"`
	Email    string `toml:"email"`
}

func (e EndpointConfig) input() auth.Input {
	return auth.Input{
		URL:      e.URL,
		Token:    e.Token,
		Username: e.Username,
		Password: e.Password,
		Email:    e.Email,
	}
}

// Config describes one synchronization run.
type Config struct {
	From     EndpointConfig `toml:"from"`
	To       EndpointConfig `toml:"to"`
	DryRun   bool           `toml:"dry_run"`
	Packages []string       `toml:"packages" validate:"min=1,dive,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration is complete. The returned error wraps
// ErrInvalidConfig and names every offending field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return field + " is required when no token is given"
	case "http_url":
		return field + " must be an http(s) URL"
	case "min":
		return "at least one package is required"
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

type options struct {
	logger     *log.Logger
	timeout    time.Duration
	maxRetries int
	userAgent  string
}

// Option configures Sync.
type Option func(*options)

// WithLogger sets the logger progress is reported to.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTimeout sets the per-request timeout for registry API calls.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMaxRetries sets how often failed reads are retried. Publishes are
// never retried.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = n
	}
}

// WithUserAgent sets the User-Agent sent to both registries.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// Sync validates cfg and copies every missing version of cfg.Packages from
// cfg.From to cfg.To. It stops at the first failure other than a publish
// conflict and returns the report of the work done so far with the error.
func Sync(ctx context.Context, cfg Config, opts ...Option) (*Report, error) {
	o := options{
		logger:     log.Default(),
		timeout:    30 * time.Second,
		maxRetries: 3,
		userAgent:  "regcopy",
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	from, err := auth.NewEndpoint(cfg.From.input())
	if err != nil {
		return nil, fmt.Errorf("%w: from: %w", ErrInvalidConfig, err)
	}
	to, err := auth.NewEndpoint(cfg.To.input())
	if err != nil {
		return nil, fmt.Errorf("%w: to: %w", ErrInvalidConfig, err)
	}
	if from.FromToken {
		o.logger.Info("from: using Azure DevOps password")
	}
	if to.FromToken {
		o.logger.Info("to: using Azure DevOps password")
	}

	names := make([]string, 0, len(cfg.Packages))
	for _, p := range cfg.Packages {
		name, err := core.PackageName(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		names = append(names, name)
	}

	directives := auth.BuildDirectives(from, to)
	apiClient := client.NewClient(
		client.WithTimeout(o.timeout),
		client.WithMaxRetries(o.maxRetries),
		client.WithAuth(directives.AuthHeader),
	).WithUserAgent(o.userAgent)
	fetcher := fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(
		fetch.WithAuthFunc(directives.AuthHeader),
		fetch.WithMaxRetries(o.maxRetries),
		fetch.WithUserAgent(o.userAgent),
	))

	src := npm.New(from.URL, apiClient,
		npm.WithFetcher(fetcher),
		npm.WithLogger(o.logger),
	)
	dst := npm.New(to.URL, apiClient,
		npm.WithFetcher(fetcher),
		npm.WithLogger(o.logger),
		npm.WithMaintainer(npm.Maintainer{Name: to.Credential.Username, Email: directives.Email(to.URL)}),
	)

	engine := replicate.NewEngine(src, dst,
		replicate.WithDryRun(cfg.DryRun),
		replicate.WithLogger(o.logger),
	)
	return engine.Run(ctx, names)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
// Package arguments given to Sync may be npm PURLs such as pkg:npm/%40babel/core.
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}
