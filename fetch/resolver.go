package fetch

import (
	"errors"
	"strings"

	"github.com/git-pkgs/regcopy/client"
)

// ErrNoDownloadURL is returned when neither the version metadata nor the
// registry's URL convention yields an archive location.
var ErrNoDownloadURL = errors.New("no download URL available")

// ArtifactInfo contains information about a downloadable artifact.
type ArtifactInfo struct {
	URL       string
	Filename  string
	Integrity string // sha512-..., sha1-...
}

// Resolver determines where a version's archive can be downloaded from.
type Resolver struct {
	urls client.URLBuilder
}

// NewResolver creates a resolver falling back to urls' conventions.
// urls may be nil, in which case only advertised locations resolve.
func NewResolver(urls client.URLBuilder) *Resolver {
	return &Resolver{urls: urls}
}

// Resolve returns the archive location of name@version. tarball and
// integrity are the values the registry advertised, either may be empty.
func (r *Resolver) Resolve(name, version, tarball, integrity string) (*ArtifactInfo, error) {
	url := tarball
	if url == "" && r.urls != nil {
		url = r.urls.Download(name, version)
	}
	if url == "" {
		return nil, ErrNoDownloadURL
	}
	return &ArtifactInfo{
		URL:       url,
		Filename:  filenameFromURL(url),
		Integrity: integrity,
	}, nil
}

func filenameFromURL(url string) string {
	if idx := strings.IndexAny(url, "?#"); idx >= 0 {
		url = url[:idx]
	}
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
