package npm

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/git-pkgs/regcopy/internal/core"
)

// URLs builds locations on one npm-protocol registry.
type URLs struct {
	baseURL string
}

// Package returns the document URL. Scoped names keep their "@" and have
// the separating slash escaped: @babel/core becomes @babel%2Fcore.
func (u *URLs) Package(name string) string {
	return fmt.Sprintf("%s/%s", u.baseURL, escapeName(name))
}

// Download returns the conventional archive URL, which uses the unscoped
// part of the name in the file name.
func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	shortName := name
	if strings.Contains(name, "/") {
		parts := strings.SplitN(name, "/", 2)
		shortName = parts[1]
	}
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", u.baseURL, name, shortName, version)
}

// Attachment returns the attachment name a publish uploads the archive as.
func (u *URLs) Attachment(name, version string) string {
	return fmt.Sprintf("%s-%s.tgz", name, version)
}

// PublishedTarball returns the dist.tarball recorded in a published version.
func (u *URLs) PublishedTarball(name, version string) string {
	return fmt.Sprintf("%s/%s/-/%s", u.baseURL, name, u.Attachment(name, version))
}

// Write returns the document URL used when reading for an update.
func (u *URLs) Write(name string) string {
	return u.Package(name) + "?write=true"
}

func (u *URLs) PURL(name, version string) string {
	return core.BuildPURL(name, version)
}

func escapeName(name string) string {
	if strings.HasPrefix(name, "@") {
		return "@" + url.PathEscape(name[1:])
	}
	return url.PathEscape(name)
}
