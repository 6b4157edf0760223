package client

// URLBuilder constructs URLs for a registry.
type URLBuilder interface {
	// Package returns the metadata document URL for name.
	Package(name string) string
	// Download returns the conventional tarball URL for name@version.
	Download(name, version string) string
	// PURL returns the package URL for name, and version when non-empty.
	PURL(name, version string) string
}

// BuildURLs returns a map of all non-empty URLs for a package version.
// Keys are "package", "download", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Package(name); v != "" {
		result["package"] = v
	}
	if v := urls.Download(name, version); v != "" {
		result["download"] = v
	}
	if v := urls.PURL(name, version); v != "" {
		result["purl"] = v
	}
	return result
}
