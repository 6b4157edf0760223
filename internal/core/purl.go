package core

import (
	"fmt"
	"strings"

	packageurl "github.com/package-url/packageurl-go"
)

const ecosystem = "npm"

// PURL wraps packageurl.PackageURL with registry-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// FullName returns the package name in the format the registry expects.
// packageurl-go keeps @ in the namespace, so "@babel" + "/" + "core" = "@babel/core".
func (p PURL) FullName() string {
	if p.Namespace == "" {
		return p.Name
	}
	return p.Namespace + "/" + p.Name
}

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:npm/lodash) and version PURLs (pkg:npm/lodash@4.17.21).
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	return &PURL{p}, nil
}

// PackageName accepts either a bare package name or an npm PURL and returns
// the registry name. A version in the PURL is ignored: every version of the
// package is considered for copying.
func PackageName(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("empty package name")
	}
	if !strings.HasPrefix(arg, "pkg:") {
		return arg, nil
	}
	p, err := ParsePURL(arg)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", arg, err)
	}
	if p.Type != ecosystem {
		return "", fmt.Errorf("%s: unsupported package type %q", arg, p.Type)
	}
	return p.FullName(), nil
}

// BuildPURL returns the npm PURL of name, and version when non-empty.
func BuildPURL(name, version string) string {
	namespace := ""
	pkgName := name
	if strings.HasPrefix(name, "@") && strings.Contains(name, "/") {
		parts := strings.SplitN(name, "/", 2)
		namespace = parts[0]
		pkgName = parts[1]
	}
	p := packageurl.NewPackageURL(ecosystem, namespace, pkgName, version, nil, "")
	return p.ToString()
}
