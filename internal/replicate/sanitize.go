package replicate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/git-pkgs/regcopy/internal/core"
)

// ErrInvalidMetadata is returned when sanitized metadata could not be
// accepted by a registry's publish endpoint.
var ErrInvalidMetadata = errors.New("invalid version metadata")

// privatePrefix marks registry bookkeeping fields such as _id, _rev,
// _npmUser and _resolved.
const privatePrefix = "_"

// excludedFields are dropped regardless of prefix. dist is regenerated by
// the destination from the uploaded archive.
var excludedFields = map[string]struct{}{
	"dist": {},
}

// Publishable reports whether a version field is replayed to the
// destination.
func Publishable(key string) bool {
	if strings.HasPrefix(key, privatePrefix) {
		return false
	}
	_, excluded := excludedFields[key]
	return !excluded
}

// Sanitize returns a copy of rec without dist and private fields. Every
// other field is kept verbatim and in order.
func Sanitize(rec core.VersionRecord) core.VersionRecord {
	return rec.Filter(Publishable)
}

// ValidatePublishable checks meta names the package and version it is
// published as, with a version the registry will accept.
func ValidatePublishable(name, version string, meta core.VersionRecord) error {
	metaName := meta.Name()
	if metaName == "" {
		return fmt.Errorf("%w: %s@%s has no name", ErrInvalidMetadata, name, version)
	}
	if metaName != name {
		return fmt.Errorf("%w: %s@%s is named %q", ErrInvalidMetadata, name, version, metaName)
	}
	metaVersion := meta.Version()
	if metaVersion != version {
		return fmt.Errorf("%w: %s@%s declares version %q", ErrInvalidMetadata, name, version, metaVersion)
	}
	if _, err := semver.StrictNewVersion(metaVersion); err != nil {
		return fmt.Errorf("%w: %s@%s: %v", ErrInvalidMetadata, name, version, err)
	}
	return nil
}
