package replicate

import "github.com/git-pkgs/regcopy/internal/core"

// Diff returns the versions of src missing from dst, in src's order.
func Diff(src, dst *core.VersionMap) []string {
	missing := make([]string, 0, src.Len())
	for _, v := range src.Versions() {
		if !dst.Has(v) {
			missing = append(missing, v)
		}
	}
	return missing
}
