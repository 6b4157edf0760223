package replicate

import "github.com/git-pkgs/regcopy/internal/core"

// VersionResult is what happened to one version of a package.
type VersionResult struct {
	Version string
	Outcome core.Outcome
	PURL    string
	Err     error
}

// PackageReport collects the results of one package in source order.
type PackageReport struct {
	Name    string
	Results []VersionResult
}

func (p *PackageReport) add(version string, outcome core.Outcome, err error) {
	p.Results = append(p.Results, VersionResult{
		Version: version,
		Outcome: outcome,
		PURL:    core.BuildPURL(p.Name, version),
		Err:     err,
	})
}

// Count returns how many versions ended in outcome.
func (p *PackageReport) Count(outcome core.Outcome) int {
	n := 0
	for _, r := range p.Results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Report is the observable result of a run. It is returned even when the
// run aborts, covering the work done up to the failure.
type Report struct {
	DryRun   bool
	Packages []*PackageReport
}

// Count returns how many versions across all packages ended in outcome.
func (r *Report) Count(outcome core.Outcome) int {
	n := 0
	for _, p := range r.Packages {
		n += p.Count(outcome)
	}
	return n
}

// WorkList returns "name@version" for every version a publish was, or in
// a dry run would have been, attempted for.
func (r *Report) WorkList() []string {
	var out []string
	for _, p := range r.Packages {
		for _, res := range p.Results {
			if res.Outcome == core.OutcomeSkippedAlreadyPresent {
				continue
			}
			out = append(out, p.Name+"@"+res.Version)
		}
	}
	return out
}
