package client

import "testing"

type fixedURLs struct{}

func (fixedURLs) Package(name string) string { return "https://r.example.com/" + name }

func (fixedURLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	return "https://r.example.com/" + name + "/-/" + name + "-" + version + ".tgz"
}

func (fixedURLs) PURL(name, version string) string { return "pkg:npm/" + name }

func TestBuildURLs(t *testing.T) {
	urls := BuildURLs(fixedURLs{}, "left-pad", "1.3.0")
	want := map[string]string{
		"package":  "https://r.example.com/left-pad",
		"download": "https://r.example.com/left-pad/-/left-pad-1.3.0.tgz",
		"purl":     "pkg:npm/left-pad",
	}
	for k, v := range want {
		if urls[k] != v {
			t.Errorf("%s = %q, want %q", k, urls[k], v)
		}
	}

	urls = BuildURLs(fixedURLs{}, "left-pad", "")
	if _, ok := urls["download"]; ok {
		t.Error("download URL present without a version")
	}
}
