package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/regcopy"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const configFile = `
dry_run = false
packages = ["left-pad", "right-pad"]

[from]
url = "https://file-src.example.com/"
token = "file-token"

[to]
url = "https://file-dst.example.com/"
username = "file-user"
password = "file-pass"
email = "file@example.com"
`

func TestLoadConfigFromFile(t *testing.T) {
	c, _, calls := newTestCLI(nil)
	path := writeFile(t, "regcopy.toml", configFile)

	require.NoError(t, execute(c, "--config", path))
	require.Len(t, *calls, 1)

	assert.Equal(t, regcopy.Config{
		From:     regcopy.EndpointConfig{URL: "https://file-src.example.com/", Token: "file-token"},
		To:       regcopy.EndpointConfig{URL: "https://file-dst.example.com/", Username: "file-user", Password: "file-pass", Email: "file@example.com"},
		Packages: []string{"left-pad", "right-pad"},
	}, (*calls)[0])
}

func TestLoadConfigPrecedence(t *testing.T) {
	env := map[string]string{
		"REGCOPY_FROM_TOKEN":  "env-token",
		"REGCOPY_TO_URL":      "https://env-dst.example.com/",
		"REGCOPY_TO_PASSWORD": "env-pass",
		"REGCOPY_DRY_RUN":     "true",
	}
	c, _, calls := newTestCLI(env)
	path := writeFile(t, "regcopy.toml", configFile)

	require.NoError(t, execute(c, "--config", path,
		"--to", "https://flag-dst.example.com/",
		"--dry-run=false",
		"only-this",
	))
	require.Len(t, *calls, 1)
	cfg := (*calls)[0]

	// file
	assert.Equal(t, "https://file-src.example.com/", cfg.From.URL)
	assert.Equal(t, "file-user", cfg.To.Username)
	// environment over file
	assert.Equal(t, "env-token", cfg.From.Token)
	assert.Equal(t, "env-pass", cfg.To.Password)
	// flags over environment
	assert.Equal(t, "https://flag-dst.example.com/", cfg.To.URL)
	assert.False(t, cfg.DryRun)
	// arguments replace the file's package list
	assert.Equal(t, []string{"only-this"}, cfg.Packages)
}

func TestLoadConfigEnvDryRun(t *testing.T) {
	c, _, calls := newTestCLI(map[string]string{
		"REGCOPY_FROM_URL":   "https://a.example.com/",
		"REGCOPY_FROM_TOKEN": "t",
		"REGCOPY_TO_URL":     "https://b.example.com/",
		"REGCOPY_TO_TOKEN":   "t",
		"REGCOPY_DRY_RUN":    "1",
	})

	require.NoError(t, execute(c, "pkg"))
	require.Len(t, *calls, 1)
	assert.True(t, (*calls)[0].DryRun)
	assert.Equal(t, "t", (*calls)[0].To.Token)
}

func TestLoadConfigBadDryRun(t *testing.T) {
	c, _, calls := newTestCLI(map[string]string{"REGCOPY_DRY_RUN": "sometimes"})

	err := execute(c, "pkg")
	assert.ErrorContains(t, err, "REGCOPY_DRY_RUN")
	assert.Empty(t, *calls)
}

func TestLoadConfigMissingFile(t *testing.T) {
	c, _, calls := newTestCLI(nil)

	err := execute(c, "--config", filepath.Join(t.TempDir(), "nope.toml"), "pkg")
	assert.ErrorContains(t, err, "reading config")
	assert.Empty(t, *calls)
}

func TestLoadConfigEnvFile(t *testing.T) {
	keys := []string{"REGCOPY_FROM_URL", "REGCOPY_FROM_TOKEN", "REGCOPY_TO_URL", "REGCOPY_TO_TOKEN"}
	for _, k := range keys {
		require.Empty(t, os.Getenv(k), "%s set in test environment", k)
	}
	t.Cleanup(func() {
		for _, k := range keys {
			_ = os.Unsetenv(k)
		}
	})

	path := writeFile(t, ".env", `REGCOPY_FROM_URL=https://dotenv-src.example.com/
REGCOPY_FROM_TOKEN=dotenv-token
REGCOPY_TO_URL=https://dotenv-dst.example.com/
REGCOPY_TO_TOKEN=dotenv-token
`)
	c, _, calls := newTestCLI(nil)
	c.getenv = os.Getenv

	require.NoError(t, execute(c, "--env-file", path, "pkg"))
	require.Len(t, *calls, 1)
	assert.Equal(t, "https://dotenv-src.example.com/", (*calls)[0].From.URL)
	assert.Equal(t, "dotenv-token", (*calls)[0].To.Token)
}

func TestLoadEnvFileMissing(t *testing.T) {
	assert.Error(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
