package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/git-pkgs/regcopy"
)

const envPrefix = "REGCOPY_"

// endpointFlags holds the command line flags of one direction.
type endpointFlags struct {
	url      string
	token    string
	username string
	password string
	email    string
}

func (e *endpointFlags) register(cmd *cobra.Command, dir string) {
	f := cmd.Flags()
	f.StringVar(&e.url, dir, "", dir+" registry URL")
	f.StringVar(&e.token, dir+"-token", "", dir+" registry token (sent as password for user "+`"VssToken"`+")")
	f.StringVar(&e.username, dir+"-username", "", dir+" registry username")
	f.StringVar(&e.password, dir+"-password", "", dir+" registry password")
	f.StringVar(&e.email, dir+"-email", "", dir+" registry email")
}

// apply overrides cfg with every flag that was set explicitly.
func (e *endpointFlags) apply(cmd *cobra.Command, dir string, cfg *regcopy.EndpointConfig) {
	f := cmd.Flags()
	set := func(name, value string, dst *string) {
		if f.Changed(name) {
			*dst = value
		}
	}
	set(dir, e.url, &cfg.URL)
	set(dir+"-token", e.token, &cfg.Token)
	set(dir+"-username", e.username, &cfg.Username)
	set(dir+"-password", e.password, &cfg.Password)
	set(dir+"-email", e.email, &cfg.Email)
}

// applyEnv fills cfg from REGCOPY_<DIR>_* variables.
func applyEnv(getenv func(string) string, dir string, cfg *regcopy.EndpointConfig) {
	prefix := envPrefix + dir + "_"
	set := func(name string, dst *string) {
		if v := getenv(prefix + name); v != "" {
			*dst = v
		}
	}
	set("URL", &cfg.URL)
	set("TOKEN", &cfg.Token)
	set("USERNAME", &cfg.Username)
	set("PASSWORD", &cfg.Password)
	set("EMAIL", &cfg.Email)
}

// loadConfig assembles the run configuration. Later sources win:
// config file, then environment (including the .env file), then flags.
func (c *CLI) loadConfig(cmd *cobra.Command, args []string) (regcopy.Config, error) {
	var cfg regcopy.Config

	if c.flags.configPath != "" {
		if _, err := toml.DecodeFile(c.flags.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", c.flags.configPath, err)
		}
	}

	if err := loadEnvFile(c.flags.envFile); err != nil {
		return cfg, err
	}
	applyEnv(c.getenv, "FROM", &cfg.From)
	applyEnv(c.getenv, "TO", &cfg.To)
	if v := c.getenv(envPrefix + "DRY_RUN"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%sDRY_RUN: %w", envPrefix, err)
		}
		cfg.DryRun = dry
	}

	c.flags.from.apply(cmd, "from", &cfg.From)
	c.flags.to.apply(cmd, "to", &cfg.To)
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun = c.flags.dryRun
	}
	if len(args) > 0 {
		cfg.Packages = args
	}
	return cfg, nil
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. An empty path tries ./.env and tolerates
// its absence.
func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
