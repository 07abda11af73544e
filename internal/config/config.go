package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/patronage-dev/patronage/internal/domain"
)

// EnvProduction selects live platform fetching; any other value substitutes
// the fixture sources.
const EnvProduction = "production"

var ErrMissingCredential = errors.New("missing required credential")

type Config struct {
	GitHubToken       string        `env:"GITHUB_SPONSORS_TOKEN"`
	GitHubAPIURL      string        `env:"GITHUB_API_URL"  envDefault:"https://api.github.com"`
	PatreonToken      string        `env:"PATREON_TOKEN"`
	PatreonCampaignID string        `env:"PATREON_CAMPAIGN_ID"`
	PatreonAPIURL     string        `env:"PATREON_API_URL" envDefault:"https://www.patreon.com/api/oauth2/v2"`
	BMACToken         string        `env:"BMAC_TOKEN"`
	BMACAPIURL        string        `env:"BMAC_API_URL"    envDefault:"https://developers.buymeacoffee.com/api/v1"`
	BlocklistRaw      string        `env:"DONATION_BLOCKLIST"`
	Environment       string        `env:"APP_ENV"        envDefault:"development"`
	OutputFile        string        `env:"DONATIONS_FILE" envDefault:"donations.json"`
	RunTimeout        time.Duration `env:"RUN_TIMEOUT"    envDefault:"2m"`
	LogLvl            string        `env:"LOG_LVL"        envDefault:"info"`

	// Blocklist is parsed once from BlocklistRaw and shared read-only with
	// every adapter for the duration of a run.
	Blocklist domain.Blocklist
}

func New() *Config {
	// The .env file is optional; real deployments set the environment.
	_ = godotenv.Load()

	cfg := &Config{}

	env.Parse(cfg)

	flag.StringVar(&cfg.Environment, "e", cfg.Environment, "environment: production fetches live data, anything else uses fixtures")
	flag.StringVar(&cfg.OutputFile, "o", cfg.OutputFile, "path of the donations ledger file")
	flag.DurationVar(&cfg.RunTimeout, "t", cfg.RunTimeout, "overall aggregation deadline")
	flag.StringVar(&cfg.LogLvl, "l", cfg.LogLvl, "log level")
	flag.Parse()

	cfg.Blocklist = domain.ParseBlocklist(cfg.BlocklistRaw)

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate surfaces configuration errors at startup, before any network
// call. Fixture builds need no credentials; production builds need all of
// them.
func (c *Config) Validate() error {
	if c.RunTimeout <= 0 {
		return fmt.Errorf("run timeout must be positive, got %s", c.RunTimeout)
	}
	if !c.IsProduction() {
		return nil
	}

	required := []struct {
		name  string
		value string
	}{
		{"GITHUB_SPONSORS_TOKEN", c.GitHubToken},
		{"PATREON_TOKEN", c.PatreonToken},
		{"PATREON_CAMPAIGN_ID", c.PatreonCampaignID},
		{"BMAC_TOKEN", c.BMACToken},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingCredential, r.name)
		}
	}
	return nil
}
