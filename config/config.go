package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/refuel/internal/entity"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config.yaml"
	DefaultLLMAPIURL  = "https://api.openai.com/v1"
	DefaultModel      = "gpt-4o-mini"

	defaultMonitorInterval = 30 * time.Second
)

// LLM holds the model API settings. The credential never lives in the file.
type LLM struct {
	APIURL string `yaml:"api_url"`
	Model  string `yaml:"model"`
	APIKey string `yaml:"-"`
}

// Config is the full runtime configuration. Credentials are taken from the
// environment (SUPRA_PRIVATE_KEY, LLM_API_KEY); everything else comes from
// the YAML file with flag overrides.
type Config struct {
	RPCURL             string        `yaml:"rpc_url"`
	SenderAddress      string        `yaml:"sender_address"`
	AutomationRegistry string        `yaml:"automation_registry"`
	MonitorInterval    time.Duration `yaml:"monitor_interval"`
	LLM                LLM           `yaml:"llm"`

	SenderKey string `yaml:"-"`
}

// Get parses flags, loads the YAML file and merges environment credentials.
// Validation failures here are fatal: the process must not start a
// conversation with broken credentials.
func Get() (Config, error) {
	path := flag.String("config", DefaultConfigPath, "path to yaml config")
	flag.Parse()

	conf := Config{
		MonitorInterval: defaultMonitorInterval,
		LLM: LLM{
			APIURL: DefaultLLMAPIURL,
			Model:  DefaultModel,
		},
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s (run 'refuel setup' to create one)", *path)
	}
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", *path)
	}

	conf.SenderKey = os.Getenv("SUPRA_PRIVATE_KEY")
	conf.LLM.APIKey = os.Getenv("LLM_API_KEY")

	if err := conf.validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

func (c Config) validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if !entity.IsValidAddress(c.SenderAddress) {
		return errors.Errorf("sender_address %q is not a valid account address", c.SenderAddress)
	}
	if !entity.IsValidAddress(c.AutomationRegistry) {
		return errors.Errorf("automation_registry %q is not a valid account address", c.AutomationRegistry)
	}
	if c.MonitorInterval <= 0 {
		return errors.New("monitor_interval must be positive")
	}
	if c.SenderKey == "" {
		return errors.New("SUPRA_PRIVATE_KEY environment variable must be set")
	}
	if c.LLM.APIKey == "" {
		return errors.New("LLM_API_KEY environment variable must be set")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	return nil
}
