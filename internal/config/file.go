package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gitlab.bluewillows.net/root/dns-syncer/pkg/provider"
)

// fileConfig mirrors the runtime Config using file-friendly types.
// The same structure decodes from YAML and TOML.
type fileConfig struct {
	CheckInterval *int `yaml:"check_interval" toml:"check_interval"`

	// The original configuration key carries a typo; both spellings
	// are accepted, the misspelled one winning for compatibility.
	PublicIPFecher  string `yaml:"public_ip_fecher" toml:"public_ip_fecher"`
	PublicIPFetcher string `yaml:"public_ip_fetcher" toml:"public_ip_fetcher"`

	HealthPort int `yaml:"health_port" toml:"health_port"`
	Workers    int `yaml:"workers" toml:"workers"`

	Logging *fileLoggingConfig `yaml:"logging" toml:"logging"`

	Fetchers  []fileFetcherConfig  `yaml:"fetchers" toml:"fetchers"`
	Providers []fileProviderConfig `yaml:"providers" toml:"providers"`
	Records   []fileRecordConfig   `yaml:"records" toml:"records"`
}

type fileLoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, text
}

// fileParam is one name/value pair. Value and ValueFile are mutually
// exclusive; ValueFile reads the value from a file (Docker secrets
// pattern).
type fileParam struct {
	Name      string `yaml:"name" toml:"name"`
	Value     string `yaml:"value" toml:"value"`
	ValueFile string `yaml:"value_file" toml:"value_file"`
}

type fileFetcherConfig struct {
	Name   string      `yaml:"name" toml:"name"`
	Type   string      `yaml:"type" toml:"type"`
	Alive  int         `yaml:"alive" toml:"alive"` // seconds
	Params []fileParam `yaml:"params" toml:"params"`
}

// fileAuthConfig is the tagged authentication union. Value is a plain
// string for api_token and a mapping for the other variants; ValueFile
// reads an api_token from a file.
type fileAuthConfig struct {
	Type      string `yaml:"type" toml:"type"`
	Value     any    `yaml:"value" toml:"value"`
	ValueFile string `yaml:"value_file" toml:"value_file"`
}

type fileProviderConfig struct {
	Name           string          `yaml:"name" toml:"name"`
	Type           string          `yaml:"type" toml:"type"`
	Authentication *fileAuthConfig `yaml:"authentication" toml:"authentication"`
	Params         []fileParam     `yaml:"params" toml:"params"`
}

type fileRecordConfig struct {
	Type     string              `yaml:"type" toml:"type"`
	Name     string              `yaml:"name" toml:"name"`
	Content  string              `yaml:"content" toml:"content"`
	TTL      int                 `yaml:"ttl" toml:"ttl"`
	Comment  string              `yaml:"comment" toml:"comment"`
	Op       string              `yaml:"op" toml:"op"`
	Backends []fileBackendConfig `yaml:"backends" toml:"backends"`
}

type fileBackendConfig struct {
	Provider string      `yaml:"provider" toml:"provider"`
	Params   []fileParam `yaml:"params" toml:"params"`
	Zones    []string    `yaml:"zones" toml:"zones"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment
// variable values. Supports ${VAR:-default} syntax for defaults.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads, parses and validates a configuration file. The format
// is chosen by extension: .toml decodes as TOML, everything else as
// YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	}

	cfg, err := fc.toConfig()
	if err != nil {
		return nil, err
	}
	if errs := validateConfig(cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// toConfig converts the file representation into the runtime Config,
// interpolating environment variables, resolving secret files and
// applying defaults.
func (fc *fileConfig) toConfig() (*Config, error) {
	cfg := &Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Workers:   DefaultWorkers,
	}

	if fc.CheckInterval != nil {
		if *fc.CheckInterval < 0 {
			return nil, &ValidationError{Errors: []string{
				fmt.Sprintf("check_interval must be non-negative, got %d", *fc.CheckInterval),
			}}
		}
		cfg.CheckInterval = time.Duration(*fc.CheckInterval) * time.Second
	}

	cfg.DefaultFetcher = InterpolateEnvVars(fc.PublicIPFecher)
	if cfg.DefaultFetcher == "" {
		cfg.DefaultFetcher = InterpolateEnvVars(fc.PublicIPFetcher)
	}

	cfg.HealthPort = fc.HealthPort
	if fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}

	if fc.Logging != nil {
		if fc.Logging.Level != "" {
			cfg.LogLevel = strings.ToLower(InterpolateEnvVars(fc.Logging.Level))
		}
		if fc.Logging.Format != "" {
			cfg.LogFormat = strings.ToLower(InterpolateEnvVars(fc.Logging.Format))
		}
	}

	for _, ff := range fc.Fetchers {
		params, err := resolveParams(ff.Params)
		if err != nil {
			return nil, fmt.Errorf("fetcher %s: %w", ff.Name, err)
		}
		alive := DefaultFetcherAlive
		if ff.Alive > 0 {
			alive = time.Duration(ff.Alive) * time.Second
		}
		cfg.Fetchers = append(cfg.Fetchers, FetcherConfig{
			Name:   InterpolateEnvVars(ff.Name),
			Type:   InterpolateEnvVars(ff.Type),
			Alive:  alive,
			Params: params,
		})
	}

	for _, fp := range fc.Providers {
		params, err := resolveParams(fp.Params)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", fp.Name, err)
		}
		auth, err := parseAuth(fp.Authentication)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", fp.Name, err)
		}
		cfg.Providers = append(cfg.Providers, ProviderConfig{
			Name:   InterpolateEnvVars(fp.Name),
			Type:   InterpolateEnvVars(fp.Type),
			Auth:   auth,
			Params: params,
		})
	}

	for _, fr := range fc.Records {
		rec := RecordSpec{
			Type:    provider.RecordType(strings.ToUpper(fr.Type)),
			Name:    InterpolateEnvVars(fr.Name),
			Content: InterpolateEnvVars(fr.Content),
			TTL:     fr.TTL,
			Comment: fr.Comment,
			Op:      Op(fr.Op),
		}
		if rec.Op == "" {
			rec.Op = OpCreate
		}
		for _, fb := range fr.Backends {
			params, err := resolveParams(fb.Params)
			if err != nil {
				return nil, fmt.Errorf("record %s backend %s: %w", fr.Name, fb.Provider, err)
			}
			rec.Backends = append(rec.Backends, BackendRef{
				Provider: InterpolateEnvVars(fb.Provider),
				Params:   params,
				Zones:    fb.Zones,
			})
		}
		cfg.Records = append(cfg.Records, rec)
	}

	return cfg, nil
}

// resolveParams flattens a param list into a map, interpolating env
// vars and reading value_file secrets.
func resolveParams(params []fileParam) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(params))
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("param with empty name")
		}
		value := InterpolateEnvVars(p.Value)
		if p.ValueFile != "" {
			content, err := os.ReadFile(InterpolateEnvVars(p.ValueFile))
			if err != nil {
				return nil, fmt.Errorf("param %s: reading value_file: %w", p.Name, err)
			}
			value = strings.TrimSpace(string(content))
		}
		out[p.Name] = value
	}
	return out, nil
}

// parseAuth converts the tagged authentication union into its typed
// variant.
func parseAuth(fa *fileAuthConfig) (provider.Auth, error) {
	if fa == nil {
		return nil, fmt.Errorf("authentication is required")
	}

	switch fa.Type {
	case "api_token":
		token, err := authString(fa)
		if err != nil {
			return nil, err
		}
		return provider.APIToken{Token: token}, nil

	case "api_key":
		fields, err := authFields(fa)
		if err != nil {
			return nil, err
		}
		return provider.APIKey{
			Email: fields["email"],
			Key:   fields["key"],
		}, nil

	case "tsig":
		fields, err := authFields(fa)
		if err != nil {
			return nil, err
		}
		return provider.TSIG{
			KeyName:   fields["key_name"],
			Secret:    fields["secret"],
			Algorithm: fields["algorithm"],
		}, nil

	case "ssh":
		fields, err := authFields(fa)
		if err != nil {
			return nil, err
		}
		return provider.SSH{
			User:          fields["user"],
			KeyFile:       fields["key_file"],
			KeyData:       fields["key_data"],
			KeyPassphrase: fields["key_passphrase"],
			Password:      fields["password"],
		}, nil

	case "":
		return nil, fmt.Errorf("authentication type is required")
	default:
		return nil, fmt.Errorf("unknown authentication type: %q", fa.Type)
	}
}

// authString extracts the scalar value of an authentication entry,
// honoring value_file indirection.
func authString(fa *fileAuthConfig) (string, error) {
	if fa.ValueFile != "" {
		content, err := os.ReadFile(InterpolateEnvVars(fa.ValueFile))
		if err != nil {
			return "", fmt.Errorf("reading authentication value_file: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	s, ok := fa.Value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("authentication type %s requires a string value", fa.Type)
	}
	return InterpolateEnvVars(s), nil
}

// authFields extracts the mapping value of an authentication entry.
// Both YAML and TOML decode an untyped mapping as map[string]any.
func authFields(fa *fileAuthConfig) (map[string]string, error) {
	raw, ok := fa.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("authentication type %s requires a mapping value", fa.Type)
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("authentication field %s must be a string", k)
		}
		fields[k] = InterpolateEnvVars(s)
	}
	return fields, nil
}
