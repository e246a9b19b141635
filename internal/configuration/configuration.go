package configuration

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeremywohl/flatten"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	FetcherKindFile = "file"
	FetcherKindHTTP = "http"
)

var (
	defaultConcurrency   = 4
	defaultDeviceTimeout = 2 * time.Minute
	defaultStorageRoot   = "data"
	defaultCaptureDir    = "captures"
	defaultDiffContext   = 3

	defaultFetcherTimeout  = 30 * time.Second
	defaultFetcherRetryMax = 3

	defaultRetryInitialInterval = time.Second
	defaultRetryMaxInterval     = 30 * time.Second
)

// Configuration holds application configuration read from a YAML or set by env variables.
// nolint:govet // prefer readability over field alignment optimization for this case.
type Configuration struct {
	// LogLevel is the app verbose logging level.
	// one of - info, debug, trace
	LogLevel string `mapstructure:"log_level"`

	// Concurrency is the number of devices processed at once.
	Concurrency int `mapstructure:"concurrency"`

	// DeviceTimeout bounds a single device pipeline.
	DeviceTimeout time.Duration `mapstructure:"device_timeout"`

	// Devices is the inventory this instance runs against.
	Devices []string `mapstructure:"devices"`

	// IgnorePatterns is the default ignore pattern set shared by every device.
	IgnorePatterns []string `mapstructure:"ignore_patterns"`

	// IgnorePatternsFile is an optional YAML file with default and per device patterns.
	IgnorePatternsFile string `mapstructure:"ignore_patterns_file"`

	// DiffContext is the number of unchanged lines around each diff hunk.
	DiffContext int `mapstructure:"diff_context"`

	Storage *StorageOptions `mapstructure:"storage"`

	Fetcher *FetcherOptions `mapstructure:"fetcher"`

	Retry *RetryOptions `mapstructure:"retry"`

	Metrics *MetricsOptions `mapstructure:"metrics"`

	EnableProfiling bool `mapstructure:"enable_profiling"`
}

// StorageOptions locates the golden, running, backup and diff directories.
// Unset directories are derived from Root.
type StorageOptions struct {
	Root       string `mapstructure:"root"`
	GoldenDir  string `mapstructure:"golden_dir"`
	RunningDir string `mapstructure:"running_dir"`
	BackupDir  string `mapstructure:"backup_dir"`
	DiffDir    string `mapstructure:"diff_dir"`
}

// FetcherOptions configures how running configurations are obtained.
type FetcherOptions struct {
	// Kind is one of file, http.
	Kind string `mapstructure:"kind"`

	// Dir holds captured running configurations, one <device>.cfg per device.
	Dir string `mapstructure:"dir"`

	// Endpoint is the config source API base URL.
	Endpoint             string        `mapstructure:"endpoint"`
	Timeout              time.Duration `mapstructure:"timeout"`
	RetryMax             int           `mapstructure:"retry_max"`
	DisableOAuth         bool          `mapstructure:"disable_oauth"`
	OidcIssuerEndpoint   string        `mapstructure:"oidc_issuer_endpoint"`
	OidcAudienceEndpoint string        `mapstructure:"oidc_audience_endpoint"`
	OidcClientSecret     string        `mapstructure:"oidc_client_secret"`
	OidcClientID         string        `mapstructure:"oidc_client_id"`
	OidcClientScopes     []string      `mapstructure:"oidc_client_scopes"`
}

// RetryOptions controls how failed device fetches and writes are retried by the dispatcher.
type RetryOptions struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type MetricsOptions struct {
	ListenAddress string `mapstructure:"listen_address"`
}

// New creates an empty configuration struct.
func New() *Configuration {
	config := &Configuration{}

	// these are initialized here so viper can read in configuration from env vars
	// once https://github.com/spf13/viper/pull/1429 is merged, this can go.
	config.Storage = &StorageOptions{}
	config.Fetcher = &FetcherOptions{}
	config.Retry = &RetryOptions{}
	config.Metrics = &MetricsOptions{}

	return config
}

func (c *Configuration) AsLogFields() []any {
	return []any{
		"logLevel", c.LogLevel,
		"concurrency", c.Concurrency,
		"deviceTimeout", c.DeviceTimeout.String(),
		"devices", len(c.Devices),
		"ignorePatterns", len(c.IgnorePatterns),
		"ignorePatternsFile", c.IgnorePatternsFile,
		"goldenDir", c.Storage.GoldenDir,
		"runningDir", c.Storage.RunningDir,
		"backupDir", c.Storage.BackupDir,
		"diffDir", c.Storage.DiffDir,
		"fetcher", c.Fetcher.Kind,
		"retryMaxAttempts", c.Retry.MaxAttempts,
		"metricsAddress", c.Metrics.ListenAddress,
		"enableProfiling", c.EnableProfiling,
	}
}

// LoadArgs applies command line flags, these take precedence over file and env values.
func (c *Configuration) LoadArgs(args *model.Args) {
	if args.LogLevel != "" {
		c.LogLevel = args.LogLevel
	}

	if args.EnableProfiling {
		c.EnableProfiling = true
	}

	if len(args.Devices) > 0 {
		c.Devices = append([]string(nil), args.Devices...)
	}

	if args.Concurrency > 0 {
		c.Concurrency = args.Concurrency
	}
}

// Load the application configuration
// Reads in the configFile when available and overrides from environment variables.
func Load(args *model.Args) (*Configuration, error) {
	viperConfig := viper.New()
	viperConfig.SetConfigType("yaml")
	viperConfig.SetEnvPrefix(model.AppName)
	viperConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperConfig.AutomaticEnv()

	if args.ConfigFile != "" {
		fh, err := os.Open(args.ConfigFile)
		if err != nil {
			return nil, errors.Wrap(model.ErrConfig, err.Error())
		}
		defer fh.Close()

		if err = viperConfig.ReadConfig(fh); err != nil {
			return nil, errors.Wrap(model.ErrConfig, "ReadConfig error: "+err.Error())
		}
	}

	config := New()

	if err := config.envBindVars(viperConfig); err != nil {
		return nil, errors.Wrap(model.ErrConfig, "env var bind error: "+err.Error())
	}

	if err := viperConfig.Unmarshal(config); err != nil {
		return nil, errors.Wrap(model.ErrConfig, "Unmarshal error: "+err.Error())
	}

	// zero is a valid diff context, only an unset key takes the default
	if !viperConfig.IsSet("diff_context") {
		config.DiffContext = defaultDiffContext
	}

	config.LoadArgs(args)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// envBindVars binds environment variables to the struct
// without a configuration file being unmarshalled,
// this is a workaround for a viper bug,
//
// This can be replaced by the solution in https://github.com/spf13/viper/pull/1429
// once that PR is merged.
func (c *Configuration) envBindVars(viperConfig *viper.Viper) error {
	envKeysMap := map[string]interface{}{}
	if err := mapstructure.Decode(c, &envKeysMap); err != nil {
		return err
	}

	// Flatten nested conf map
	flat, err := flatten.Flatten(envKeysMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten configuration")
	}

	for k := range flat {
		if err := viperConfig.BindEnv(k); err != nil {
			return errors.Wrap(model.ErrConfig, "env var bind error: "+err.Error())
		}
	}

	return nil
}

func (c *Configuration) validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}

	if c.DeviceTimeout <= 0 {
		c.DeviceTimeout = defaultDeviceTimeout
	}

	if c.DiffContext < 0 {
		return errors.Wrapf(model.ErrConfig, "diff_context must not be negative: %d", c.DiffContext)
	}

	for _, d := range c.Devices {
		if strings.TrimSpace(d) == "" {
			return errors.Wrap(model.ErrConfig, "empty device name in inventory")
		}

		// device names become file names
		if strings.TrimSpace(d) != d || strings.ContainsAny(d, `/\`) || d == "." || d == ".." {
			return errors.Wrapf(model.ErrConfig, "invalid device name in inventory: %q", d)
		}
	}

	c.validateStorage()
	c.validateRetry()

	if err := c.validateFetcher(); err != nil {
		return errors.Wrap(model.ErrConfig, err.Error())
	}

	return nil
}

func (c *Configuration) validateStorage() {
	if c.Storage == nil {
		c.Storage = &StorageOptions{}
	}

	s := c.Storage
	if s.Root == "" {
		s.Root = defaultStorageRoot
	}

	if s.GoldenDir == "" {
		s.GoldenDir = filepath.Join(s.Root, "golden")
	}

	if s.RunningDir == "" {
		s.RunningDir = filepath.Join(s.Root, "running")
	}

	if s.BackupDir == "" {
		s.BackupDir = filepath.Join(s.Root, "backups")
	}

	if s.DiffDir == "" {
		s.DiffDir = filepath.Join(s.Root, "diffs")
	}
}

func (c *Configuration) validateRetry() {
	if c.Retry == nil {
		c.Retry = &RetryOptions{}
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 1
	}

	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = defaultRetryInitialInterval
	}

	if c.Retry.MaxInterval <= 0 {
		c.Retry.MaxInterval = defaultRetryMaxInterval
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsOptions{}
	}
}

// nolint:gocyclo // parameter validation is cyclomatic
func (c *Configuration) validateFetcher() error {
	if c.Fetcher == nil {
		c.Fetcher = &FetcherOptions{}
	}

	f := c.Fetcher
	if f.Kind == "" {
		f.Kind = FetcherKindFile
	}

	switch f.Kind {
	case FetcherKindFile:
		if f.Dir == "" {
			f.Dir = defaultCaptureDir
		}

		return nil
	case FetcherKindHTTP:
	default:
		return errors.New("unknown fetcher kind: " + f.Kind)
	}

	if f.Timeout <= 0 {
		f.Timeout = defaultFetcherTimeout
	}

	if f.RetryMax <= 0 {
		f.RetryMax = defaultFetcherRetryMax
	}

	if f.Endpoint == "" {
		return errors.New("missing parameter: fetcher.endpoint")
	}

	if _, err := url.Parse(f.Endpoint); err != nil {
		return errors.New("fetcher endpoint URL error: " + err.Error())
	}

	if f.DisableOAuth {
		return nil
	}

	if f.OidcIssuerEndpoint == "" {
		return errors.New("fetcher oidc_issuer_endpoint not defined")
	}

	if f.OidcAudienceEndpoint == "" {
		return errors.New("fetcher oidc_audience_endpoint not defined")
	}

	if f.OidcClientSecret == "" {
		return errors.New("fetcher oidc_client_secret not defined")
	}

	if f.OidcClientID == "" {
		return errors.New("fetcher oidc_client_id not defined")
	}

	if len(f.OidcClientScopes) == 0 {
		return errors.New("fetcher oidc_client_scopes not defined")
	}

	return nil
}
