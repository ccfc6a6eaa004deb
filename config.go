package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	defaultConfigPath = "oasis.toml"
	liveEnvPrefix     = "BACKUP_DB_"
)

// Config holds the TOML-driven settings of the backup tool.
type Config struct {
	Live  ConnectionDescriptor `toml:"live"`
	Log   LogConfig            `toml:"log"`
	Serve ServeConfig          `toml:"serve"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // trace|debug|info|warn|error
	Format string `toml:"format"` // console|json
}

// ServeConfig configures the HTTP surface of serve mode.
type ServeConfig struct {
	Listen string `toml:"listen"`
}

func defaultConfig() Config {
	return Config{
		Live: ConnectionDescriptor{Driver: "mysql"},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Serve: ServeConfig{Listen: ":9187"},
	}
}

// loadConfig reads path (when it exists), loads a sibling .env file and
// overlays BACKUP_DB_* variables onto the live connection. A missing file is
// an error only when required is set.
func loadConfig(path string, required bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, &ConfigurationError{Msg: "parse config " + path, Err: err}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, configErrorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, &ConfigurationError{Msg: "read config", Err: err}
	}

	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	live, err := overlayLiveEnv(cfg.Live)
	if err != nil {
		return nil, err
	}
	cfg.Live = live
	cfg.Live.Tag = "source"

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return nil, configErrorf("log.level must be one of trace, debug, info, warn, error; got %q", cfg.Log.Level)
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return nil, configErrorf("log.format must be console or json; got %q", cfg.Log.Format)
	}
	if strings.TrimSpace(cfg.Serve.Listen) == "" {
		return nil, configErrorf("serve.listen must not be empty")
	}
	return &cfg, nil
}

// loadDotEnv loads dir/.env without overriding variables already set.
func loadDotEnv(dir string) error {
	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	if err := godotenv.Load(p); err != nil {
		return &ConfigurationError{Msg: "load " + p, Err: err}
	}
	return nil
}

// overlayLiveEnv layers BACKUP_DB_URL, BACKUP_DB_USERNAME, BACKUP_DB_PASSWORD
// and BACKUP_DB_DRIVER over the file values. Empty variables are ignored.
func overlayLiveEnv(base ConnectionDescriptor) (ConnectionDescriptor, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(base, "koanf"), nil); err != nil {
		return base, &ConfigurationError{Msg: "load live defaults", Err: err}
	}
	if err := k.Load(env.Provider(liveEnvPrefix, ".", liveEnvKey), nil); err != nil {
		return base, &ConfigurationError{Msg: "load live environment", Err: err}
	}
	var out ConnectionDescriptor
	if err := k.Unmarshal("", &out); err != nil {
		return base, &ConfigurationError{Msg: "decode live connection", Err: err}
	}
	return out, nil
}

// liveEnvKey maps BACKUP_DB_URL to "url". Unknown and empty variables map to
// "" and are dropped by the provider.
func liveEnvKey(key string) string {
	if os.Getenv(key) == "" {
		return ""
	}
	switch name := strings.ToLower(strings.TrimPrefix(key, liveEnvPrefix)); name {
	case "url", "username", "password", "driver":
		return name
	default:
		return ""
	}
}

var descriptorValidator = newDescriptorValidator()

func newDescriptorValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("dialect", func(fl validator.FieldLevel) bool {
		_, err := lookupDialect(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// validateDescriptor checks that desc names a URL and a supported driver.
func validateDescriptor(desc ConnectionDescriptor) error {
	err := descriptorValidator.Struct(desc)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "dialect":
			return configErrorf("%s connection: unsupported driver %q", descTag(desc), desc.Driver)
		default:
			return configErrorf("%s connection: %s is required", descTag(desc), strings.ToLower(fe.Field()))
		}
	}
	return &ConfigurationError{Msg: "validate " + descTag(desc) + " connection", Err: err}
}

// liveDescriptor returns the validated live connection.
func liveDescriptor(cfg *Config) (ConnectionDescriptor, error) {
	if err := validateDescriptor(cfg.Live); err != nil {
		return ConnectionDescriptor{}, fmt.Errorf("live database: %w", err)
	}
	return cfg.Live, nil
}
