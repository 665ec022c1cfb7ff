// Package config resolves the target configuration for a bringup session.
//
// Configuration comes from a YAML file (given with --config or found in the
// usual search paths), with BRINGUP_* environment variables overriding
// individual keys. All validation happens here, before any target hardware
// is touched: a bad configuration must surface immediately, never mid
// session.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the resolved configuration for one bringup run.
type Config struct {
	Target  TargetConfig  `mapstructure:"target"`
	Session SessionConfig `mapstructure:"session"`
}

// TargetConfig describes how to reach and power the target.
type TargetConfig struct {
	Name    string        `mapstructure:"name"`
	Console ConsoleConfig `mapstructure:"console"`
	Power   PowerConfig   `mapstructure:"power"`
}

// ConsoleConfig selects and parameterizes the console driver.
type ConsoleConfig struct {
	// Type is one of "serial", "command", or "websocket".
	Type string `mapstructure:"type"`

	// Serial settings.
	Device string `mapstructure:"device"`
	Baud   int    `mapstructure:"baud"`

	// Command settings: the emulator invocation, argv style.
	Command []string `mapstructure:"command"`

	// WebSocket settings.
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// PowerConfig selects and parameterizes the power controller.
type PowerConfig struct {
	// Type is one of "ipmi", "command", or "none". Empty means none.
	Type string `mapstructure:"type"`

	// IPMI settings.
	Endpoint string `mapstructure:"endpoint"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Command settings: argv to switch power on and off, sd-mux style.
	On  []string `mapstructure:"on"`
	Off []string `mapstructure:"off"`
}

// SessionConfig carries session defaults that CLI flags may override.
type SessionConfig struct {
	// Timeout limits the session duration. Unit-less numbers mean seconds,
	// matching the --timeout flag; "90s", "2m" etc. work as written.
	// Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	Log string `mapstructure:"log"`
}

// Load reads the configuration. With an explicit path only that file is
// considered; otherwise config.yaml is searched in the working directory,
// $HOME/.bringup and /etc/bringup, and a missing file yields defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bringup")
		v.AddConfigPath("/etc/bringup/")
	}

	v.SetEnvPrefix("BRINGUP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Nested keys need explicit binds for env overrides to reach Unmarshal.
	// With the BRINGUP prefix these become BRINGUP_TARGET_CONSOLE_DEVICE etc.
	for _, key := range []string{
		"target.console.type",
		"target.console.device",
		"target.console.baud",
		"target.console.url",
		"target.console.username",
		"target.console.password",
		"target.power.type",
		"target.power.endpoint",
		"target.power.username",
		"target.power.password",
		"session.timeout",
		"session.log",
	} {
		v.BindEnv(key)
	}

	v.SetDefault("target.console.baud", 115200)
	v.SetDefault("session.timeout", time.Minute)

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		numberAsSecondsHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// numberAsSecondsHookFunc decodes unit-less numbers into durations as
// seconds, so `timeout: 60` and `timeout: 60s` agree with the --timeout
// flag. Values that already are durations, and duration strings, pass
// through untouched.
func numberAsSecondsHookFunc() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		}
		return data, nil
	}
}

// Validate checks cross-field consistency of the configuration.
func (c *Config) Validate() error {
	con := c.Target.Console
	switch con.Type {
	case "serial":
		if con.Device == "" {
			return fmt.Errorf("console type serial requires target.console.device")
		}
	case "command":
		if len(con.Command) == 0 {
			return fmt.Errorf("console type command requires target.console.command")
		}
	case "websocket":
		if con.URL == "" {
			return fmt.Errorf("console type websocket requires target.console.url")
		}
	case "":
		return fmt.Errorf("target.console.type is required")
	default:
		return fmt.Errorf("unknown console type %q", con.Type)
	}

	pow := c.Target.Power
	switch pow.Type {
	case "", "none":
	case "ipmi":
		if pow.Endpoint == "" {
			return fmt.Errorf("power type ipmi requires target.power.endpoint")
		}
	case "command":
		if len(pow.On) == 0 || len(pow.Off) == 0 {
			return fmt.Errorf("power type command requires target.power.on and target.power.off")
		}
	default:
		return fmt.Errorf("unknown power type %q", pow.Type)
	}

	if c.Session.Timeout < 0 {
		return fmt.Errorf("session.timeout must not be negative")
	}
	return nil
}
