package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ardnew/usbtree/pkg"
)

// EnvPrefix prefixes environment overrides, e.g. USBTREE_INTERVAL=1s or
// USBTREE_NATS_URL=nats://localhost:4222.
const EnvPrefix = "USBTREE"

// Config defines the usbtree configuration.
type Config struct {
	Interval  time.Duration `mapstructure:"interval"`   // Poll period
	SysfsRoot string        `mapstructure:"sysfs_root"` // USB device directory
	USBIDs    []string      `mapstructure:"usbids"`     // usb.ids search paths
	Watch     bool          `mapstructure:"watch"`      // Keep running and print changes
	Hotplug   bool          `mapstructure:"hotplug"`    // Poll on kernel uevents too
	Log       LogConfig     `mapstructure:"log"`
	NATS      NATSConfig    `mapstructure:"nats"`
	Profile   ProfileConfig `mapstructure:"profile"`

	ConfigFile string `mapstructure:"-"` // File the configuration was read from
}

// LogConfig defines logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// NATSConfig defines the optional event publisher.
type NATSConfig struct {
	URL     string `mapstructure:"url"`     // Empty disables publishing
	Subject string `mapstructure:"subject"` // Subject prefix
}

// ProfileConfig defines runtime profiling. It needs a binary built with
// the profile tag.
type ProfileConfig struct {
	CPU  string `mapstructure:"cpu"`  // CPU profile output path
	Heap string `mapstructure:"heap"` // Heap profile output path
	Addr string `mapstructure:"addr"` // pprof HTTP listen address
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"interval":     "interval",
	"sysfs_root":   "sysfs_root",
	"usbids":       "usbids",
	"watch":        "watch",
	"hotplug":      "hotplug",
	"log_level":    "log.level",
	"log_format":   "log.format",
	"nats_url":     "nats.url",
	"nats_subject": "nats.subject",
	"cpuprofile":   "profile.cpu",
	"memprofile":   "profile.heap",
	"pprof_addr":   "profile.addr",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", 200*time.Millisecond)
	v.SetDefault("sysfs_root", "/sys/bus/usb/devices")
	v.SetDefault("usbids", []string{
		"/usr/share/hwdata/usb.ids",
		"/var/lib/usbutils/usb.ids",
		"/usr/share/misc/usb.ids",
	})
	v.SetDefault("watch", false)
	v.SetDefault("hotplug", true)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "usbtree")
	v.SetDefault("profile.cpu", "")
	v.SetDefault("profile.heap", "")
	v.SetDefault("profile.addr", "")
}

// Flags returns the command-line flags understood by Load. Their defaults
// match the configuration defaults.
func Flags(name string) *pflag.FlagSet {
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.DurationP("interval", "i", v.GetDuration("interval"), "Poll interval.")
	fs.String("sysfs_root", v.GetString("sysfs_root"), "Sysfs USB device directory.")
	fs.StringSlice("usbids", v.GetStringSlice("usbids"), "usb.ids database search paths.")
	fs.BoolP("watch", "w", v.GetBool("watch"), "Keep running and print device changes.")
	fs.Bool("hotplug", v.GetBool("hotplug"), "Poll immediately on kernel hotplug events.")
	fs.StringP("log_level", "v", v.GetString("log.level"), "Log verbosity level (debug, info, warn, error).")
	fs.String("log_format", v.GetString("log.format"), "Log format (text, json).")
	fs.String("nats_url", v.GetString("nats.url"), "NATS server URL; empty disables publishing.")
	fs.String("nats_subject", v.GetString("nats.subject"), "NATS subject prefix.")
	fs.String("cpuprofile", v.GetString("profile.cpu"), "Write a CPU profile to this file.")
	fs.String("memprofile", v.GetString("profile.heap"), "Write a heap profile to this file on exit.")
	fs.String("pprof_addr", v.GetString("profile.addr"), "Serve pprof handlers on this address.")
	return fs
}

// Load reads the configuration from defaults, the config file, the
// environment and fs, in increasing order of precedence. fs may be nil.
// Without an explicit file, usbtree.yaml is searched in ., $HOME/.usbtree
// and /etc/usbtree; a missing file is not an error.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFile string
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("usbtree")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.usbtree")
		v.AddConfigPath("/etc/usbtree/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.ConfigFile = v.ConfigFileUsed()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks value ranges and normalizes enumerations.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval %v must be positive: %w", c.Interval, pkg.ErrInvalidParameter)
	}

	c.Log.Level = strings.ToLower(c.Log.Level)
	if _, ok := pkg.ParseLogLevel(c.Log.Level); !ok {
		return fmt.Errorf("log level %q: %w", c.Log.Level, pkg.ErrInvalidParameter)
	}

	c.Log.Format = strings.ToLower(c.Log.Format)
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format %q: %w", c.Log.Format, pkg.ErrInvalidParameter)
	}

	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("nats subject required with nats url: %w", pkg.ErrInvalidParameter)
	}
	return nil
}
