package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-rooms/globals"
)

const (
	defaultHistorySize = 100
	defaultRoomId      = "general"
	defaultRoomName    = "General"

	// SectionDeletePolicyOwner restricts live-section deletion to the section
	// owner, SectionDeletePolicyMember allows any room member.
	SectionDeletePolicyOwner  = "owner"
	SectionDeletePolicyMember = "member"
)

// Config is the global configuration object which is filled via the
// configuration file, environment (LSROOMS_*) and command-line flags.
type Config struct {
	HistoryConfig      HistoryConfig      `mapstructure:"history"`
	DefaultRoomConfig  DefaultRoomConfig  `mapstructure:"default_room"`
	RoomEvictionConfig RoomEvictionConfig `mapstructure:"room_eviction"`

	LogLevel            string `mapstructure:"log_level"`
	AllowGuests         bool   `mapstructure:"allow_guests"`
	SectionDeletePolicy string `mapstructure:"section_delete_policy"`
	MentionSelf         bool   `mapstructure:"mention_self"`
}

// HistoryConfig configures the size of the per-room message log that is kept
// in memory and sent to newly connected clients. Once the log exceeds
// HistorySize, the oldest message is evicted.
type HistoryConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

// DefaultRoomConfig describes the room that exists before any client connects
// and that sessions join when no room id is supplied.
type DefaultRoomConfig struct {
	Id   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// RoomEvictionConfig configures the periodic sweep of empty, non-default
// rooms. Disabled by default: rooms then live for the lifetime of the process.
type RoomEvictionConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	IdleMinutes int  `mapstructure:"idle_minutes"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	flagSet.Bool("allow-guests", true, "assign a generated guest name on join without a user id")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath,
// which can either point to a single TOML file or to a directory, in which
// case all *.toml files in this directory are concatenated. It returns a
// Config object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("allow_guests", true)
	viper.SetDefault("section_delete_policy", SectionDeletePolicyOwner)
	viper.SetDefault("mention_self", true)
	viper.SetDefault("history.history_size", defaultHistorySize)
	viper.SetDefault("default_room.id", defaultRoomId)
	viper.SetDefault("default_room.name", defaultRoomName)
	viper.SetDefault("room_eviction.enabled", false)
	viper.SetDefault("room_eviction.idle_minutes", 60)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSROOMS")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	globals.AppLogger.Debug("config", "cfg", cfg, "all", viper.AllSettings())
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.SectionDeletePolicy {
	case SectionDeletePolicyOwner, SectionDeletePolicyMember:
	default:
		return fmt.Errorf("invalid section_delete_policy %q", c.SectionDeletePolicy)
	}
	if c.HistoryConfig.HistorySize <= 0 {
		return fmt.Errorf("history.history_size must be positive")
	}
	if c.DefaultRoomConfig.Id == "" {
		return fmt.Errorf("default_room.id must not be empty")
	}
	if c.RoomEvictionConfig.Enabled && c.RoomEvictionConfig.IdleMinutes <= 0 {
		return fmt.Errorf("room_eviction.idle_minutes must be positive")
	}
	return nil
}
