package config

import (
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LinkConfig carries the fixed archive identifiers stamped on every canonical record.
type LinkConfig struct {
	ArchiveID  string `mapstructure:"archiveId"`
	ARObject   string `mapstructure:"arObject"`
	Reserve    string `mapstructure:"reserve"`
	Instance   string `mapstructure:"instance"`
	Session    string `mapstructure:"session"`
	ArchiveKey string `mapstructure:"archiveKey"`
	Object     string `mapstructure:"object"`
}

func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		ArchiveID:  "penang",
		ARObject:   "penang",
		Reserve:    "PDF",
		Instance:   "DEV",
		Session:    "penang",
		ArchiveKey: "penang",
		Object:     "penang",
	}
}

type LinkConfigHolder struct {
	current atomic.Value // holds LinkConfig
}

// StaticLinkConfig returns a holder that never reloads.
func StaticLinkConfig(cfg LinkConfig) *LinkConfigHolder {
	holder := &LinkConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewLinkConfigHolder(cfg Config) (*LinkConfigHolder, error) {
	v := viper.New()

	if path := strings.TrimSpace(cfg.Pipeline.LinkConfig); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("datasync")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/datasync")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DATASYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultLinkConfig()
	v.SetDefault("link.archiveId", defaults.ArchiveID)
	v.SetDefault("link.arObject", defaults.ARObject)
	v.SetDefault("link.reserve", defaults.Reserve)
	v.SetDefault("link.instance", defaults.Instance)
	v.SetDefault("link.session", defaults.Session)
	v.SetDefault("link.archiveKey", defaults.ArchiveKey)
	v.SetDefault("link.object", defaults.Object)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	link, err := decodeLinkConfig(v)
	if err != nil {
		return nil, err
	}
	if err := validateLinkConfig(link); err != nil {
		return nil, err
	}

	holder := StaticLinkConfig(link)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeLinkConfig(v)
		if err != nil {
			log.Printf("[link-config] reload failed: %v", err)
			return
		}
		if err := validateLinkConfig(updated); err != nil {
			log.Printf("[link-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[link-config] reloaded from %s", filepath.Base(e.Name))
	})

	return holder, nil
}

// decodeLinkConfig goes through AllSettings so keys missing from the file
// fall back to their defaults. UnmarshalKey only sees the file's subtree.
func decodeLinkConfig(v *viper.Viper) (LinkConfig, error) {
	var wrapper struct {
		Link LinkConfig `mapstructure:"link"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return LinkConfig{}, err
	}
	return wrapper.Link, nil
}

func (h *LinkConfigHolder) Get() LinkConfig {
	return h.current.Load().(LinkConfig)
}

func validateLinkConfig(cfg LinkConfig) error {
	if strings.TrimSpace(cfg.ArchiveID) == "" {
		return errors.New("link.archiveId cannot be empty")
	}
	if strings.TrimSpace(cfg.Reserve) == "" {
		return errors.New("link.reserve cannot be empty")
	}
	return nil
}
