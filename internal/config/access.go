package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AccessConfig is the hot-reloadable routing/caching policy consumed by the
// tenant resolver and the request gate.
type AccessConfig struct {
	// PublicPrefixes are route prefixes reachable without a session.
	PublicPrefixes []string `mapstructure:"publicPrefixes"`
	// ReservedSubdomains can never be claimed by an organization.
	ReservedSubdomains []string `mapstructure:"reservedSubdomains"`

	// Cache TTLs. Organization and subscription rows are mutated concurrently
	// by setup completion and billing webhooks; a stale Allow that outlives a
	// plan cancellation is a security defect, so these stay short.
	OrganizationTTL time.Duration `mapstructure:"organizationTTL"`
	SubscriptionTTL time.Duration `mapstructure:"subscriptionTTL"`
	PermissionTTL   time.Duration `mapstructure:"permissionTTL"`
}

func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		PublicPrefixes:     []string{"/", "/sign-in", "/sign-up", "/invite", "/pricing"},
		ReservedSubdomains: []string{"www", "app", "api", "admin", "extranet"},
		OrganizationTTL:    5 * time.Second,
		SubscriptionTTL:    5 * time.Second,
		PermissionTTL:      10 * time.Second,
	}
}

// IsReservedSubdomain reports whether the label may not be claimed.
func (c AccessConfig) IsReservedSubdomain(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, reserved := range c.ReservedSubdomains {
		if label == reserved {
			return true
		}
	}
	return false
}

// AccessConfigHolder hands out the current AccessConfig and hot-reloads it
// when the backing file changes.
type AccessConfigHolder struct {
	current atomic.Value // holds AccessConfig
}

func NewAccessConfigHolder() (*AccessConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("access")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/lokera/config")
	v.AddConfigPath("/etc/lokera")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LOKERA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAccessConfig()
	v.SetDefault("access.publicPrefixes", defaults.PublicPrefixes)
	v.SetDefault("access.reservedSubdomains", defaults.ReservedSubdomains)
	v.SetDefault("access.organizationTTL", defaults.OrganizationTTL)
	v.SetDefault("access.subscriptionTTL", defaults.SubscriptionTTL)
	v.SetDefault("access.permissionTTL", defaults.PermissionTTL)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg AccessConfig
	if err := v.UnmarshalKey("access", &cfg); err != nil {
		return nil, err
	}
	if err := validateAccessConfig(cfg); err != nil {
		return nil, err
	}

	holder := &AccessConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AccessConfig
		if err := v.UnmarshalKey("access", &updated); err != nil {
			log.Printf("[access-config] reload failed: %v", err)
			return
		}
		if err := validateAccessConfig(updated); err != nil {
			log.Printf("[access-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[access-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticAccessConfigHolder wraps a fixed config, for tests.
func NewStaticAccessConfigHolder(cfg AccessConfig) *AccessConfigHolder {
	holder := &AccessConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *AccessConfigHolder) Get() AccessConfig {
	return h.current.Load().(AccessConfig)
}

func validateAccessConfig(cfg AccessConfig) error {
	if len(cfg.PublicPrefixes) == 0 {
		return errors.New("access.publicPrefixes cannot be empty")
	}
	if cfg.OrganizationTTL <= 0 || cfg.SubscriptionTTL <= 0 || cfg.PermissionTTL <= 0 {
		return errors.New("access cache TTLs must be positive")
	}
	return nil
}
