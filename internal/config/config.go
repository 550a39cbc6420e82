// Package config loads service configuration from an optional YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"time"

	pg "github.com/mingyuchen/activity-tracker-go/internal/store/postgres"
)

type App struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Redis struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type Auth struct {
	Secret       string        `mapstructure:"secret"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookiePath   string        `mapstructure:"cookie_path"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type Report struct {
	Dir string `mapstructure:"dir"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	App     App       `mapstructure:"app"`
	Server  Server    `mapstructure:"server"`
	DB      pg.Config `mapstructure:"db"`
	Redis   Redis     `mapstructure:"redis"`
	Auth    Auth      `mapstructure:"auth"`
	Report  Report    `mapstructure:"report"`
	Log     Log       `mapstructure:"log"`
	Metrics Metrics   `mapstructure:"metrics"`
}

// Validate rejects configurations that must never reach production. The dev
// environment is exempt from the secret check so `make run` works out of the
// box.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" && c.App.Env != "dev" {
		return errors.New("auth.secret must be set outside dev")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("auth token TTLs must be positive")
	}
	if c.Auth.RefreshTTL <= c.Auth.AccessTTL {
		return errors.New("auth.refresh_ttl must exceed auth.access_ttl")
	}
	return nil
}
