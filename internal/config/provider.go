package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Provider resolves configuration values that may legitimately be missing,
// such as the credentials of a payment gateway that is not enabled.
// A key whose value is empty or only whitespace is reported as absent.
type Provider interface {
	Lookup(key string) (string, bool)
}

// EnvProvider reads keys from the process environment through viper on every
// call, so rotated secrets are picked up without a restart.
type EnvProvider struct{}

func NewEnvProvider() EnvProvider {
	viper.AutomaticEnv()
	return EnvProvider{}
}

func (EnvProvider) Lookup(key string) (string, bool) {
	v := strings.TrimSpace(viper.GetString(key))
	return v, v != ""
}

// StaticProvider is a fixed key/value Provider.
type StaticProvider map[string]string

func (p StaticProvider) Lookup(key string) (string, bool) {
	v := strings.TrimSpace(p[key])
	return v, v != ""
}
