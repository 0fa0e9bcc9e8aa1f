package bootstrap

import (
	"github.com/ylai/autoplatform/config"
)

// Config is the constraint on process configuration types. Any struct that
// embeds config.ServiceConfig satisfies it through promoted methods:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Gateway gateway.Config `yaml:"gateway" mapstructure:"gateway"`
//	}
//
//	app, err := bootstrap.NewApp(&cfg)
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
