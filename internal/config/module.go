// Package config provides configuration infrastructure and Fx modules.
package config

import (
	"go.uber.org/fx"
)

// Module provides *Config from a supplied Source.
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)
