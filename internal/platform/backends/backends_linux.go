//go:build linux

package backends

import (
	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/platform"
	"github.com/Raikerian/go-livecapture/internal/platform/pulse"
)

const autoBackend = "pulse"

func openPulse(logger *zap.Logger, appName string) (platform.Platform, error) {
	p, err := pulse.New(logger, appName)
	if err != nil {
		return nil, err
	}
	return p, nil
}
