//go:build !linux

package backends

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/Raikerian/go-livecapture/internal/platform"
)

const autoBackend = "miniaudio"

func openPulse(*zap.Logger, string) (platform.Platform, error) {
	return nil, fmt.Errorf("pulse on %s: %w", runtime.GOOS, platform.ErrUnsupported)
}
