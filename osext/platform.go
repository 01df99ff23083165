// Package osext reports host details and carries run scoped values.
package osext

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/host"
)

var (
	platformOnce sync.Once //nolint:gochecknoglobals
	platform     string    //nolint:gochecknoglobals
)

// Platform returns the host platform name as node's os.platform() reports
// it: linux, darwin, win32, freebsd and so on. The value is detected once.
func Platform(ctx context.Context) string {
	platformOnce.Do(func() {
		platform = PlatformName(detectOS(ctx))
	})
	return platform
}

func detectOS(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil || info.OS == "" {
		return runtime.GOOS
	}
	return info.OS
}

// PlatformName converts a Go style OS name into node's naming.
func PlatformName(goos string) string {
	switch goos = strings.ToLower(goos); goos {
	case "windows":
		return "win32"
	case "illumos", "solaris":
		return "sunos"
	case "":
		return runtime.GOOS
	default:
		return goos
	}
}
