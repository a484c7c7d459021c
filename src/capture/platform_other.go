//go:build !windows

package capture

func newOSPlatform() Platform { return defaultPlatform{} }
