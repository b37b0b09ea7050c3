package version

// Version is overridden at build time via
// -ldflags "-X github.com/wsl-tools/wslportd/pkg/version.Version=v0.1.0".
var Version = "v0.0.0-unknown"
