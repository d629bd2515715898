package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Swapped out in tests so unsupported platforms are reachable.
var osName = func() string { return runtime.GOOS }

// OpenBrowser launches the system browser at url, used to kick off the
// Spotify authorization flow without the user copying a link by hand.
// The browser process is started and not waited on.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch os := osName(); os {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", os)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
