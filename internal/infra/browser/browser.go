// Package browser opens URLs in the user's default browser.
package browser

import (
	"os/exec"
	"runtime"

	"github.com/cockroachdb/errors"
)

// Open launches the default browser at url.
func Open(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to open browser")
	}
	return nil
}
