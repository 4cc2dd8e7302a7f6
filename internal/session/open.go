package session

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// OpenFile opens path with xdg-open, open or start depending on the platform.
func OpenFile(ctx context.Context, path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", path)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", path)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", path)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to open %s: %w (%s)", path, err, out)
	}
	return nil
}
