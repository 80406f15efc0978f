package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Screenshot captures the current viewport into the durable screenshot
// directory and returns the file path. Screenshots are evidence for the
// user, so unlike session artifacts they live outside the volatile dir.
func (c *Controller) Screenshot(ctx context.Context, name string) (string, error) {
	dir := c.cfg.Paths.ScreenshotDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory %s: %w", dir, err)
	}

	var buf []byte
	if err := c.run(ctx, c.cfg.Network.RequestTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}

	path := filepath.Join(dir, screenshotFile(name))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	c.logger.Info("saved screenshot", zap.String("path", path))
	return path, nil
}

// screenshotFile maps the caller-supplied name to a file name. A name with
// an extension is honored verbatim; anything else is treated as a prefix
// and timestamped so repeated captures never overwrite each other.
func screenshotFile(name string) string {
	if name != "" && filepath.Ext(name) != "" {
		return filepath.Base(name)
	}
	if name == "" {
		name = "page"
	}
	return fmt.Sprintf("%s-%d.png", sanitizeName(name), time.Now().UnixMilli())
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
