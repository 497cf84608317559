//go:build integration

package pdf

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/config"
)

func TestChromeConverterRendersPDF(t *testing.T) {
	path := ""
	for _, candidate := range []string{"chromium", "chromium-browser", "google-chrome"} {
		if p, err := exec.LookPath(candidate); err == nil {
			path = p
			break
		}
	}
	if path == "" {
		t.Skip("no chrome binary available")
	}

	converter := NewChromeConverter(config.PDFConfig{Enabled: true, ChromePath: path, Timeout: time.Minute})
	out, err := converter.Render(context.Background(), "<html><body><h1>IBN25 0042</h1></body></html>")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
