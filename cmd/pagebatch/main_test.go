package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/batch"
	"github.com/pagebatch/pagebatch/chromium"
	"github.com/pagebatch/pagebatch/config"
	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/operation"
	"github.com/pagebatch/pagebatch/pwdriver"
	"github.com/pagebatch/pagebatch/session"
)

func TestReadItems(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b/items.json", []byte(`[{"operation":"navigate","url":"https://example.com"}]`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b/items.YML", []byte("- operation: getText\n  url: https://example.com\n  selector: h1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/b/items.csv", []byte("navigate,https://example.com"), 0o644))

	items, err := readItems(fs, "/b/items.json")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "navigate", items[0].Operation)

	items, err = readItems(fs, "/b/items.YML")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "h1", items[0].Selector.String)

	_, err = readItems(fs, "/b/items.csv")
	assert.ErrorContains(t, err, "unsupported batch file")

	_, err = readItems(fs, "/b/missing.json")
	assert.ErrorContains(t, err, "opening batch file")
}

func TestWriteOutputs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeOutputs(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	require.NoError(t, writeOutputs(&buf, []batch.Output{
		{JSON: map[string]any{"url": "https://example.com"}},
		{
			JSON: map[string]any{},
			Binary: map[string]*batch.Binary{
				"screenshot": {Data: []byte("png"), MimeType: "image/png", FileName: "screenshot.png"},
			},
		},
	}))
	assert.Contains(t, buf.String(), `"url": "https://example.com"`)
	assert.Contains(t, buf.String(), `"data": "cG5n"`)
	assert.Contains(t, buf.String(), `"mimeType": "image/png"`)
	assert.NotContains(t, buf.String(), `"binary": null`)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := renderSummary(&buf, []batch.Report{
		{Index: 0, Engine: api.EngineChromium, Operation: operation.KindGetText, Duration: 1234 * time.Millisecond},
		{
			Index: 1, Engine: api.EngineFirefox, Operation: operation.KindNavigate, Installed: true,
			Err: &session.NavigationError{URL: "http://x.test", Err: errors.New("net::ERR_NAME_NOT_RESOLVED")},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "getText")
	assert.Contains(t, out, "1.234s")
	assert.Contains(t, out, "navigation")
	assert.Contains(t, out, "2 items:")
	assert.Contains(t, out, "1 failed")
}

func TestNewDrivers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend config.Backend
		want    map[api.EngineType]string
	}{
		{config.BackendAuto, map[api.EngineType]string{
			api.EngineChromium: "cdp", api.EngineFirefox: "playwright", api.EngineWebKit: "playwright",
		}},
		{config.BackendCDP, map[api.EngineType]string{api.EngineChromium: "cdp"}},
		{config.BackendPlaywright, map[api.EngineType]string{
			api.EngineChromium: "playwright", api.EngineFirefox: "playwright", api.EngineWebKit: "playwright",
		}},
	}
	for _, tt := range tests {
		drivers, stop := newDrivers(tt.backend, log.NewNullLogger())
		got := make(map[api.EngineType]string)
		for e, d := range drivers {
			switch d.(type) {
			case *chromium.BrowserType:
				got[e] = "cdp"
			case *pwdriver.BrowserType:
				got[e] = "playwright"
			}
			assert.Equal(t, e.String(), d.Name(), "%s", tt.backend)
		}
		assert.Equal(t, tt.want, got, "%s", tt.backend)
		assert.NoError(t, stop(), "an unstarted driver stops cleanly")
	}
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(newGlobalState(&stdout, &stderr))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), stderr.String(), err
}

func TestResolveCommand(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("install layout is linux specific")
	}

	root := t.TempDir()
	bin := filepath.Join(root, "chromium-1091", "chrome-linux", "chrome")
	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755)) //nolint:gosec

	stdout, _, err := executeCommand(t, "resolve", "chromium", "--install-root", root, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, bin, strings.TrimSpace(stdout))

	_, _, err = executeCommand(t, "resolve", "webkit", "--install-root", root)
	assert.ErrorContains(t, err, "webkit executable not found")

	_, _, err = executeCommand(t, "resolve", "netscape", "--install-root", root)
	assert.ErrorContains(t, err, "unknown browser type")
}

func TestRunCommandErrors(t *testing.T) {
	t.Parallel()

	_, _, err := executeCommand(t, "run", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "opening batch file")

	_, _, err = executeCommand(t, "run", "items.json", "--backend", "selenium")
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, _, err = executeCommand(t, "--log-level", "loud", "run", "items.json")
	assert.Error(t, err)
}
