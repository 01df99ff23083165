package executable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagebatch/pagebatch/api"
)

const root = "/cache/ms-playwright"

func newTestResolver(t *testing.T, goos string, files map[string]uint32) *Resolver {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(root, 0o755))
	for name, mode := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fs, p, []byte("bin"), 0o600))
		require.NoError(t, fs.Chmod(p, os.FileMode(mode)))
	}

	return &Resolver{fs: fs, goos: goos}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		goos   string
		engine api.EngineType
		files  map[string]uint32
		want   string
	}{
		{
			name:   "chromium_linux64",
			goos:   "linux",
			engine: api.EngineChromium,
			files:  map[string]uint32{"chromium-1140/chrome-linux64/chrome": 0o755},
			want:   "chromium-1140/chrome-linux64/chrome",
		},
		{
			name:   "chromium_legacy_layout",
			goos:   "linux",
			engine: api.EngineChromium,
			files:  map[string]uint32{"chromium-1091/chrome-linux/chrome": 0o755},
			want:   "chromium-1091/chrome-linux/chrome",
		},
		{
			name:   "highest_revision_wins",
			goos:   "linux",
			engine: api.EngineChromium,
			files: map[string]uint32{
				"chromium-999/chrome-linux/chrome":     0o755,
				"chromium-1140/chrome-linux64/chrome":  0o755,
				"chromium-1005/chrome-linux64/chrome":  0o755,
				"chromium_headless_shell-2000/chrome":  0o755,
				"chromium-tip-of-tree-3000/chrome-bin": 0o755,
			},
			want: "chromium-1140/chrome-linux64/chrome",
		},
		{
			name:   "skips_revision_without_exec_bit",
			goos:   "linux",
			engine: api.EngineChromium,
			files: map[string]uint32{
				"chromium-1140/chrome-linux64/chrome": 0o644,
				"chromium-1100/chrome-linux64/chrome": 0o755,
			},
			want: "chromium-1100/chrome-linux64/chrome",
		},
		{
			name:   "firefox_linux",
			goos:   "linux",
			engine: api.EngineFirefox,
			files:  map[string]uint32{"firefox-1465/firefox/firefox": 0o755},
			want:   "firefox-1465/firefox/firefox",
		},
		{
			name:   "firefox_darwin",
			goos:   "darwin",
			engine: api.EngineFirefox,
			files:  map[string]uint32{"firefox-1465/firefox/Nightly.app/Contents/MacOS/firefox": 0o755},
			want:   "firefox-1465/firefox/Nightly.app/Contents/MacOS/firefox",
		},
		{
			name:   "webkit_linux",
			goos:   "linux",
			engine: api.EngineWebKit,
			files:  map[string]uint32{"webkit-2070/pw_run.sh": 0o755},
			want:   "webkit-2070/pw_run.sh",
		},
		{
			name:   "windows_ignores_exec_bit",
			goos:   "windows",
			engine: api.EngineWebKit,
			files:  map[string]uint32{"webkit-2070/Playwright.exe": 0o644},
			want:   "webkit-2070/Playwright.exe",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestResolver(t, tt.goos, tt.files)
			got, err := r.Resolve(tt.engine, root)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got)

			// deterministic
			again, err := r.Resolve(tt.engine, root)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Parallel()

	t.Run("missing_root", func(t *testing.T) {
		t.Parallel()

		r := &Resolver{fs: afero.NewMemMapFs(), goos: "linux"}
		_, err := r.Resolve(api.EngineChromium, "/nowhere")
		require.ErrorIs(t, err, ErrNotFound)

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Empty(t, nf.Probed)
		assert.Contains(t, err.Error(), "/nowhere")
	})
	t.Run("other_engine_installed", func(t *testing.T) {
		t.Parallel()

		r := newTestResolver(t, "linux", map[string]uint32{"firefox-1465/firefox/firefox": 0o755})
		_, err := r.Resolve(api.EngineChromium, root)
		require.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("directory_instead_of_binary", func(t *testing.T) {
		t.Parallel()

		r := newTestResolver(t, "linux", nil)
		require.NoError(t, r.fs.MkdirAll(filepath.Join(root, "webkit-2070", "pw_run.sh"), 0o755))
		_, err := r.Resolve(api.EngineWebKit, root)
		require.ErrorIs(t, err, ErrNotFound)

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, []string{filepath.Join(root, "webkit-2070", "pw_run.sh")}, nf.Probed)
	})
	t.Run("not_executable", func(t *testing.T) {
		t.Parallel()

		r := newTestResolver(t, "linux", map[string]uint32{"chromium-1140/chrome-linux64/chrome": 0o600})
		_, err := r.Resolve(api.EngineChromium, root)
		require.ErrorIs(t, err, ErrNotFound)

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Len(t, nf.Probed, 2)
	})
}

func TestResolveUnknownOS(t *testing.T) {
	t.Parallel()

	r := &Resolver{fs: afero.NewMemMapFs(), goos: "plan9"}
	_, err := r.Resolve(api.EngineChromium, root)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDefaultInstallRoot(t *testing.T) {
	t.Setenv("PLAYWRIGHT_BROWSERS_PATH", "/opt/browsers")
	got, err := DefaultInstallRoot()
	require.NoError(t, err)
	assert.Equal(t, "/opt/browsers", got)

	t.Setenv("PLAYWRIGHT_BROWSERS_PATH", "")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/home/someone")
	got, err = DefaultInstallRoot()
	require.NoError(t, err)
	assert.Equal(t, "ms-playwright", filepath.Base(got))
}
