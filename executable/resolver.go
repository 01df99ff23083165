// Package executable finds engine binaries in a browser installation root.
package executable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/pagebatch/pagebatch/api"
)

// ErrNotFound is matched by errors reporting a missing engine binary.
var ErrNotFound = errors.New("browser executable not found")

// NotFoundError reports which paths were probed for an engine binary.
type NotFoundError struct {
	Engine api.EngineType
	Root   string
	Probed []string
}

func (e *NotFoundError) Error() string {
	if len(e.Probed) == 0 {
		return fmt.Sprintf("%s executable not found: no %s installation in %q", e.Engine, e.Engine, e.Root)
	}
	return fmt.Sprintf("%s executable not found, looked for %s", e.Engine, strings.Join(e.Probed, ", "))
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// binaries lists the binary paths, relative to a revision directory, per
// engine and OS. Earlier entries are preferred.
var binaries = map[api.EngineType]map[string][]string{ //nolint:gochecknoglobals
	api.EngineChromium: {
		"linux": {"chrome-linux64/chrome", "chrome-linux/chrome"},
		"darwin": {
			"chrome-mac-arm64/Chromium.app/Contents/MacOS/Chromium",
			"chrome-mac/Chromium.app/Contents/MacOS/Chromium",
		},
		"windows": {"chrome-win64/chrome.exe", "chrome-win/chrome.exe"},
	},
	api.EngineFirefox: {
		"linux":   {"firefox/firefox"},
		"darwin":  {"firefox/Nightly.app/Contents/MacOS/firefox"},
		"windows": {"firefox/firefox.exe"},
	},
	api.EngineWebKit: {
		"linux":   {"pw_run.sh"},
		"darwin":  {"pw_run.sh"},
		"windows": {"Playwright.exe"},
	},
}

// Resolver resolves engine binaries on a filesystem. It only reads.
type Resolver struct {
	fs   afero.Fs
	goos string
}

// NewResolver returns a resolver for the host OS reading from fs.
func NewResolver(fs afero.Fs) *Resolver {
	return &Resolver{fs: fs, goos: runtime.GOOS}
}

type revision struct {
	dir string
	rev int
}

// Resolve returns the path of engine's binary in installRoot. Installations
// live in <installRoot>/<engine>-<revision>, the highest revision holding a
// valid binary wins.
func (r *Resolver) Resolve(engine api.EngineType, installRoot string) (string, error) {
	relBins, ok := binaries[engine][r.goos]
	if !ok {
		return "", fmt.Errorf("no known %s layout for %s", engine, r.goos)
	}

	revs, err := r.revisions(engine, installRoot)
	if errors.Is(err, os.ErrNotExist) {
		return "", &NotFoundError{Engine: engine, Root: installRoot}
	}
	if err != nil {
		return "", fmt.Errorf("listing %q: %w", installRoot, err)
	}

	nf := &NotFoundError{Engine: engine, Root: installRoot}
	for _, rv := range revs {
		for _, rel := range relBins {
			p := filepath.Join(installRoot, rv.dir, filepath.FromSlash(rel))
			nf.Probed = append(nf.Probed, p)
			if r.valid(p) {
				return p, nil
			}
		}
	}

	return "", nf
}

func (r *Resolver) revisions(engine api.EngineType, root string) ([]revision, error) {
	entries, err := afero.ReadDir(r.fs, root)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	re := regexp.MustCompile(`^` + regexp.QuoteMeta(engine.String()) + `-(\d+)$`)
	var revs []revision
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		revs = append(revs, revision{dir: e.Name(), rev: n})
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i].rev > revs[j].rev })

	return revs, nil
}

// valid reports whether p is a regular file that can be executed.
func (r *Resolver) valid(p string) bool {
	fi, err := r.fs.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	if r.goos == "windows" {
		return true
	}
	return fi.Mode().Perm()&0o111 != 0
}

// DefaultInstallRoot returns where the playwright installer puts browsers:
// $PLAYWRIGHT_BROWSERS_PATH if set, else ms-playwright in the user cache
// directory.
func DefaultInstallRoot() (string, error) {
	if p := os.Getenv("PLAYWRIGHT_BROWSERS_PATH"); p != "" && p != "0" {
		return p, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("finding the browser install root: %w", err)
	}

	return filepath.Join(cache, "ms-playwright"), nil
}
