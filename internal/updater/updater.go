// Package updater checks GitHub for newer esp32-copilot releases and can
// replace the running binary with the matching release asset.
//
// The check is best-effort: "serve" and "http" run it in the background
// and print a notice to stderr, never to stdout (which belongs to MCP).
package updater

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	githubRepo = "HendryAvila/esp32-copilot"
	binaryName = "esp32-copilot"

	checkTimeout = 10 * time.Second
	// maxArchiveBytes bounds a downloaded release archive.
	maxArchiveBytes = 64 << 20
)

// ErrUpToDate is returned by Update when no newer release exists.
var ErrUpToDate = errors.New("already at the latest version")

// Test seams.
var (
	releaseEndpoint = "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	httpClient      = &http.Client{Timeout: checkTimeout}
	executablePath  = os.Executable
)

type release struct {
	TagName string  `json:"tag_name"`
	HTMLURL string  `json:"html_url"`
	Assets  []asset `json:"assets"`
}

type asset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
}

// Result describes the outcome of a version check.
type Result struct {
	Current         string
	Latest          string
	UpdateAvailable bool
	ReleaseURL      string
}

// Check compares current against the latest GitHub release. Network and
// decoding failures yield a Result with UpdateAvailable false.
func Check(ctx context.Context, current string) Result {
	res := Result{Current: normalizeVersion(current)}
	rel, err := latestRelease(ctx, current)
	if err != nil {
		return res
	}
	res.Latest = normalizeVersion(rel.TagName)
	res.ReleaseURL = rel.HTMLURL
	res.UpdateAvailable = isNewer(res.Current, res.Latest)
	return res
}

// Update downloads the release asset for this platform and swaps it in
// for the running executable. It returns the installed version.
func Update(ctx context.Context, current string) (string, error) {
	rel, err := latestRelease(ctx, current)
	if err != nil {
		return "", err
	}
	latest := normalizeVersion(rel.TagName)
	if !isNewer(normalizeVersion(current), latest) {
		return "", fmt.Errorf("%w (%s)", ErrUpToDate, normalizeVersion(current))
	}

	name := assetName(runtime.GOOS, runtime.GOARCH, latest)
	var url string
	for _, a := range rel.Assets {
		if a.Name == name {
			url = a.URL
			break
		}
	}
	if url == "" {
		return "", fmt.Errorf("no release asset %s for %s/%s", name, runtime.GOOS, runtime.GOARCH)
	}

	archive, err := download(ctx, url)
	if err != nil {
		return "", err
	}
	bin, err := extractBinary(archive, name)
	if err != nil {
		return "", fmt.Errorf("extracting binary: %w", err)
	}

	exe, err := executablePath()
	if err != nil {
		return "", fmt.Errorf("finding current executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	if err := replaceExecutable(exe, bin); err != nil {
		return "", err
	}
	return latest, nil
}

func latestRelease(ctx context.Context, current string) (release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseEndpoint, nil)
	if err != nil {
		return release{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", binaryName+"/"+current)

	resp, err := httpClient.Do(req)
	if err != nil {
		return release{}, fmt.Errorf("checking latest release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return release{}, fmt.Errorf("GitHub API returned %d", resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return release{}, fmt.Errorf("parsing release info: %w", err)
	}
	return rel, nil
}

func download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading download: %w", err)
	}
	if len(data) > maxArchiveBytes {
		return nil, fmt.Errorf("release archive exceeds %d bytes", maxArchiveBytes)
	}
	return data, nil
}

// replaceExecutable writes data next to path and renames it over path.
// Windows cannot overwrite a running binary, so the old one is moved
// aside first.
func replaceExecutable(path string, data []byte) error {
	tmp := path + ".new"
	if err := os.WriteFile(tmp, data, 0o755); err != nil {
		return fmt.Errorf("writing new binary: %w", err)
	}
	if runtime.GOOS == "windows" {
		old := path + ".old"
		_ = os.Remove(old)
		if err := os.Rename(path, old); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("moving current binary aside: %w", err)
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing binary: %w", err)
	}
	return nil
}

// --- Archives ---

func extractBinary(archive []byte, name string) ([]byte, error) {
	if strings.HasSuffix(name, ".zip") {
		return extractFromZip(archive)
	}
	return extractFromTarGz(archive)
}

func isBinary(name string) bool {
	base := filepath.Base(name)
	return base == binaryName || base == binaryName+".exe"
}

func extractFromTarGz(archive []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("opening gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg && isBinary(hdr.Name) {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("%s not found in archive", binaryName)
}

func extractFromZip(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isBinary(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found in archive", binaryName)
}

// assetName matches the GoReleaser name_template for a platform.
func assetName(goos, goarch, version string) string {
	ext := "tar.gz"
	if goos == "windows" {
		ext = "zip"
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", binaryName, version, goos, goarch, ext)
}

// --- Versions ---

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewer reports whether latest is a higher release than current.
// Development builds never report updates.
func isNewer(current, latest string) bool {
	if current == "" || latest == "" || current == "dev" {
		return false
	}
	return compareVersions(latest, current) > 0
}

// compareVersions orders dotted versions numerically. A pre-release
// suffix ("1.2.0-rc1") sorts before the plain release.
func compareVersions(a, b string) int {
	aCore, aPre, _ := strings.Cut(a, "-")
	bCore, bPre, _ := strings.Cut(b, "-")

	ap, bp := strings.Split(aCore, "."), strings.Split(bCore, ".")
	for i := 0; i < 3; i++ {
		x, y := versionPart(ap, i), versionPart(bp, i)
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}
	switch {
	case aPre == bPre:
		return 0
	case aPre == "":
		return 1
	case bPre == "":
		return -1
	case aPre > bPre:
		return 1
	default:
		return -1
	}
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
