package updater

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// --- Versions ---

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"v1.2.3", "1.2.3"},
		{"1.2.3", "1.2.3"},
		{" v0.1.0\n", "0.1.0"},
		{"", ""},
		{"vv1.0.0", "v1.0.0"},
	}
	for _, tt := range tests {
		if got := normalizeVersion(tt.input); got != tt.want {
			t.Errorf("normalizeVersion(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{"newer patch", "0.2.0", "0.2.1", true},
		{"newer minor", "0.2.0", "0.3.0", true},
		{"newer major", "0.2.0", "1.0.0", true},
		{"same version", "0.2.0", "0.2.0", false},
		{"older version", "0.3.0", "0.2.0", false},
		{"empty current", "", "0.2.0", false},
		{"empty latest", "0.2.0", "", false},
		{"dev current", "dev", "0.2.0", false},
		{"two part current", "0.2", "0.3.0", true},
		{"two digit minor", "0.9.0", "0.10.0", true},
		{"release after rc", "1.0.0-rc1", "1.0.0", true},
		{"rc before release", "1.0.0", "1.0.0-rc2", false},
		{"later rc", "1.0.0-rc1", "1.0.0-rc2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNewer(tt.current, tt.latest); got != tt.want {
				t.Errorf("isNewer(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
			}
		})
	}
}

func TestAssetName(t *testing.T) {
	if got := assetName("linux", "arm64", "0.3.0"); got != "esp32-copilot_0.3.0_linux_arm64.tar.gz" {
		t.Errorf("linux asset = %q", got)
	}
	if got := assetName("windows", "amd64", "0.3.0"); got != "esp32-copilot_0.3.0_windows_amd64.zip" {
		t.Errorf("windows asset = %q", got)
	}
}

// --- Archives ---

func tarGz(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, data := range files {
		hdr := &tar.Header{Name: name, Mode: 0o755, Size: int64(len(data)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatalf("tar write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func zipArchive(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractBinary(t *testing.T) {
	files := map[string][]byte{
		"README.md":     []byte("readme"),
		"esp32-copilot": []byte("ELF..."),
	}
	got, err := extractBinary(tarGz(t, files), "esp32-copilot_1.0.0_linux_amd64.tar.gz")
	if err != nil {
		t.Fatalf("tar.gz: %v", err)
	}
	if string(got) != "ELF..." {
		t.Errorf("tar.gz binary = %q", got)
	}

	got, err = extractBinary(zipArchive(t, map[string][]byte{"esp32-copilot.exe": []byte("MZ...")}), "esp32-copilot_1.0.0_windows_amd64.zip")
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if string(got) != "MZ..." {
		t.Errorf("zip binary = %q", got)
	}

	if _, err := extractBinary(tarGz(t, map[string][]byte{"other": []byte("x")}), "a.tar.gz"); err == nil {
		t.Error("expected error when the binary is missing")
	}
}

// --- Check and Update ---

// withRelease serves rel from a test server and points the package at it.
func withRelease(t *testing.T, rel release, status int, archive []byte) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/latest", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			json.NewEncoder(w).Encode(rel)
		}
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(archive)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	origEndpoint, origClient := releaseEndpoint, httpClient
	releaseEndpoint = ts.URL + "/latest"
	httpClient = ts.Client()
	t.Cleanup(func() {
		releaseEndpoint = origEndpoint
		httpClient = origClient
	})

	// Rewrite the placeholder asset URL now that the server address is known.
	for i := range rel.Assets {
		rel.Assets[i].URL = ts.URL + "/download"
	}
}

func TestCheck_UpdateAvailable(t *testing.T) {
	withRelease(t, release{TagName: "v0.5.0", HTMLURL: "https://example.com/r/0.5.0"}, http.StatusOK, nil)

	res := Check(context.Background(), "v0.4.2")
	if !res.UpdateAvailable || res.Latest != "0.5.0" || res.Current != "0.4.2" {
		t.Errorf("Check = %+v", res)
	}
	if res.ReleaseURL != "https://example.com/r/0.5.0" {
		t.Errorf("ReleaseURL = %q", res.ReleaseURL)
	}
}

func TestCheck_ServerErrorIsQuiet(t *testing.T) {
	withRelease(t, release{}, http.StatusInternalServerError, nil)

	res := Check(context.Background(), "0.4.2")
	if res.UpdateAvailable || res.Latest != "" {
		t.Errorf("Check = %+v", res)
	}
}

func TestUpdate_UpToDate(t *testing.T) {
	withRelease(t, release{TagName: "v0.4.2"}, http.StatusOK, nil)

	if _, err := Update(context.Background(), "0.4.2"); !errors.Is(err, ErrUpToDate) {
		t.Errorf("Update err = %v, want ErrUpToDate", err)
	}
}

func TestUpdate_MissingAsset(t *testing.T) {
	withRelease(t, release{TagName: "v9.0.0", Assets: []asset{{Name: "esp32-copilot_9.0.0_plan9_mips.tar.gz"}}}, http.StatusOK, nil)

	if _, err := Update(context.Background(), "0.4.2"); err == nil {
		t.Error("expected error for a missing platform asset")
	}
}

func TestUpdate_ReplacesExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("rename over a file differs on windows")
	}
	name := assetName(runtime.GOOS, runtime.GOARCH, "9.0.0")
	archive := tarGz(t, map[string][]byte{"esp32-copilot": []byte("new build")})
	rel := release{TagName: "v9.0.0", Assets: []asset{{Name: name}}}
	withRelease(t, rel, http.StatusOK, archive)

	exe := filepath.Join(t.TempDir(), "esp32-copilot")
	if err := os.WriteFile(exe, []byte("old build"), 0o755); err != nil {
		t.Fatal(err)
	}
	origExe := executablePath
	executablePath = func() (string, error) { return exe, nil }
	t.Cleanup(func() { executablePath = origExe })

	got, err := Update(context.Background(), "0.4.2")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got != "9.0.0" {
		t.Errorf("installed = %q", got)
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new build" {
		t.Errorf("executable = %q", data)
	}
}
