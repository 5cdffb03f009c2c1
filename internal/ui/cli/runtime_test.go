package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreapp "protoscope/internal/core/app"
	"protoscope/internal/core/config"
)

const (
	phpFixture  = "../../engine/parser/testdata/prototypes.hh"
	tomlFixture = "../../data/manifest/testdata/reflection.toml"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	if code != 0 || !strings.Contains(out, "protoscope v"+versionString) {
		t.Fatalf("unexpected version output: code=%d out=%q", code, out)
	}
}

func TestRun_RejectsBadFlags(t *testing.T) {
	cases := [][]string{
		{"-format", "xml"},
		{"-policy", "sometimes"},
		{"-resolve", "Cls1"},
		{"-output", "out.tsv"},
	}
	for _, args := range cases {
		if code, _, _ := runCLI(t, args...); code != 2 {
			t.Errorf("args %v: expected exit code 2, got %d", args, code)
		}
	}
}

func TestRun_ResolveFromPHP(t *testing.T) {
	code, out, errOut := runCLI(t, "-resolve", "Cls6::method3", phpFixture)
	if code != 0 {
		t.Fatalf("expected success, got %d (stderr=%s)", code, errOut)
	}
	if strings.TrimSpace(out) != "Cls6::method3 -> Int3::method3" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRun_ResolveNoPrototype(t *testing.T) {
	code, out, _ := runCLI(t, "-resolve", "Cls1::method1", phpFixture)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(out, "NO_PROTOTYPE: Method Cls1::method1 does not have a prototype") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRun_ContractPolicy(t *testing.T) {
	code, out, _ := runCLI(t, "-policy", "contract", "-resolve", "Cls8::method7", phpFixture)
	if code != 1 || !strings.Contains(out, "NO_PROTOTYPE") {
		t.Fatalf("expected contract policy to reject concrete root, code=%d out=%q", code, out)
	}
}

func TestRun_MethodDetails(t *testing.T) {
	code, out, _ := runCLI(t, "-method", "Cls6::method3", phpFixture)
	if code != 0 {
		t.Fatalf("expected success, got %d", code)
	}
	for _, want := range []string{"Cls6::method3", "declared in: Cls6", "from trait:  Method3", "prototype:   Int3::method3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRun_ReportJSON(t *testing.T) {
	code, out, _ := runCLI(t, "-report", "-filter", "cls6", "-format", "json", phpFixture)
	if code != 0 {
		t.Fatalf("expected success, got %d", code)
	}
	var rows []coreapp.ReportRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	got := make(map[string]string, len(rows))
	for _, row := range rows {
		got[row.Method] = row.Prototype
	}
	if got["method3"] != "Int3::method3" || got["method4"] != "Int4::method4" {
		t.Fatalf("unexpected report rows: %+v", rows)
	}
}

func TestRun_SnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(tomlFixture)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "types.toml"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "protoscope.toml")
	cfgBody := "version = 1\n\n[sources]\nmanifests = [\"types.toml\"]\n\n[db]\npath = \"snap.db\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, errOut := runCLI(t, "-config", cfgPath, "-save-snapshot")
	if code != 0 || !strings.Contains(out, "saved (6 types") {
		t.Fatalf("save failed: code=%d out=%q stderr=%s", code, out, errOut)
	}

	code, out, _ = runCLI(t, "-config", cfgPath, "-list-snapshots")
	if code != 0 || strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one snapshot listed, code=%d out=%q", code, out)
	}

	code, out, _ = runCLI(t, "-config", cfgPath, "-snapshot", "latest", "-resolve", "Cls4::method3")
	if code != 0 || strings.TrimSpace(out) != "Cls4::method3 -> Int3::method3" {
		t.Fatalf("resolve from snapshot failed: code=%d out=%q", code, out)
	}
}

func TestRun_ExportWritesManifest(t *testing.T) {
	out := filepath.Join(t.TempDir(), "hierarchy.toml")
	if code, _, errOut := runCLI(t, "-export", out, phpFixture); code != 0 {
		t.Fatalf("export failed: %d %s", code, errOut)
	}
	if code, stdout, _ := runCLI(t, "-resolve", "Cls8::method1", out); code != 0 || !strings.Contains(stdout, "Cls2::method1") {
		t.Fatalf("resolve from exported manifest failed: %d %q", code, stdout)
	}
}

func TestApplyOverrides_SplitsPositionalSources(t *testing.T) {
	opts := &cliOptions{args: []string{"types.yaml", "src", "more.TOML"}}
	cfg := &config.Config{}
	if err := applyOverrides(opts, cfg, "/work"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Sources.Manifests) != 2 || cfg.Sources.Manifests[0] != filepath.Clean("/work/types.yaml") {
		t.Fatalf("unexpected manifests: %v", cfg.Sources.Manifests)
	}
	if len(cfg.Sources.PHPPaths) != 1 || cfg.Sources.PHPPaths[0] != filepath.Clean("/work/src") {
		t.Fatalf("unexpected php paths: %v", cfg.Sources.PHPPaths)
	}
}

func TestApplyOverrides_WatchRequiresSources(t *testing.T) {
	opts := &cliOptions{watch: true}
	if err := applyOverrides(opts, &config.Config{}, "/work"); err == nil {
		t.Fatal("expected watch without sources to be rejected")
	}
}

func TestSplitMethodRef(t *testing.T) {
	typ, method, err := splitMethodRef(" Cls2 :: method1 ")
	if err != nil || typ != "Cls2" || method != "method1" {
		t.Fatalf("unexpected split: %q %q %v", typ, method, err)
	}
	for _, bad := range []string{"Cls2", "::m", "Cls2::", ""} {
		if _, _, err := splitMethodRef(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestObservabilityServer_Health(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.PHPPaths = []string{phpFixture}
	paths, err := config.ResolvePaths(cfg, ".")
	if err != nil {
		t.Fatal(err)
	}
	application, err := coreapp.New(cfg, paths)
	if err != nil {
		t.Fatal(err)
	}
	defer application.Close(t.Context())

	server := NewObservabilityServer("127.0.0.1:0", coreapp.NewHealthService(application))
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before load, got %d", resp.StatusCode)
	}

	if _, err := application.Load(t.Context()); err != nil {
		t.Fatal(err)
	}
	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after load, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "protoscope_declared_types") {
		t.Fatal("expected protoscope metrics to be exported")
	}
}
