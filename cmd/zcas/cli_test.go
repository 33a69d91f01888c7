package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"zcas/internal/api"
	"zcas/internal/blobstore"
	"zcas/internal/config"
	"zcas/internal/server"
)

const (
	fixtureSHA1 = "6a405b1db74fc17c156be353fa7454d10092b68c"
	fixtureMD5  = "817c9ecfca9300518d8342c1b103a376"
	fixtureSize = 592
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ZCAS_CONFIG_DIR", dir)
	t.Setenv("ZCAS_STORAGE_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("ZCAS_DB", filepath.Join(dir, "db", "registry.db"))
	t.Setenv("ZCAS_CODEC", "")
	t.Setenv("ZCAS_HASH_ALGORITHM", "")
	t.Setenv(logLevelEnvKey, "error")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	prev := outputWriter
	outputWriter = &buf
	defer func() { outputWriter = prev }()

	root := newRootCmd(cfg)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// copyFixture places a private copy of the shared fixture in a temp dir.
func copyFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "internal", "blobstore", "testdata", "in"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture copy: %v", err)
	}
	return path
}

func TestImportCatRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	input := copyFixture(t)
	want, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}

	out, err := runCLI(t, cfg, "import", "--json", "--keep", "--collection", "docs", input)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var results []importResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode import output %q: %v", out, err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	desc := results[0].Descriptor
	if desc.ContentHash != fixtureSHA1 || desc.MD5 != fixtureMD5 || desc.Size != fixtureSize {
		t.Fatalf("unexpected descriptor %#v", desc)
	}
	if desc.Codec != "zlib" || desc.Deduplicated {
		t.Fatalf("unexpected codec or dedup flag: %#v", desc)
	}
	res := results[0].Resource
	if res == nil || res.ID == "" || res.Filename != "in.txt" || res.Collection != "docs" {
		t.Fatalf("unexpected resource %#v", res)
	}
	if !strings.HasPrefix(res.MediaType, "text/plain") {
		t.Fatalf("expected text/plain media type, got %q", res.MediaType)
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("--keep should preserve the input: %v", err)
	}

	got, err := runCLI(t, cfg, "cat", fixtureSHA1)
	if err != nil {
		t.Fatalf("cat: %v", err)
	}
	if got != string(want) {
		t.Fatalf("cat returned %d bytes, want %d", len(got), len(want))
	}

	got, err = runCLI(t, cfg, "cat", "--path", desc.RelativePath)
	if err != nil {
		t.Fatalf("cat --path: %v", err)
	}
	if got != string(want) {
		t.Fatal("cat --path returned different content")
	}
}

func TestImportConsumesInputAndDeduplicates(t *testing.T) {
	cfg := testConfig(t)
	first := copyFixture(t)
	second := copyFixture(t)

	if _, err := runCLI(t, cfg, "import", first); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if _, err := os.Stat(first); !os.IsNotExist(err) {
		t.Fatalf("expected input to be consumed, stat err: %v", err)
	}

	out, err := runCLI(t, cfg, "import", second)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if !strings.HasPrefix(out, "deduplicated ") {
		t.Fatalf("expected dedup line, got %q", out)
	}

	out, err = runCLI(t, cfg, "list", "--blobs")
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	if strings.TrimSpace(out) != fixtureSHA1 {
		t.Fatalf("expected a single blob, got %q", out)
	}

	out, err = runCLI(t, cfg, "show", "--json", fixtureSHA1)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	var views []resourceView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode show output %q: %v", out, err)
	}
	if len(views) != 2 {
		t.Fatalf("expected two resources sharing the blob, got %d", len(views))
	}
	if views[0].ID == views[1].ID {
		t.Fatal("expected distinct resource ids")
	}
	if !strings.HasPrefix(views[0].URI, "zlib://") || views[0].StoredCodec != "zlib" {
		t.Fatalf("unexpected blob address %q (%q)", views[0].URI, views[0].StoredCodec)
	}
}

func TestListYAMLOutput(t *testing.T) {
	cfg := testConfig(t)
	if _, err := runCLI(t, cfg, "import", "--collection", "a", copyFixture(t)); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := runCLI(t, cfg, "list", "--yaml", "--collection", "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var listed []map[string]any
	if err := yaml.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode yaml %q: %v", out, err)
	}
	if len(listed) != 1 || listed[0]["content_hash"] != fixtureSHA1 {
		t.Fatalf("unexpected listing %v", listed)
	}

	out, err = runCLI(t, cfg, "list", "--collection", "b")
	if err != nil {
		t.Fatalf("list empty collection: %v", err)
	}
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}

	if _, err := runCLI(t, cfg, "list", "--json", "--yaml"); err == nil {
		t.Fatal("expected error for --json with --yaml")
	}
}

func TestVerifyReportsCorruptBlob(t *testing.T) {
	cfg := testConfig(t)
	if _, err := runCLI(t, cfg, "import", copyFixture(t)); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := runCLI(t, cfg, "verify")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.HasPrefix(out, "ok") || !strings.Contains(out, fixtureSHA1) {
		t.Fatalf("unexpected verify output %q", out)
	}

	path, err := blobstore.DerivePath(cfg.StorageRoot, fixtureSHA1)
	if err != nil {
		t.Fatalf("derive path: %v", err)
	}
	if err := os.WriteFile(path, []byte("not compressed"), 0o644); err != nil {
		t.Fatalf("overwrite blob: %v", err)
	}

	out, err = runCLI(t, cfg, "verify", "--json", fixtureSHA1)
	if err == nil || !strings.Contains(err.Error(), "1 of 1 blobs failed verification") {
		t.Fatalf("expected verification failure, got %v", err)
	}
	var results []blobstore.VerifyResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode verify output %q: %v", out, err)
	}
	if len(results) != 1 || results[0].OK() {
		t.Fatalf("expected one failed result, got %#v", results)
	}
}

func TestCatMissingBlob(t *testing.T) {
	cfg := testConfig(t)
	missing := strings.Repeat("0", 40)

	_, err := runCLI(t, cfg, "cat", missing)
	if err == nil || !strings.Contains(err.Error(), "blob not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := runCLI(t, cfg, "cat"); err == nil {
		t.Fatal("expected error without hash or --path")
	}
	if _, err := runCLI(t, cfg, "cat", "--path", "../outside"); err == nil {
		t.Fatal("expected error for path outside the root")
	}
}

func TestCatLocalCopy(t *testing.T) {
	cfg := testConfig(t)
	input := copyFixture(t)
	want, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	if _, err := runCLI(t, cfg, "import", input); err != nil {
		t.Fatalf("import: %v", err)
	}

	out, err := runCLI(t, cfg, "cat", "--local-copy", fixtureSHA1)
	if err != nil {
		t.Fatalf("cat --local-copy: %v", err)
	}
	path := strings.TrimSpace(out)
	t.Cleanup(func() { os.Remove(path) })
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read local copy: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("local copy differs from input")
	}
}

func TestUnknownCodecFailsAtStartup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Codec = "brotli"

	_, err := runCLI(t, cfg, "import", copyFixture(t))
	if !blobstore.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCodecsMarksConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Codec = "compress.bzip2"

	out, err := runCLI(t, cfg, "codecs")
	if err != nil {
		t.Fatalf("codecs: %v", err)
	}
	if !strings.Contains(out, "* bzip2") {
		t.Fatalf("expected bzip2 marked as configured, got %q", out)
	}
	if !strings.Contains(out, "hash algorithms: sha1, sha256, blake2b, blake3") {
		t.Fatalf("expected hash algorithms, got %q", out)
	}
}

func TestMigrateInspect(t *testing.T) {
	cfg := testConfig(t)
	if _, err := runCLI(t, cfg, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	out, err := runCLI(t, cfg, "migrate", "--inspect")
	if err != nil {
		t.Fatalf("migrate --inspect: %v", err)
	}
	if !strings.Contains(out, "No pending migrations.") {
		t.Fatalf("unexpected inspect output %q", out)
	}
}

func TestConfigGetSet(t *testing.T) {
	cfg := testConfig(t)

	if _, err := runCLI(t, cfg, "config", "set", "--global", "codec", "zstd"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	reloaded, err := config.Load()
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	out, err := runCLI(t, reloaded, "config", "get", "codec")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(out) != "zstd" {
		t.Fatalf("expected zstd, got %q", out)
	}
	if _, err := runCLI(t, cfg, "config", "get", "compression"); err == nil || !strings.Contains(err.Error(), "allowed: storage_root") {
		t.Fatalf("expected unknown key error listing allowed keys, got %v", err)
	}
}

func TestConfigSetCanonicalizesCodec(t *testing.T) {
	cfg := testConfig(t)

	out, err := runCLI(t, cfg, "config", "set", "--global", "codec", "compress.bzip2")
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	if !strings.HasPrefix(out, "codec = bzip2 (") {
		t.Fatalf("expected canonical codec in output, got %q", out)
	}

	_, err = runCLI(t, cfg, "config", "set", "--global", "codec", "brotli")
	if !blobstore.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(strings.Join(formatCLIError(err), "\n"), "zcas codecs") {
		t.Fatalf("expected codecs hint, got %v", formatCLIError(err))
	}

	reloaded, err := config.Load()
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if reloaded.Codec != "bzip2" {
		t.Fatalf("rejected codec must not be written, got %q", reloaded.Codec)
	}
}

func TestConfigListShowsEffectiveSettings(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("ZCAS_CODEC", "lz4")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	out, err := runCLI(t, cfg, "config", "list", "--json")
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	var settings map[string]string
	if err := json.Unmarshal([]byte(out), &settings); err != nil {
		t.Fatalf("decode settings %q: %v", out, err)
	}
	if len(settings) != len(config.AllowedKeys()) {
		t.Fatalf("expected every key, got %v", settings)
	}
	if settings["codec"] != "lz4" || settings["storage_root"] != cfg.StorageRoot {
		t.Fatalf("expected env overrides in effect, got %v", settings)
	}

	plain, err := runCLI(t, cfg, "config", "list")
	if err != nil {
		t.Fatalf("config list: %v", err)
	}
	if !strings.HasPrefix(plain, "storage_root = ") || !strings.Contains(plain, "\ncodec = lz4\n") {
		t.Fatalf("unexpected plain listing %q", plain)
	}
}

func TestPushPullThroughServer(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("ZCAS_API_TOKEN", "")
	cas, err := openStore(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	reg, err := openRegistry(cfg)
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	httpSrv := httptest.NewServer(server.New("", cas, reg, nil, nil).Handler())
	t.Cleanup(httpSrv.Close)
	cfg.APIURL = httpSrv.URL

	input := copyFixture(t)
	want, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("read input: %v", err)
	}

	out, err := runCLI(t, cfg, "push", "--json", "--collection", "remote", input)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	var pushed []api.ImportResponse
	if err := json.Unmarshal([]byte(out), &pushed); err != nil {
		t.Fatalf("decode push output %q: %v", out, err)
	}
	if len(pushed) != 1 || pushed[0].Descriptor.ContentHash != fixtureSHA1 || pushed[0].Resource.Collection != "remote" {
		t.Fatalf("unexpected push result %#v", pushed)
	}
	if _, err := os.Stat(input); err != nil {
		t.Fatalf("push should not consume the input: %v", err)
	}

	got, err := runCLI(t, cfg, "pull", fixtureSHA1)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if got != string(want) {
		t.Fatal("pulled content differs from input")
	}

	target := filepath.Join(t.TempDir(), "pulled.txt")
	if _, err := runCLI(t, cfg, "pull", "-o", target, fixtureSHA1); err != nil {
		t.Fatalf("pull -o: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read pulled file: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Fatal("pulled file differs from input")
	}

	if _, err := runCLI(t, cfg, "pull", strings.Repeat("0", 40)); err == nil || !strings.Contains(err.Error(), "blob not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestImportReportsStorageErrorWhenShardBlocked(t *testing.T) {
	for _, keep := range []bool{true, false} {
		name := "consume"
		if keep {
			name = "keep"
		}
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			if err := os.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
				t.Fatalf("create storage root: %v", err)
			}
			// A plain file where the first shard directory belongs.
			if err := os.WriteFile(filepath.Join(cfg.StorageRoot, "6"), []byte("x"), 0o644); err != nil {
				t.Fatalf("block shard dir: %v", err)
			}
			input := copyFixture(t)

			args := []string{"import", input}
			if keep {
				args = []string{"import", "--keep", input}
			}
			_, err := runCLI(t, cfg, args...)
			if !blobstore.IsStorageError(err) {
				t.Fatalf("expected storage error, got %v", err)
			}
			if !strings.Contains(err.Error(), fixtureSHA1) {
				t.Fatalf("expected error to name the hash, got %v", err)
			}
			if _, statErr := os.Stat(input); statErr != nil {
				t.Fatalf("input must survive a failed import: %v", statErr)
			}

			lines := formatCLIError(err)
			if !strings.Contains(strings.Join(lines, "\n"), "hint:") {
				t.Fatalf("expected a storage hint, got %v", lines)
			}

			out, err := runCLI(t, cfg, "list", "--json")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if strings.Contains(out, fixtureSHA1) {
				t.Fatalf("failed import must not be recorded: %s", out)
			}
		})
	}
}
