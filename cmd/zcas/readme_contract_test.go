package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"zcas/internal/blobstore"
	"zcas/internal/codec"
	"zcas/internal/config"
	"zcas/internal/digest"
)

var envKeyPattern = regexp.MustCompile(`ZCAS_[A-Z0-9_]+`)

// readmeDoc is README.md split at its "## " headings. The text before the
// first heading is stored under "".
type readmeDoc map[string]string

func TestReadmeConfigKeysMatchConfigPackage(t *testing.T) {
	section := loadReadme(t).section(t, "Configuration")

	var documented []string
	for _, line := range bulletsAfter(t, section, "Supported config keys:") {
		items := backtickItems(line)
		if len(items) == 0 {
			t.Fatalf("config key bullet without a key: %q", line)
		}
		documented = append(documented, items[0])
	}

	if !sameSet(documented, config.AllowedKeys()) {
		t.Fatalf("README config keys %v do not match config.AllowedKeys() %v", documented, config.AllowedKeys())
	}
}

func TestReadmeHashAlgorithmsMatchDigest(t *testing.T) {
	section := loadReadme(t).section(t, "Configuration")

	for _, line := range bulletsAfter(t, section, "Supported config keys:") {
		items := backtickItems(line)
		if len(items) < 3 || items[0] != "hash_algorithm" {
			continue
		}
		listed, def := items[1:len(items)-1], items[len(items)-1]

		var want []string
		for _, alg := range digest.Algorithms() {
			want = append(want, string(alg))
		}
		if !sameSet(listed, want) {
			t.Fatalf("README hash algorithms %v, digest supports %v", listed, want)
		}
		if def != string(digest.Default) {
			t.Fatalf("README default hash algorithm %q, digest default %q", def, digest.Default)
		}
		return
	}
	t.Fatal("README does not document hash_algorithm")
}

func TestReadmeCodecTableMatchesBuiltinRegistry(t *testing.T) {
	section := loadReadme(t).section(t, "Codecs")
	reg := codec.Builtin()

	var names []string
	for _, line := range strings.Split(section, "\n") {
		if !strings.HasPrefix(line, "| `") {
			continue
		}
		cells := strings.Split(line, "|")
		if len(cells) < 4 {
			t.Fatalf("malformed codec row %q", line)
		}
		name := strings.Trim(strings.TrimSpace(cells[1]), "`")
		names = append(names, name)

		for _, alias := range backtickItems(cells[2]) {
			c, err := reg.Lookup(alias)
			if err != nil {
				t.Fatalf("README alias %q for %s is not registered: %v", alias, name, err)
			}
			if c.Name() != name {
				t.Fatalf("README alias %q resolves to %s, documented under %s", alias, c.Name(), name)
			}
		}
	}

	if !sameSet(names, reg.Names()) {
		t.Fatalf("README codecs %v, builtin registry %v", names, reg.Names())
	}
	if !slices.Contains(names, config.DefaultCodec) {
		t.Fatalf("default codec %q missing from README table", config.DefaultCodec)
	}
}

func TestReadmeBlobLayoutMatchesDerivePath(t *testing.T) {
	intro := loadReadme(t)[""]
	var example string
	for _, line := range strings.Split(intro, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "<storage_root>/"); ok {
			example = rest
			break
		}
	}
	if example == "" {
		t.Fatal("README intro has no <storage_root>/... layout example")
	}

	hash := example[strings.LastIndex(example, "/")+1:]
	got, err := blobstore.DerivePath("/root", hash)
	if err != nil {
		t.Fatalf("derive path for README example: %v", err)
	}
	if filepath.ToSlash(got) != "/root/"+example {
		t.Fatalf("README layout %q, DerivePath gives %q", example, filepath.ToSlash(got))
	}
}

func TestReadmeCommandsMatchCLI(t *testing.T) {
	block := fencedBlock(t, loadReadme(t).section(t, "Commands"), "bash")

	cfg := config.Default()
	root := newRootCmd(&cfg)

	var documented []string
	for _, line := range strings.Split(block, "\n") {
		line, _, _ = strings.Cut(strings.TrimSpace(line), "#")
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "zcas" {
			continue
		}

		var path []string
		for _, field := range fields[1:] {
			if strings.ContainsAny(field[:1], "<[-") {
				break
			}
			path = append(path, field)
		}
		cmd, _, err := root.Find(path)
		if err != nil || cmd == root {
			t.Fatalf("README command %q does not exist: %v", strings.Join(path, " "), err)
		}
		documented = append(documented, strings.Join(path, " "))

		for _, field := range fields[1+len(path):] {
			flag := strings.Trim(field, "[]")
			if !strings.HasPrefix(flag, "-") {
				continue
			}
			if !hasFlag(cmd, flag) {
				t.Fatalf("README shows %s on %q, which has no such flag", flag, cmd.CommandPath())
			}
		}
	}

	leaves := leafCommands(root, nil)
	if !sameSet(documented, leaves) {
		t.Fatalf("README commands %v, CLI leaf commands %v", uniqueSorted(documented), leaves)
	}
}

func TestReadmeDocumentsEveryEnvKeyInSource(t *testing.T) {
	readme := strings.Join(loadReadmeSections(t), "\n")
	documented := envKeyPattern.FindAllString(readme, -1)

	var missing []string
	for _, key := range envKeysInSource(t) {
		if !slices.Contains(documented, key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		t.Fatalf("README does not mention %v", missing)
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}

func loadReadme(t *testing.T) readmeDoc {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(repoRoot(t), "README.md"))
	if err != nil {
		t.Fatalf("read README.md: %v", err)
	}

	doc := readmeDoc{}
	title := ""
	var body []string
	for _, line := range strings.Split(string(data), "\n") {
		if heading, ok := strings.CutPrefix(line, "## "); ok {
			doc[title] = strings.Join(body, "\n")
			title, body = strings.TrimSpace(heading), nil
			continue
		}
		body = append(body, line)
	}
	doc[title] = strings.Join(body, "\n")
	return doc
}

func loadReadmeSections(t *testing.T) []string {
	t.Helper()
	doc := loadReadme(t)
	out := make([]string, 0, len(doc))
	for _, body := range doc {
		out = append(out, body)
	}
	return out
}

func (d readmeDoc) section(t *testing.T, title string) string {
	t.Helper()
	body, ok := d[title]
	if !ok {
		t.Fatalf("README has no %q section", "## "+title)
	}
	return body
}

func fencedBlock(t *testing.T, section, lang string) string {
	t.Helper()
	_, after, ok := strings.Cut(section, "```"+lang+"\n")
	if !ok {
		t.Fatalf("no ```%s block", lang)
	}
	block, _, ok := strings.Cut(after, "```")
	if !ok {
		t.Fatalf("unterminated ```%s block", lang)
	}
	return block
}

// bulletsAfter returns the "- " lines that follow marker.
func bulletsAfter(t *testing.T, section, marker string) []string {
	t.Helper()
	_, after, ok := strings.Cut(section, marker)
	if !ok {
		t.Fatalf("missing %q", marker)
	}
	var bullets []string
	for _, line := range strings.Split(after, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") {
			bullets = append(bullets, line)
			continue
		}
		if len(bullets) > 0 {
			break
		}
	}
	if len(bullets) == 0 {
		t.Fatalf("no bullets after %q", marker)
	}
	return bullets
}

func backtickItems(text string) []string {
	parts := strings.Split(text, "`")
	var items []string
	for i := 1; i < len(parts); i += 2 {
		if parts[i] != "" {
			items = append(items, parts[i])
		}
	}
	return items
}

func hasFlag(cmd *cobra.Command, flag string) bool {
	if name, ok := strings.CutPrefix(flag, "--"); ok {
		return cmd.Flags().Lookup(name) != nil || cmd.InheritedFlags().Lookup(name) != nil
	}
	short := strings.TrimPrefix(flag, "-")
	return cmd.Flags().ShorthandLookup(short) != nil || cmd.InheritedFlags().ShorthandLookup(short) != nil
}

func leafCommands(cmd *cobra.Command, prefix []string) []string {
	var leaves []string
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}
		path := append(slices.Clone(prefix), child.Name())
		if len(child.Commands()) == 0 {
			leaves = append(leaves, strings.Join(path, " "))
			continue
		}
		leaves = append(leaves, leafCommands(child, path)...)
	}
	return uniqueSorted(leaves)
}

// envKeysInSource collects every ZCAS_* name appearing in a string literal
// of the non-test sources.
func envKeysInSource(t *testing.T) []string {
	t.Helper()
	root := repoRoot(t)
	fset := token.NewFileSet()
	var keys []string

	for _, dir := range []string{"cmd", "internal"} {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			file, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return err
			}
			ast.Inspect(file, func(n ast.Node) bool {
				lit, ok := n.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					return true
				}
				value, err := strconv.Unquote(lit.Value)
				if err == nil {
					keys = append(keys, envKeyPattern.FindAllString(value, -1)...)
				}
				return true
			})
			return nil
		})
		if err != nil {
			t.Fatalf("scan %s: %v", dir, err)
		}
	}
	if len(keys) == 0 {
		t.Fatal("no ZCAS_* keys found in sources")
	}
	return uniqueSorted(keys)
}

func sameSet(a, b []string) bool {
	return slices.Equal(uniqueSorted(a), uniqueSorted(b))
}

func uniqueSorted(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
