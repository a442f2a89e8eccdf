package scan

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

func TestScan_filters(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go":              "package a\n",
		"b.py":              "print('hi')\n",
		"big.go":            strings.Repeat("x", 200),
		"notes.txt":         "not code\n",
		"cache.pyc":         "bytecode",
		"sub/d.go":          "package sub\n",
		".git/config":       "[core]\n",
		"node_modules/e.go": "package e\n",
	})

	s := New(100, []string{".go", ".py"}, []string{"*.pyc", ".git", "node_modules"})
	got, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"a.go", "b.py", "sub/d.go"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan = %v, want %v", got, want)
	}
}

func TestScan_zeroValueNoFilters(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go":      "package a\n",
		"notes.txt": "anything\n",
	})

	var s Scanner
	got, err := s.Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"a.go", "notes.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan = %v, want %v", got, want)
	}
}

func TestScan_badRoot(t *testing.T) {
	t.Parallel()
	var s Scanner
	if _, err := s.Scan(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("Scan on missing root succeeded, want error")
	}
}

func TestSearch_substring(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go": "package a\n\nfunc Connect() {}\n",
		"b.go": "package b\n\n\tconn := connect()\n",
	})

	var s Scanner
	got, err := s.Search(root, "connect", false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []Match{
		{Path: "a.go", Line: 3, Text: "func Connect() {}"},
		{Path: "b.go", Line: 3, Text: "conn := connect()"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search = %v, want %v", got, want)
	}
}

func TestSearch_regex(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "def handle_get(req):\n    pass\n\ndef handle_post(req):\n    pass\n",
	})

	var s Scanner
	got, err := s.Search(root, `def handle_\w+`, true)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search found %d matches, want 2: %v", len(got), got)
	}
	if got[0].Line != 1 || got[1].Line != 4 {
		t.Errorf("match lines = %d, %d, want 1, 4", got[0].Line, got[1].Line)
	}
}

func TestSearch_caseInsensitiveRegex(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go": "// TODO fix this\n",
	})

	var s Scanner
	got, err := s.Search(root, `todo`, true)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search found %d matches, want 1", len(got))
	}
}

func TestSearch_invalidRegex(t *testing.T) {
	t.Parallel()
	var s Scanner
	if _, err := s.Search(t.TempDir(), `(unclosed`, true); err == nil {
		t.Fatal("Search with invalid pattern succeeded, want error")
	}
}

func TestFunctions(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "def fetch(url):\n    pass\n\nasync def poll():\n    pass\n",
		"b.go": "package b\n\nfunc Run() {}\n\nfunc (s *Server) Stop() {}\n",
		"c.js": "function render(el) {}\nconst mount = (el) => el;\n",
		"d.md": "def not_code():\n",
	})

	var s Scanner
	got, err := s.Functions(root, "")
	if err != nil {
		t.Fatalf("Functions: %v", err)
	}
	byName := map[string]Declaration{}
	for _, d := range got {
		byName[d.Name] = d
	}
	for _, name := range []string{"fetch", "poll", "Run", "Stop", "render", "mount"} {
		if _, ok := byName[name]; !ok {
			t.Errorf("Functions missing %q: %v", name, got)
		}
	}
	if len(got) != 6 {
		t.Errorf("Functions found %d declarations, want 6: %v", len(got), got)
	}
	if d := byName["poll"]; d.Path != "a.py" || d.Line != 4 {
		t.Errorf("poll at %s:%d, want a.py:4", d.Path, d.Line)
	}
	if d := byName["Stop"]; d.Signature != "func (s *Server) Stop() {}" {
		t.Errorf("Stop signature = %q", d.Signature)
	}
}

func TestFunctions_nameFilter(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.go": "package a\n\nfunc Run() {}\n\nfunc RunAll() {}\n",
	})

	var s Scanner
	got, err := s.Functions(root, "Run")
	if err != nil {
		t.Fatalf("Functions: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Run" || got[0].Line != 3 {
		t.Errorf("Functions(Run) = %v, want single Run at line 3", got)
	}
}

func TestClasses(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "class Base:\n    pass\n\nclass Child(Base):\n    pass\n",
		"b.go": "package b\n\ntype Server struct{}\n\ntype Handler interface{}\n\ntype alias = int\n",
		"c.ts": "export class Widget {}\n",
	})

	var s Scanner
	got, err := s.Classes(root, "")
	if err != nil {
		t.Fatalf("Classes: %v", err)
	}
	names := make([]string, 0, len(got))
	for _, d := range got {
		names = append(names, d.Name)
	}
	want := []string{"Base", "Child", "Server", "Handler", "Widget"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Classes = %v, want %v", names, want)
	}
}

func TestClasses_nameFilter(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.py": "class Base:\n    pass\n\nclass Child(Base):\n    pass\n",
	})

	var s Scanner
	got, err := s.Classes(root, "Child")
	if err != nil {
		t.Fatalf("Classes: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Child" || got[0].Line != 4 {
		t.Errorf("Classes(Child) = %v, want single Child at line 4", got)
	}
}

func TestScan_unreadableFileSkipped(t *testing.T) {
	t.Parallel()
	if os.Geteuid() == 0 {
		t.Skip("runs as root, permission bits are not enforced")
	}
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"ok.go":     "package ok\n",
		"locked.go": "package locked\n",
	})
	if err := os.Chmod(filepath.Join(root, "locked.go"), 0000); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	var s Scanner
	got, err := s.Search(root, "package", false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Path != "ok.go" {
		t.Errorf("Search = %v, want only ok.go", got)
	}
}
