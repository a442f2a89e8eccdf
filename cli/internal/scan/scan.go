// Package scan walks a repository tree with ignore, extension, and size
// filtering, and runs line-level searches and declaration lookups over the
// files that pass the filters.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Declaration patterns, matched against whitespace-trimmed lines.
var (
	pyFunc  = regexp.MustCompile(`^(async\s+)?def\s+(\w+)\s*\(`)
	pyClass = regexp.MustCompile(`^class\s+(\w+)\s*[:(]`)

	goFunc = regexp.MustCompile(`^func\s+(\([^)]*\)\s+)?(\w+)\s*\(`)
	goType = regexp.MustCompile(`^type\s+(\w+)\s+(struct|interface)\b`)

	jsFunc  = regexp.MustCompile(`^(export\s+)?function\s+(\w+)\s*\(`)
	jsArrow = regexp.MustCompile(`^(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?\([^)]*\)\s*=>`)
	jsClass = regexp.MustCompile(`^(export\s+)?class\s+(\w+)\b`)
)

// Scanner filters a directory tree by size, extension, and ignore patterns.
// The zero value applies no filters.
type Scanner struct {
	// MaxFileSize excludes files larger than this many bytes. Zero or
	// negative means no size limit.
	MaxFileSize int64
	// AllowedExtensions lists extensions (".go", ".py") to include. Empty
	// means all extensions.
	AllowedExtensions []string
	// IgnorePatterns are glob patterns matched against both the path
	// relative to the scan root and the base name.
	IgnorePatterns []string
}

// New returns a Scanner with the given filters.
func New(maxFileSize int64, allowedExtensions, ignorePatterns []string) *Scanner {
	return &Scanner{
		MaxFileSize:       maxFileSize,
		AllowedExtensions: allowedExtensions,
		IgnorePatterns:    ignorePatterns,
	}
}

// Scan walks root and returns the relative paths of all regular files that
// pass the filters, in lexical order. Unreadable subtrees and files are
// skipped; only a bad root is an error.
func (s *Scanner) Scan(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if s.ignored(rel, d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.ignored(rel, d.Name()) {
			return nil
		}
		if !s.allowedExt(filepath.Ext(path)) {
			return nil
		}
		if s.MaxFileSize > 0 {
			info, infoErr := d.Info()
			if infoErr != nil {
				return nil
			}
			if info.Size() > s.MaxFileSize {
				return nil
			}
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}

func (s *Scanner) ignored(rel, name string) bool {
	for _, pattern := range s.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) allowedExt(ext string) bool {
	if len(s.AllowedExtensions) == 0 {
		return true
	}
	for _, allowed := range s.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

// Match is one matching line from Search.
type Match struct {
	Path string
	Line int
	Text string
}

// Search scans root and reports every line containing query. With regex set,
// query is compiled as a case-insensitive regular expression; otherwise it is
// a case-insensitive substring. Matched text is whitespace-trimmed.
func (s *Scanner) Search(root, query string, regex bool) ([]Match, error) {
	var re *regexp.Regexp
	if regex {
		var err error
		re, err = regexp.Compile("(?i)" + query)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", query, err)
		}
	}
	files, err := s.Scan(root)
	if err != nil {
		return nil, err
	}
	lowered := strings.ToLower(query)
	var matches []Match
	for _, rel := range files {
		data, readErr := os.ReadFile(filepath.Join(root, rel))
		if readErr != nil {
			continue
		}
		for i, line := range strings.Split(string(data), "\n") {
			hit := false
			if re != nil {
				hit = re.MatchString(line)
			} else {
				hit = strings.Contains(strings.ToLower(line), lowered)
			}
			if hit {
				matches = append(matches, Match{
					Path: rel,
					Line: i + 1,
					Text: strings.TrimSpace(line),
				})
			}
		}
	}
	return matches, nil
}

// Declaration is a function or class definition found by Functions or Classes.
type Declaration struct {
	Path      string
	Line      int
	Name      string
	Signature string
}

// Functions scans root and reports function declarations. Go funcs and
// methods, Python def and async def, and JS/TS function and arrow bindings
// are recognized. With name set, only declarations of that exact name are
// returned.
func (s *Scanner) Functions(root, name string) ([]Declaration, error) {
	return s.declarations(root, name, funcPatterns)
}

// Classes scans root and reports class-like declarations. Python classes,
// Go struct and interface types, and JS/TS classes are recognized. With name
// set, only declarations of that exact name are returned.
func (s *Scanner) Classes(root, name string) ([]Declaration, error) {
	return s.declarations(root, name, classPatterns)
}

// declPattern pairs a line regexp with the submatch index of the name.
type declPattern struct {
	re   *regexp.Regexp
	name int
}

func funcPatterns(ext string) []declPattern {
	switch strings.ToLower(ext) {
	case ".py":
		return []declPattern{{pyFunc, 2}}
	case ".go":
		return []declPattern{{goFunc, 2}}
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
		return []declPattern{{jsFunc, 2}, {jsArrow, 1}}
	}
	return nil
}

func classPatterns(ext string) []declPattern {
	switch strings.ToLower(ext) {
	case ".py":
		return []declPattern{{pyClass, 1}}
	case ".go":
		return []declPattern{{goType, 1}}
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
		return []declPattern{{jsClass, 2}}
	}
	return nil
}

func (s *Scanner) declarations(root, name string, patterns func(string) []declPattern) ([]Declaration, error) {
	files, err := s.Scan(root)
	if err != nil {
		return nil, err
	}
	var decls []Declaration
	for _, rel := range files {
		pats := patterns(filepath.Ext(rel))
		if len(pats) == 0 {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(root, rel))
		if readErr != nil {
			continue
		}
		for i, line := range strings.Split(string(data), "\n") {
			trimmed := strings.TrimSpace(line)
			for _, p := range pats {
				m := p.re.FindStringSubmatch(trimmed)
				if m == nil {
					continue
				}
				if name != "" && m[p.name] != name {
					continue
				}
				decls = append(decls, Declaration{
					Path:      rel,
					Line:      i + 1,
					Name:      m[p.name],
					Signature: trimmed,
				})
				break
			}
		}
	}
	return decls, nil
}
