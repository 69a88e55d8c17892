// Package testreport merges `go test -json` output with the annotation
// comments carried by every test function into a categorized report.
package testreport

import (
	"bufio"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Status values
const (
	StatusPass   = "pass"
	StatusFail   = "fail"
	StatusSkip   = "skip"
	StatusNotRun = "not run"
)

// Metadata holds the annotations parsed from a test's doc comment
type Metadata struct {
	Name       string `json:"name"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Package    string `json:"package"`
	Category   string `json:"category"`
}

// Event is a single line of `go test -json`
type Event struct {
	Time    time.Time `json:"Time"`
	Action  string    `json:"Action"`
	Package string    `json:"Package"`
	Test    string    `json:"Test"`
	Elapsed float64   `json:"Elapsed"`
	Output  string    `json:"Output"`
}

// Result is the merged outcome of one test or subtest
type Result struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Elapsed     float64  `json:"elapsed_seconds"`
	Package     string   `json:"package"`
	Failure     string   `json:"failure_reason,omitempty"`
	Annotations Metadata `json:"annotations"`
}

// Summary holds top-level stats
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	NotRun      int       `json:"not_run"`
	Results     []Result  `json:"results"`
}

// categories maps Test Case ID prefixes to report sections, in report order
var categories = []struct {
	prefix string
	name   string
}{
	{"AUT", "AuthZ"},
	{"IDN", "AuthN"},
	{"CKE", "Cookie Rewriter"},
	{"AVT", "Avatar Proxy"},
	{"INV", "Invitation Proxy"},
	{"PRM", "Permissions API"},
	{"API", "API Passthrough"},
	{"RTR", "Router"},
	{"BCK", "Backend Client"},
	{"AUD", "Audit"},
	{"CFG", "Config"},
	{"LOG", "Observability"},
	{"TRC", "Observability"},
	{"MTR", "Observability"},
	{"RPT", "Tooling"},
}

const categoryOther = "Other"

// Category returns the report section for a Test Case ID
func Category(testCaseID string) string {
	prefix, _, _ := strings.Cut(testCaseID, "-")
	for _, c := range categories {
		if c.prefix == prefix {
			return c.name
		}
	}
	return categoryOther
}

func categoryOrder() []string {
	var order []string
	for _, c := range categories {
		if !slices.Contains(order, c.name) {
			order = append(order, c.name)
		}
	}
	return append(order, categoryOther)
}

// ParseAnnotations fills meta from a doc comment
func ParseAnnotations(doc *ast.CommentGroup, meta *Metadata) {
	if doc == nil {
		return
	}
	fields := []struct {
		key string
		dst *string
	}{
		{"TestPurpose:", &meta.Purpose},
		{"Scope:", &meta.Scope},
		{"Security:", &meta.Security},
		{"Expected:", &meta.Expected},
		{"Test Case ID:", &meta.TestCaseID},
	}
	for _, line := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(line.Text, "//"))
		for _, f := range fields {
			if rest, ok := strings.CutPrefix(text, f.key); ok {
				*f.dst = strings.TrimSpace(rest)
				break
			}
		}
	}
	meta.Category = Category(meta.TestCaseID)
}

// Scan walks fsys for _test.go files and returns the metadata of every test
// function, keyed by "<import path>.<TestName>".
func Scan(fsys fs.FS, modulePath string) (map[string]Metadata, error) {
	out := make(map[string]Metadata)
	fset := token.NewFileSet()

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "vendor", ".git", "node_modules":
				return fs.SkipDir
			}
			if strings.HasPrefix(d.Name(), "_") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(p, "_test.go") {
			return nil
		}

		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		file, err := parser.ParseFile(fset, p, src, parser.ParseComments)
		if err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}

		pkg := importPath(modulePath, path.Dir(p))
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			meta := Metadata{Name: fn.Name.Name, Package: pkg}
			ParseAnnotations(fn.Doc, &meta)
			out[pkg+"."+fn.Name.Name] = meta
		}
		return nil
	})
	return out, err
}

func importPath(modulePath, dir string) string {
	if dir == "." {
		return modulePath
	}
	return modulePath + "/" + filepath.ToSlash(dir)
}

// Merge folds a `go test -json` stream into per-test results. Annotated
// tests that never ran are reported as not run. Subtests inherit their
// parent's annotations.
func Merge(r io.Reader, meta map[string]Metadata) ([]Result, error) {
	states := make(map[string]*Result, len(meta))
	for key, m := range meta {
		states[key] = &Result{Name: m.Name, Package: m.Package, Status: StatusNotRun, Annotations: m}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil || event.Test == "" {
			continue
		}

		key := event.Package + "." + event.Test
		res, ok := states[key]
		if !ok {
			res = &Result{Name: event.Test, Package: event.Package}
			parent, _, isSub := strings.Cut(event.Test, "/")
			if pm, found := meta[event.Package+"."+parent]; found && isSub {
				res.Annotations = pm
				res.Annotations.Name = event.Test
			} else {
				res.Annotations = Metadata{Name: event.Test, Package: event.Package, Category: categoryOther}
			}
			states[key] = res
		}

		switch event.Action {
		case "run":
			if res.Status == StatusNotRun {
				res.Status = ""
			}
		case StatusPass, StatusFail:
			res.Status = event.Action
			res.Elapsed = event.Elapsed
		case StatusSkip:
			res.Status = StatusSkip
		case "output":
			if res.Status == "" || res.Status == StatusFail {
				res.Failure += event.Output
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	list := make([]Result, 0, len(states))
	for _, v := range states {
		if v.Status != StatusFail {
			v.Failure = ""
		}
		list = append(list, *v)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Package != list[j].Package {
			return list[i].Package < list[j].Package
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// Filter keeps results whose category is in include (all when empty) and
// not in exclude.
func Filter(results []Result, include, exclude []string) []Result {
	var out []Result
	for _, r := range results {
		cat := r.Annotations.Category
		if len(include) > 0 && !slices.Contains(include, cat) {
			continue
		}
		if slices.Contains(exclude, cat) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Summarize counts results by status
func Summarize(results []Result, now time.Time) Summary {
	s := Summary{GeneratedAt: now, Results: results}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		case StatusSkip:
			s.Skipped++
		case StatusNotRun:
			s.NotRun++
		}
	}
	return s
}

// WriteJSON writes the summary as indented JSON
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteMarkdown renders the summary grouped by category
func WriteMarkdown(w io.Writer, s Summary, title string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	status := "PASSED"
	if s.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Skipped | Not Run | Pass Rate |\n")
	sb.WriteString("|-------|--------|--------|---------|---------|-----------|\n")
	rate := 0.0
	if s.Total > 0 {
		rate = float64(s.Passed) / float64(s.Total) * 100
	}
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %d | %.1f%% |\n\n", s.Total, s.Passed, s.Failed, s.Skipped, s.NotRun, rate)

	grouped := make(map[string][]Result)
	for _, r := range s.Results {
		grouped[r.Annotations.Category] = append(grouped[r.Annotations.Category], r)
	}

	sb.WriteString("## Test Results by Category\n\n")
	for _, cat := range categoryOrder() {
		tests := grouped[cat]
		if len(tests) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", cat)
		sb.WriteString("| ID | Test Name | Status | Purpose | Security |\n")
		sb.WriteString("|----|-----------|--------|---------|----------|\n")
		for _, t := range tests {
			security := t.Annotations.Security
			if security != "" {
				security = "**" + security + "**"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				t.Annotations.TestCaseID, t.Name, t.Status, t.Annotations.Purpose, security)
		}
		sb.WriteString("\n")
	}

	if s.Failed > 0 {
		sb.WriteString("## Failure Details\n\n")
		for _, t := range s.Results {
			if t.Status == StatusFail {
				fmt.Fprintf(&sb, "### %s (%s)\n```\n%s\n```\n\n", t.Name, t.Package, t.Failure)
			}
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
