// Command report_gen turns `go test -json` output into JSON and Markdown
// test reports grouped by the Test Case ID annotations.
//
//	go test -json ./... > test.json
//	go run ./scripts/testing -input test.json -out-json report.json -out-md report.md
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opentrusty/console/internal/testreport"
)

func main() {
	inputPath := flag.String("input", "", "Path to go test -json output file")
	outputJSON := flag.String("out-json", "", "Path for output JSON report")
	outputMD := flag.String("out-md", "", "Path for output Markdown report")
	title := flag.String("title", "OpenTrusty Console Test Report", "Report title")
	root := flag.String("root", ".", "Repository root to scan for test annotations")
	module := flag.String("module", "github.com/opentrusty/console", "Module path of the scanned repository")
	filterCats := flag.String("filter-categories", "", "Comma-separated list of categories to include")
	excludeCats := flag.String("exclude-categories", "", "Comma-separated list of categories to exclude")
	flag.Parse()

	if *inputPath == "" || *outputJSON == "" || *outputMD == "" {
		fmt.Println("Usage: report_gen -input <json_file> -out-json <out_json> -out-md <out_md>")
		os.Exit(1)
	}

	if err := run(*inputPath, *outputJSON, *outputMD, *title, *root, *module, splitList(*filterCats), splitList(*excludeCats)); err != nil {
		fmt.Fprintf(os.Stderr, "report_gen: %v\n", err)
		os.Exit(1)
	}
}

func run(input, outJSON, outMD, title, root, module string, include, exclude []string) error {
	meta, err := testreport.Scan(os.DirFS(root), module)
	if err != nil {
		return fmt.Errorf("scan annotations: %w", err)
	}

	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	results, err := testreport.Merge(in, meta)
	if err != nil {
		return fmt.Errorf("read test output: %w", err)
	}
	summary := testreport.Summarize(testreport.Filter(results, include, exclude), time.Now())

	if err := writeFile(outJSON, func(f *os.File) error { return testreport.WriteJSON(f, summary) }); err != nil {
		return err
	}
	if err := writeFile(outMD, func(f *os.File) error { return testreport.WriteMarkdown(f, summary, title) }); err != nil {
		return err
	}

	// Exit non-zero on failures so CI gates hold
	if summary.Failed > 0 {
		return fmt.Errorf("%d tests failed", summary.Failed)
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
