// Package iocconfig loads the optional user-supplied YAML overlay for the
// network decoder's TLD/false-positive tables, and the optional keyword
// file directory. Parsing follows the same "read whole file, unmarshal with
// yaml.v3, validate structurally" shape as the teacher's frontmatter
// parsing (internal/node/frontmatter.go in the prosemark tool this project
// was adapted from), generalized from a document's front matter block to a
// standalone config document.
package iocconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kestrel-sec/multidecoder/internal/iocdata"
)

// LoadTables reads a YAML overlay file at path and merges it on top of the
// embedded defaults. An empty path returns the defaults unchanged.
func LoadTables(path string) (*iocdata.Tables, error) {
	defaults := iocdata.Default()
	if path == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ioc config: %w", err)
	}
	overlay, err := iocdata.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing ioc config %s: %w", path, err)
	}
	return defaults.Merge(overlay), nil
}

// LoadKeywordDir reads every file in dir (non-recursive) as a keyword file:
// one keyword per line, blank lines ignored, UTF-8 bytes treated literally.
// The returned map is keyed by the base filename (the decoder label).
func LoadKeywordDir(dir string) (map[string][][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading keyword directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make(map[string][][]byte, len(names))
	for _, name := range names {
		keywords, err := loadKeywordFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading keyword file %s: %w", name, err)
		}
		out[name] = keywords
	}
	return out, nil
}

func loadKeywordFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keywords [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		keywords = append(keywords, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return keywords, nil
}
