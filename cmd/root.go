// Package cmd implements the multidecoder CLI commands.
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kestrel-sec/multidecoder/internal/decode"
	"github.com/kestrel-sec/multidecoder/internal/iocconfig"
	"github.com/kestrel-sec/multidecoder/internal/node"
	"github.com/kestrel-sec/multidecoder/internal/query"
	"github.com/kestrel-sec/multidecoder/internal/scan"
)

// Reader supplies the input buffer for a scan: a named file, or standard
// input when no file is given.
type Reader interface {
	Read(path string, stdin io.Reader) ([]byte, error)
}

type fileReader struct{}

func (fileReader) Read(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// DefaultReader reads from the OS filesystem / process stdin.
func DefaultReader() Reader { return fileReader{} }

// NewRootCmd creates the multidecoder root command.
func NewRootCmd(reader Reader) *cobra.Command {
	var (
		jsonOutput  bool
		replace     bool
		keywordsDir string
		depthLimit  int
	)

	root := &cobra.Command{
		Use:           "multidecoder [FILE]",
		Short:         "Recursively decode obfuscated indicators out of a byte buffer",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput && replace {
				return fmt.Errorf("--json and --replace are mutually exclusive")
			}

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			buf, err := reader.Read(path, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			reg, err := buildRegistry(keywordsDir)
			if err != nil {
				return err
			}

			root := scan.Scan(buf, reg, depthLimit)
			return writeOutput(cmd, root, jsonOutput, replace)
		},
	}

	root.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Emit the decoded tree as JSON")
	root.Flags().BoolVarP(&replace, "replace", "r", false, "Emit the flattened (deobfuscated) byte stream")
	root.Flags().StringVarP(&keywordsDir, "keywords", "k", "", "Directory of keyword files to register as decoders")
	root.Flags().IntVarP(&depthLimit, "depth-limit", "d", scan.DefaultDepthLimit, "Maximum recursion depth for nested decodings")
	return root
}

// buildRegistry assembles the built-in decoder set plus one keyword decoder
// per file in keywordsDir (if given), loaded in filename order for
// deterministic output.
func buildRegistry(keywordsDir string) (decode.Registry, error) {
	tables, err := iocconfig.LoadTables("")
	if err != nil {
		return nil, fmt.Errorf("loading ioc tables: %w", err)
	}
	reg := decode.Builtins(tables, decode.DefaultPEValidator)

	if keywordsDir == "" {
		return reg, nil
	}
	files, err := iocconfig.LoadKeywordDir(keywordsDir)
	if err != nil {
		return nil, fmt.Errorf("loading keywords: %w", err)
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		reg = append(reg, decode.NewKeyword(name, files[name]))
	}
	return reg, nil
}

func writeOutput(cmd *cobra.Command, root *node.Node, jsonOutput, replace bool) error {
	switch {
	case jsonOutput:
		data, err := query.ToJSON(root)
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	case replace:
		if _, err := cmd.OutOrStdout().Write(query.Flatten(root)); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	default:
		w := bufio.NewWriter(cmd.OutOrStdout())
		for _, line := range query.StringSummary(root) {
			fmt.Fprintln(w, line)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}
