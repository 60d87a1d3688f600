// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command openapi-merge merges the per route fragments written by an
// openapi.Synthesizer into one validated OpenAPI 3.0 document.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/z5labs/apiguard/openapi"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/swaggest/openapi-go/openapi3"
	"go.yaml.in/yaml/v4"
)

type flags struct {
	dir     string
	title   string
	version string
	out     string
	format  string
}

func setupFlags() (*pflag.FlagSet, *flags) {
	fs := pflag.NewFlagSet("openapi-merge", pflag.ContinueOnError)
	f := &flags{}

	fs.StringVarP(&f.dir, "dir", "d", openapi.DefaultDir, "directory holding the route fragments")
	fs.StringVar(&f.title, "title", "API", "info.title of the merged document")
	fs.StringVar(&f.version, "version", "1.0.0", "info.version of the merged document")
	fs.StringVarP(&f.out, "out", "o", "-", "output file, - writes to stdout")
	fs.StringVarP(&f.format, "format", "f", "json", "output format, json or yaml")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "Usage: openapi-merge [flags]\n\n")
		_, _ = fmt.Fprintf(fs.Output(), "Merge the OpenAPI fragments of every route and validate the result.\n\n")
		_, _ = fmt.Fprintf(fs.Output(), "Flags:\n")
		fs.PrintDefaults()
	}

	return fs, f
}

func main() {
	err := run(context.Background(), afero.NewOsFs(), os.Args[1:], os.Stdout)
	if err == nil {
		return
	}

	var invalid openapi.InvalidDocumentError
	if errors.As(err, &invalid) {
		_, _ = fmt.Fprintf(os.Stderr, "✗ Validation failed: %d error(s)\n", len(invalid.Problems))
		for _, p := range invalid.Problems {
			_, _ = fmt.Fprintf(os.Stderr, "  %s\n", p)
		}
		os.Exit(1)
	}

	_, _ = fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func run(ctx context.Context, fsys afero.Fs, args []string, stdout io.Writer) error {
	fs, f := setupFlags()

	err := fs.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if f.format != "json" && f.format != "yaml" {
		fs.Usage()
		return fmt.Errorf("unknown format: %q", f.format)
	}

	s := openapi.NewSynthesizer(openapi.NewFSStore(fsys, f.dir))
	spec, err := s.MergeAll(ctx, openapi3.Info{Title: f.title, Version: f.version})
	if err != nil {
		return err
	}

	err = openapi.Validate(spec)
	if err != nil {
		return err
	}

	b, err := encode(spec, f.format)
	if err != nil {
		return err
	}

	if f.out == "-" {
		_, err = stdout.Write(b)
		return err
	}
	return afero.WriteFile(fsys, f.out, b, 0o644)
}

func encode(spec *openapi3.Spec, format string) ([]byte, error) {
	b, err := json.MarshalIndent(spec, "", "  ")
	if err != nil || format == "json" {
		return b, err
	}

	var doc map[string]any
	err = json.Unmarshal(b, &doc)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}
