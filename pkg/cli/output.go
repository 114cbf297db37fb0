package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how Output renders a value.
type OutputFormat string

const (
	FormatYAML  OutputFormat = "yaml"
	FormatJSON  OutputFormat = "json"
	FormatJSONL OutputFormat = "jsonl"
	FormatRaw   OutputFormat = "raw"
)

// ParseFormat validates a --format flag value. The empty string is YAML.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case "":
		return FormatYAML, nil
	case FormatYAML, FormatJSON, FormatJSONL, FormatRaw:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want yaml, json, jsonl or raw)", s)
	}
}

// OutputOptions says where and how Output writes.
type OutputOptions struct {
	Format OutputFormat
	// File receives the output when Writer is nil. Empty means stdout.
	File string
	// Indent is used by FormatJSON; it defaults to two spaces.
	Indent string
	Writer io.Writer
}

// Output renders result. With FormatJSONL a slice is written one element
// per line; any other value is a single line.
func Output(result any, opts OutputOptions) error {
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return err
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
		if opts.File != "" {
			f, err := os.Create(opts.File)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		indent := opts.Indent
		if indent == "" {
			indent = "  "
		}
		enc.SetIndent("", indent)
		return enc.Encode(result)
	case FormatJSONL:
		return writeLines(json.NewEncoder(w), result)
	case FormatRaw:
		switch v := result.(type) {
		case []byte:
			_, err := w.Write(v)
			return err
		case string:
			_, err := io.WriteString(w, v)
			return err
		}
	}
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func writeLines(enc *json.Encoder, result any) error {
	v := reflect.ValueOf(result)
	if v.Kind() != reflect.Slice || v.Type().Elem().Kind() == reflect.Uint8 {
		return enc.Encode(result)
	}
	for i := range v.Len() {
		if err := enc.Encode(v.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

func PrintSuccess(format string, args ...any) { notify(os.Stdout, "✓ ", format, args) }
func PrintInfo(format string, args ...any)    { notify(os.Stdout, "ℹ ", format, args) }
func PrintWarning(format string, args ...any) { notify(os.Stdout, "⚠ ", format, args) }
func PrintError(format string, args ...any)   { notify(os.Stderr, "Error: ", format, args) }

// PrintVerbose writes to stderr only when verbose is set.
func PrintVerbose(verbose bool, format string, args ...any) {
	if verbose {
		notify(os.Stderr, "[verbose] ", format, args)
	}
}

func notify(w io.Writer, prefix, format string, args []any) {
	fmt.Fprintf(w, prefix+format+"\n", args...)
}
