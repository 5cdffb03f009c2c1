package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"protoscope/internal/engine/resolver"
)

const versionString = "1.0.0"

type cliOptions struct {
	configPath    string
	resolve       string
	method        string
	methods       string
	report        bool
	types         bool
	filter        string
	format        string
	output        string
	policy        string
	snapshot      string
	saveSnapshot  bool
	label         string
	listSnapshots bool
	export        string
	watch         bool
	verbose       bool
	version       bool
	args          []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("protoscope", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default ./protoscope.toml when present)")
	fs.StringVar(&opts.resolve, "resolve", "", "Resolve the prototype of <Type>::<method>")
	fs.StringVar(&opts.method, "method", "", "Describe <Type>::<method> and its declaring slot")
	fs.StringVar(&opts.methods, "methods", "", "List the methods visible on a type")
	fs.BoolVar(&opts.report, "report", false, "Resolve every method of every type matching --filter")
	fs.BoolVar(&opts.types, "types", false, "List declared types matching --filter")
	fs.StringVar(&opts.filter, "filter", "", "Case-insensitive glob over type names for --report and --types")
	fs.StringVar(&opts.format, "format", "text", "Report format: text, tsv, json or markdown")
	fs.StringVar(&opts.output, "output", "", "Write the report to this path instead of stdout")
	fs.StringVar(&opts.policy, "policy", "", "Override resolver.override_policy (virtual or contract)")
	fs.StringVar(&opts.snapshot, "snapshot", "", "Load declarations from a stored snapshot id, or \"latest\"")
	fs.BoolVar(&opts.saveSnapshot, "save-snapshot", false, "Store the loaded declarations as a new snapshot")
	fs.StringVar(&opts.label, "label", "", "Snapshot label (default db.label)")
	fs.BoolVar(&opts.listSnapshots, "list-snapshots", false, "List stored snapshots")
	fs.StringVar(&opts.export, "export", "", "Write the loaded declarations to a .toml or .yaml manifest")
	fs.BoolVar(&opts.watch, "watch", false, "Keep running and reload when sources change")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}

func validateOptions(opts cliOptions) error {
	switch opts.format {
	case "text", "tsv", "json", "markdown":
	default:
		return fmt.Errorf("--format must be one of text, tsv, json, markdown (got %q)", opts.format)
	}
	if opts.policy != "" {
		if _, err := resolver.ParsePolicy(opts.policy); err != nil {
			return err
		}
	}
	for name, value := range map[string]string{"--resolve": opts.resolve, "--method": opts.method} {
		if value == "" {
			continue
		}
		if _, _, err := splitMethodRef(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if opts.output != "" && !opts.report && !opts.types {
		return fmt.Errorf("--output requires --report or --types")
	}
	return nil
}

// splitMethodRef parses "Type::method".
func splitMethodRef(raw string) (string, string, error) {
	typ, method, ok := strings.Cut(strings.TrimSpace(raw), "::")
	typ, method = strings.TrimSpace(typ), strings.TrimSpace(method)
	if !ok || typ == "" || method == "" {
		return "", "", fmt.Errorf("expected <Type>::<method>, got %q", raw)
	}
	return typ, method, nil
}
