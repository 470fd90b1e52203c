// Package cli is the command-line frontend over the cheshbon facade
// package: four subcommands (validate, diff, all-details, verify), each
// a thin flag-parsing + JSON-rendering wrapper, modeled on the teacher's
// Runner{Version, Now, Stdout, Stderr}.Run(args) int dispatch.
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
)

type CliError struct {
	Code    string
	Message string
}

func (e *CliError) Error() string { return e.Message }

type Runner struct {
	Version string
	Now     func() time.Time
	Stdout  io.Writer
	Stderr  io.Writer
}

func (r Runner) Run(args []string) int {
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}
	if r.Now == nil {
		r.Now = time.Now
	}

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printRootHelp(r.Stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		return r.runValidate(args[1:])
	case "diff":
		return r.runDiff(args[1:])
	case "all-details":
		return r.runAllDetails(args[1:])
	case "verify":
		return r.runVerify(args[1:])
	case "version":
		fmt.Fprintf(r.Stdout, "%s\n", r.Version)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "CHESHBON_E_USAGE: unknown command %q\n", args[0])
		printRootHelp(r.Stderr)
		return 2
	}
}

func (r Runner) writeJSON(v any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.Stderr, "CHESHBON_E_IO: failed to encode json\n")
		return 1
	}
	return 0
}

func (r Runner) failUsage(msg string) int {
	fmt.Fprintf(r.Stderr, "CHESHBON_E_USAGE: %s\n", msg)
	return 2
}

func (r Runner) failIO(msg string) int {
	fmt.Fprintf(r.Stderr, "CHESHBON_E_IO: %s\n", msg)
	return 1
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func printRootHelp(w io.Writer) {
	fmt.Fprint(w, `cheshbon - deterministic change-impact engine for data mapping specs

Usage:
  cheshbon validate --spec <path> [--registry <path>] [--bindings <path>] [--raw-schema <path>] [--format json|yaml] [--json]
  cheshbon diff --spec-v1 <path> --spec-v2 <path> [--registry-v1 <path> --registry-v2 <path>] [--bindings-v2 <path>] [--detail core|full] [--json]
  cheshbon all-details --spec-v1 <path> --spec-v2 <path> [--registry-v1 <path> --registry-v2 <path>] [--bindings-v2 <path>] [--raw-schema-v2 <path>] [--out <path>] [--json]
  cheshbon verify --report <path> --spec-v1 <path> --spec-v2 <path> [--registry-v1 <path> --registry-v2 <path>] [--bindings-v2 <path>] [--raw-schema-v2 <path>] [--mode sample|strict] [--json]
  cheshbon version

Commands:
  validate      Run preflight checks against a single spec (never runs impact analysis).
  diff          Compute the impact diff between two spec versions.
  all-details   Compute the diff and assemble the machine-verifiable all-details report.
  verify        Independently recompute a diff and check an all-details report's claims against it.
  version       Print version.

Exit codes: 0 no impact / OK, 1 impacted or verification failed, 2 validation failed.
`)
}

func printValidateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  cheshbon validate --spec <path> [--registry <path>] [--bindings <path>] [--raw-schema <path>] [--format json|yaml] [--json]
`)
}

func printDiffHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  cheshbon diff --spec-v1 <path> --spec-v2 <path> [--registry-v1 <path> --registry-v2 <path>] [--bindings-v2 <path>] [--detail core|full] [--json]
`)
}

func printAllDetailsHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  cheshbon all-details --spec-v1 <path> --spec-v2 <path> [--registry-v1 <path> --registry-v2 <path>] [--bindings-v2 <path>] [--raw-schema-v2 <path>] [--out <path>] [--json]
`)
}

func printVerifyHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  cheshbon verify --report <path> --spec-v1 <path> --spec-v2 <path> [--registry-v1 <path> --registry-v2 <path>] [--bindings-v2 <path>] [--raw-schema-v2 <path>] [--mode sample|strict] [--json]
`)
}
