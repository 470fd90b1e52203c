package cli

import (
	"fmt"

	"github.com/cheshbon/cheshbon"
	"github.com/cheshbon/cheshbon/internal/config"
	"github.com/cheshbon/cheshbon/internal/store"
)

func (r Runner) runAllDetails(args []string) int {
	fs := newFlagSet("all-details")

	specV1 := fs.String("spec-v1", "", "spec v1 file path (required)")
	specV2 := fs.String("spec-v2", "", "spec v2 file path (required)")
	registryV1 := fs.String("registry-v1", "", "transform registry v1 file path")
	registryV2 := fs.String("registry-v2", "", "transform registry v2 file path")
	bindingsV2 := fs.String("bindings-v2", "", "bindings v2 file path")
	rawSchemaV2 := fs.String("raw-schema-v2", "", "raw schema v2 file path")
	out := fs.String("out", "", "write the report to this path (atomic, lock-guarded) instead of only stdout")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("all-details: invalid flags")
	}
	if *help {
		printAllDetailsHelp(r.Stdout)
		return 0
	}
	if *specV1 == "" || *specV2 == "" {
		printAllDetailsHelp(r.Stderr)
		return r.failUsage("all-details: --spec-v1 and --spec-v2 are required")
	}

	registryV1In, registryV2In, err := registryPairInputs(*registryV1, *registryV2)
	if err != nil {
		return r.failUsage(fmt.Sprintf("all-details: %s", err.Error()))
	}
	var bindingsIn *cheshbon.BindingsInput
	if *bindingsV2 != "" {
		in := cheshbon.BindingsFromPath(*bindingsV2)
		bindingsIn = &in
	}
	var rawSchemaIn *cheshbon.RawSchemaInput
	if *rawSchemaV2 != "" {
		in := cheshbon.RawSchemaFromPath(*rawSchemaV2)
		rawSchemaIn = &in
	}

	cfg, err := config.Load("", nil)
	if err != nil {
		return r.failIO(fmt.Sprintf("all-details: %s", err.Error()))
	}

	doc, err := cheshbon.DiffAllDetails(cheshbon.FromPath(*specV1), cheshbon.FromPath(*specV2), registryV1In, registryV2In, bindingsIn, rawSchemaIn, cfg.Caps)
	if err != nil {
		return r.failIO(fmt.Sprintf("all-details: %s", err.Error()))
	}

	if *out != "" {
		if err := writeReportAtomic(*out, doc); err != nil {
			return r.failIO(fmt.Sprintf("all-details: %s", err.Error()))
		}
	}

	if *jsonOut || *out == "" {
		if exit := r.writeJSON(doc); exit != 0 {
			return exit
		}
	}

	return exitForAllDetailsReport(doc)
}

// writeReportAtomic serializes doc through store's canonical-JSON + atomic
// rename path, holding a file lock so two concurrent invocations writing the
// same output path cannot interleave partial writes.
func writeReportAtomic(path string, doc cheshbon.AllDetailsReport) error {
	return store.WithFileLock(path, func() error {
		b, err := store.CanonicalJSON(doc)
		if err != nil {
			return err
		}
		return store.WriteFileAtomic(path, b)
	})
}

func exitForAllDetailsReport(doc cheshbon.AllDetailsReport) int {
	if validationFailed, _ := doc["validation_failed"].(bool); validationFailed {
		return 2
	}
	if status, _ := doc["run_status"].(string); status == "impacted" {
		return 1
	}
	return 0
}
