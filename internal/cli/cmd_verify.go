package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cheshbon/cheshbon"
)

func (r Runner) runVerify(args []string) int {
	fs := newFlagSet("verify")

	reportPath := fs.String("report", "", "all-details report file path (required)")
	specV1 := fs.String("spec-v1", "", "spec v1 file path (required)")
	specV2 := fs.String("spec-v2", "", "spec v2 file path (required)")
	registryV1 := fs.String("registry-v1", "", "transform registry v1 file path")
	registryV2 := fs.String("registry-v2", "", "transform registry v2 file path")
	bindingsV2 := fs.String("bindings-v2", "", "bindings v2 file path")
	rawSchemaV2 := fs.String("raw-schema-v2", "", "raw schema v2 file path")
	mode := fs.String("mode", "sample", "verification mode: sample or strict")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("verify: invalid flags")
	}
	if *help {
		printVerifyHelp(r.Stdout)
		return 0
	}
	if *reportPath == "" || *specV1 == "" || *specV2 == "" {
		printVerifyHelp(r.Stderr)
		return r.failUsage("verify: --report, --spec-v1 and --spec-v2 are required")
	}

	verifyMode := cheshbon.VerifySample
	if *mode == "strict" {
		verifyMode = cheshbon.VerifyStrict
	} else if *mode != "sample" {
		return r.failUsage("verify: --mode must be sample or strict")
	}

	raw, err := os.ReadFile(*reportPath)
	if err != nil {
		return r.failIO(fmt.Sprintf("verify: reading report: %s", err.Error()))
	}
	var reportDoc cheshbon.AllDetailsReport
	if err := json.Unmarshal(raw, &reportDoc); err != nil {
		return r.failUsage(fmt.Sprintf("verify: invalid report json: %s", err.Error()))
	}

	registryV1In, registryV2In, err := registryPairInputs(*registryV1, *registryV2)
	if err != nil {
		return r.failUsage(fmt.Sprintf("verify: %s", err.Error()))
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

	inputs := cheshbon.VerifyInputs{
		SpecV1:      cheshbon.FromPath(*specV1),
		SpecV2:      cheshbon.FromPath(*specV2),
		RegistryV1:  registryV1In,
		RegistryV2:  registryV2In,
		BindingsV2:  bindingsIn,
		RawSchemaV2: rawSchemaIn,
	}

	result, err := cheshbon.VerifyReport(reportDoc, inputs, verifyMode)
	if err != nil {
		return r.failIO(fmt.Sprintf("verify: %s", err.Error()))
	}

	if *jsonOut {
		if exit := r.writeJSON(result); exit != 0 {
			return exit
		}
	} else if result.OK {
		fmt.Fprintf(r.Stdout, "verify: OK\n")
	} else {
		fmt.Fprintf(r.Stdout, "verify: FAILED\n")
		for _, c := range result.Clauses {
			if !c.OK {
				fmt.Fprintf(r.Stderr, "  FAIL %s: %v\n", c.ID, c.Details)
			}
		}
	}

	if result.OK {
		return 0
	}
	return 1
}
