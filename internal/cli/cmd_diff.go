package cli

import (
	"fmt"

	"github.com/cheshbon/cheshbon"
)

func (r Runner) runDiff(args []string) int {
	fs := newFlagSet("diff")

	specV1 := fs.String("spec-v1", "", "spec v1 file path (required)")
	specV2 := fs.String("spec-v2", "", "spec v2 file path (required)")
	registryV1 := fs.String("registry-v1", "", "transform registry v1 file path")
	registryV2 := fs.String("registry-v2", "", "transform registry v2 file path")
	bindingsV2 := fs.String("bindings-v2", "", "bindings v2 file path")
	detail := fs.String("detail", "core", "detail level: core or full")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("diff: invalid flags")
	}
	if *help {
		printDiffHelp(r.Stdout)
		return 0
	}
	if *specV1 == "" || *specV2 == "" {
		printDiffHelp(r.Stderr)
		return r.failUsage("diff: --spec-v1 and --spec-v2 are required")
	}

	registryV1In, registryV2In, err := registryPairInputs(*registryV1, *registryV2)
	if err != nil {
		return r.failUsage(fmt.Sprintf("diff: %s", err.Error()))
	}
	var bindingsIn *cheshbon.BindingsInput
	if *bindingsV2 != "" {
		in := cheshbon.BindingsFromPath(*bindingsV2)
		bindingsIn = &in
	}

	detailLevel := cheshbon.DetailCore
	if *detail == "full" {
		detailLevel = cheshbon.DetailFull
	} else if *detail != "core" {
		return r.failUsage("diff: --detail must be core or full")
	}

	result, err := cheshbon.Diff(cheshbon.FromPath(*specV1), cheshbon.FromPath(*specV2), registryV1In, registryV2In, bindingsIn, detailLevel)
	if err != nil {
		return r.failIO(fmt.Sprintf("diff: %s", err.Error()))
	}

	if *jsonOut {
		if exit := r.writeJSON(result); exit != 0 {
			return exit
		}
	} else {
		fmt.Fprintf(r.Stdout, "diff: %d impacted, %d unaffected\n", len(result.ImpactedIDs), len(result.UnaffectedIDs))
	}

	return exitForDiffResult(result)
}

func registryPairInputs(v1, v2 string) (*cheshbon.RegistryInput, *cheshbon.RegistryInput, error) {
	if (v1 == "") != (v2 == "") {
		return nil, nil, cheshbon.ErrRegistryPairRequired
	}
	if v1 == "" {
		return nil, nil, nil
	}
	in1 := cheshbon.RegistryFromPath(v1)
	in2 := cheshbon.RegistryFromPath(v2)
	return &in1, &in2, nil
}

func exitForDiffResult(result cheshbon.DiffResult) int {
	if result.ValidationFailed {
		return 2
	}
	if len(result.ImpactedIDs) > 0 {
		return 1
	}
	return 0
}
