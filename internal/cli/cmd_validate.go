package cli

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cheshbon/cheshbon"
)

func (r Runner) runValidate(args []string) int {
	fs := newFlagSet("validate")

	specPath := fs.String("spec", "", "spec file path (required)")
	registryPath := fs.String("registry", "", "transform registry file path")
	bindingsPath := fs.String("bindings", "", "bindings file path")
	rawSchemaPath := fs.String("raw-schema", "", "raw schema file path")
	format := fs.String("format", "json", "output format: json or yaml")
	jsonOut := fs.Bool("json", false, "print output (alias for --format json)")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("validate: invalid flags")
	}
	if *help {
		printValidateHelp(r.Stdout)
		return 0
	}
	if *specPath == "" {
		printValidateHelp(r.Stderr)
		return r.failUsage("validate: --spec is required")
	}
	if *jsonOut {
		*format = "json"
	}
	if *format != "json" && *format != "yaml" {
		return r.failUsage("validate: --format must be json or yaml")
	}

	var registryIn *cheshbon.RegistryInput
	if *registryPath != "" {
		in := cheshbon.RegistryFromPath(*registryPath)
		registryIn = &in
	}
	var bindingsIn *cheshbon.BindingsInput
	if *bindingsPath != "" {
		in := cheshbon.BindingsFromPath(*bindingsPath)
		bindingsIn = &in
	}
	var rawSchemaIn *cheshbon.RawSchemaInput
	if *rawSchemaPath != "" {
		in := cheshbon.RawSchemaFromPath(*rawSchemaPath)
		rawSchemaIn = &in
	}

	result, err := cheshbon.Validate(cheshbon.FromPath(*specPath), registryIn, bindingsIn, rawSchemaIn)
	if err != nil {
		return r.failIO(fmt.Sprintf("validate: %s", err.Error()))
	}

	if *format == "yaml" {
		enc := yaml.NewEncoder(r.Stdout)
		defer enc.Close()
		if err := enc.Encode(result); err != nil {
			return r.failIO("validate: failed to encode yaml")
		}
	} else if exit := r.writeJSON(result); exit != 0 {
		return exit
	}

	if !result.OK {
		return 2
	}
	return 0
}
