// Package config loads the CLI's schema-versioned configuration: the
// default detail level and the all-details report caps, following the
// same precedence chain as the teacher's project/global config merge
// (flag > env > project file > global file > defaults).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cheshbon/cheshbon/internal/report"
)

const (
	CLIConfigSchemaV1      = 1
	DefaultProjectFileName = "cheshbon.config.json"
)

// CapsV1 overrides a subset of report.DefaultCaps. Zero/absent fields
// fall back to the default.
type CapsV1 struct {
	MaxWitnesses            int `json:"maxWitnesses,omitempty"`
	MaxRootCausesPerNode    int `json:"maxRootCausesPerNode,omitempty"`
	MaxTriggerEventsPerNode int `json:"maxTriggerEventsPerNode,omitempty"`
	MaxTopRoots             int `json:"maxTopRoots,omitempty"`
}

// CLIConfigV1 is the on-disk shape of a project or global config file.
type CLIConfigV1 struct {
	SchemaVersion      int     `json:"schemaVersion"`
	DefaultDetailLevel string  `json:"defaultDetailLevel,omitempty"`
	Caps               *CapsV1 `json:"caps,omitempty"`
}

// Resolved is the fully merged configuration a CLI run actually uses.
type Resolved struct {
	DefaultDetailLevel string
	Caps               map[string]int

	// Source is informational, naming which layer won for each field.
	DetailLevelSource string
	CapsSource        string
}

// DefaultGlobalConfigPath returns ~/.cheshbon/config.json.
func DefaultGlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cheshbon", "config.json"), nil
}

// Load resolves the effective configuration. Precedence, highest first:
//  1. flagDetailLevel / flagCaps (CLI flags)
//  2. CHESHBON_DETAIL_LEVEL / CHESHBON_CAPS_* env vars
//  3. project config (./cheshbon.config.json)
//  4. global config (~/.cheshbon/config.json)
//  5. report.DefaultCaps / "core"
func Load(flagDetailLevel string, flagCaps *CapsV1) (Resolved, error) {
	res := Resolved{
		DefaultDetailLevel: "core",
		DetailLevelSource:  "default",
		Caps:               cloneCaps(report.DefaultCaps),
		CapsSource:         "default",
	}

	projectCfg, hasProject, err := loadConfigFile(DefaultProjectFileName)
	if err != nil {
		return Resolved{}, err
	}
	globalPath, err := DefaultGlobalConfigPath()
	if err != nil {
		return Resolved{}, err
	}
	globalCfg, hasGlobal, err := loadConfigFile(globalPath)
	if err != nil {
		return Resolved{}, err
	}

	if hasGlobal && strings.TrimSpace(globalCfg.DefaultDetailLevel) != "" {
		res.DefaultDetailLevel = globalCfg.DefaultDetailLevel
		res.DetailLevelSource = globalPath
	}
	if hasGlobal && globalCfg.Caps != nil {
		applyCapsOverride(res.Caps, globalCfg.Caps)
		res.CapsSource = globalPath
	}

	if hasProject && strings.TrimSpace(projectCfg.DefaultDetailLevel) != "" {
		res.DefaultDetailLevel = projectCfg.DefaultDetailLevel
		res.DetailLevelSource = DefaultProjectFileName
	}
	if hasProject && projectCfg.Caps != nil {
		applyCapsOverride(res.Caps, projectCfg.Caps)
		res.CapsSource = DefaultProjectFileName
	}

	if v := strings.TrimSpace(os.Getenv("CHESHBON_DETAIL_LEVEL")); v != "" {
		res.DefaultDetailLevel = v
		res.DetailLevelSource = "env:CHESHBON_DETAIL_LEVEL"
	}
	if envCaps, any := capsFromEnv(); any {
		applyCapsOverride(res.Caps, envCaps)
		res.CapsSource = "env"
	}

	if strings.TrimSpace(flagDetailLevel) != "" {
		res.DefaultDetailLevel = flagDetailLevel
		res.DetailLevelSource = "flag"
	}
	if flagCaps != nil {
		applyCapsOverride(res.Caps, flagCaps)
		res.CapsSource = "flag"
	}

	if res.DefaultDetailLevel != "core" && res.DefaultDetailLevel != "all-details" {
		return Resolved{}, fmt.Errorf("config: defaultDetailLevel must be %q or %q, got %q", "core", "all-details", res.DefaultDetailLevel)
	}

	return res, nil
}

func loadConfigFile(path string) (CLIConfigV1, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CLIConfigV1{}, false, nil
		}
		return CLIConfigV1{}, false, err
	}
	var cfg CLIConfigV1
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return CLIConfigV1{}, false, fmt.Errorf("config: invalid json in %s: %w", path, err)
	}
	if cfg.SchemaVersion != CLIConfigSchemaV1 {
		return CLIConfigV1{}, false, fmt.Errorf("config: %s has unsupported schemaVersion=%d", path, cfg.SchemaVersion)
	}
	return cfg, true, nil
}

func cloneCaps(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func applyCapsOverride(dst map[string]int, c *CapsV1) {
	if c.MaxWitnesses > 0 {
		dst["max_witnesses"] = c.MaxWitnesses
	}
	if c.MaxRootCausesPerNode > 0 {
		dst["max_root_causes_per_node"] = c.MaxRootCausesPerNode
	}
	if c.MaxTriggerEventsPerNode > 0 {
		dst["max_trigger_events_per_node"] = c.MaxTriggerEventsPerNode
	}
	if c.MaxTopRoots > 0 {
		dst["max_top_roots"] = c.MaxTopRoots
	}
}

func capsFromEnv() (*CapsV1, bool) {
	c := &CapsV1{}
	any := false
	if v, ok := envInt("CHESHBON_CAPS_MAX_WITNESSES"); ok {
		c.MaxWitnesses = v
		any = true
	}
	if v, ok := envInt("CHESHBON_CAPS_MAX_ROOT_CAUSES_PER_NODE"); ok {
		c.MaxRootCausesPerNode = v
		any = true
	}
	if v, ok := envInt("CHESHBON_CAPS_MAX_TRIGGER_EVENTS_PER_NODE"); ok {
		c.MaxTriggerEventsPerNode = v
		any = true
	}
	if v, ok := envInt("CHESHBON_CAPS_MAX_TOP_ROOTS"); ok {
		c.MaxTopRoots = v
		any = true
	}
	if !any {
		return nil, false
	}
	return c, true
}

func envInt(name string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
