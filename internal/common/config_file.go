package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk config file. Pointer fields distinguish "unset" from zero values.
type fileConfig struct {
	ReplacementDigit *string  `yaml:"replacement_digit"`
	Debug            *bool    `yaml:"debug"`
	InputDir         *string  `yaml:"input_dir"`
	OutputDir        *string  `yaml:"output_dir"`
	Formats          []string `yaml:"formats"`
	ReportPath       *string  `yaml:"report_path"`
	LogFormat        *string  `yaml:"log_format"`

	Database struct {
		URL      *string `yaml:"url"`
		Path     *string `yaml:"path"`
		InMemory *bool   `yaml:"in_memory"`
	} `yaml:"database"`

	Daemon struct {
		WatchDir *string `yaml:"watch_dir"`
		GRPCAddr *string `yaml:"grpc_addr"`
		Debounce *string `yaml:"debounce"`
	} `yaml:"daemon"`

	Automation struct {
		DrawingProcess *string `yaml:"drawing_process"`
		SketchProcess  *string `yaml:"sketch_process"`
		LicensePath    *string `yaml:"license_path"`
	} `yaml:"automation"`
}

// configFileSchema constrains config files before they are decoded.
func configFileSchema() map[string]any {
	str := map[string]any{"type": "string"}
	boolean := map[string]any{"type": "boolean"}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"replacement_digit": map[string]any{
				"type":    []string{"string", "integer"},
				"pattern": `^[0-9]$`,
				"minimum": 0,
				"maximum": 9,
			},
			"debug":       boolean,
			"input_dir":   str,
			"output_dir":  str,
			"report_path": str,
			"log_format":  map[string]any{"type": "string", "enum": []string{"json", "text"}},
			"formats": map[string]any{
				"type":        "array",
				"uniqueItems": true,
				"items":       map[string]any{"type": "string", "minLength": 1},
			},
			"database": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"url":       str,
					"path":      str,
					"in_memory": boolean,
				},
			},
			"daemon": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"watch_dir": str,
					"grpc_addr": str,
					"debounce":  map[string]any{"type": "string", "pattern": `^[0-9]+(ms|s|m)$`},
				},
			},
			"automation": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"drawing_process": str,
					"sketch_process":  str,
					"license_path":    str,
				},
			},
		},
	}
}

func readConfigFile(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ConfigFault("read config file", err)
	}

	// YAML is a superset of JSON, so one decoder serves both formats.
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, ConfigFault("parse config file", err)
	}
	if doc == nil {
		return &fileConfig{}, nil
	}
	if err := validateAgainstSchema(configFileSchema(), doc); err != nil {
		return nil, ConfigFault("config file "+path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, ConfigFault("decode config file", err)
	}
	return &fc, nil
}

// validateAgainstSchema round-trips doc through JSON so the validator sees json.Number values.
func validateAgainstSchema(schemaMap map[string]any, doc any) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("config.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config does not match schema: %w", err)
	}
	return nil
}

func (fc *fileConfig) apply(c *Config) {
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setStr(&c.Run.ReplacementDigit, fc.ReplacementDigit)
	setBool(&c.Run.Debug, fc.Debug)
	setStr(&c.Run.InputDir, fc.InputDir)
	setStr(&c.Run.OutputDir, fc.OutputDir)
	setStr(&c.Run.ReportPath, fc.ReportPath)
	setStr(&c.Run.LogFormat, fc.LogFormat)
	if len(fc.Formats) > 0 {
		c.Run.Formats = append([]string(nil), fc.Formats...)
	}

	setStr(&c.Database.DSN, fc.Database.URL)
	setStr(&c.Database.Path, fc.Database.Path)
	setBool(&c.Database.InMemory, fc.Database.InMemory)

	setStr(&c.Server.WatchDir, fc.Daemon.WatchDir)
	setStr(&c.Server.GRPCAddr, fc.Daemon.GRPCAddr)
	if fc.Daemon.Debounce != nil {
		if d, err := time.ParseDuration(*fc.Daemon.Debounce); err == nil {
			c.Server.Debounce = d
		}
	}

	setStr(&c.Automation.DrawingProcess, fc.Automation.DrawingProcess)
	setStr(&c.Automation.SketchProcess, fc.Automation.SketchProcess)
	setStr(&c.Automation.LicensePath, fc.Automation.LicensePath)
}
