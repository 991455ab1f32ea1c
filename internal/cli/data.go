package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/maintenance"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Data file formats, selected by file extension.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// FormatOf maps a file name to its format. JSONC files parse as JSON.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported data file %q (want .json, .jsonc, .yaml or .toml)", path)
}

// LoadDataFile reads run data keyed by step id:
//
//	basic:
//	  mileage: "45,000"
//	services:
//	  services: [oil]
func LoadDataFile(path string) (domain.Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	var doc map[string]map[string]any
	switch format {
	case FormatJSON:
		err = json.Unmarshal(jsonc.ToJSON(raw), &doc)
	case FormatYAML:
		err = yaml.Unmarshal(raw, &doc)
	case FormatTOML:
		err = toml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	data := make(domain.Data, len(doc))
	for step, values := range doc {
		sd := make(domain.StepData, len(values))
		for k, v := range values {
			sd[k] = normalize(v)
		}
		data[step] = sd
	}
	return data, nil
}

// normalize turns TOML local dates into the strings date fields accept.
func normalize(v any) any {
	switch t := v.(type) {
	case toml.LocalDate:
		return t.String()
	case toml.LocalDateTime:
		return t.LocalDate.String()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

// Problem is one validation error of a data file.
type Problem struct {
	Step    string
	Message string
}

func (p Problem) String() string {
	return p.Step + ": " + p.Message
}

// ValidateData checks data against every step of cfg that is visible for it.
// Steps the flow does not declare are reported too.
func ValidateData(cfg domain.Config, data domain.Data) []Problem {
	var problems []Problem
	declared := make(map[string]struct{}, len(cfg.Steps))
	for _, step := range cfg.Steps {
		declared[step.ID] = struct{}{}
		if !step.Visible(data) {
			continue
		}
		for _, msg := range step.Check(data) {
			problems = append(problems, Problem{Step: step.ID, Message: msg})
		}
	}

	var unknown []string
	for id := range data {
		if _, ok := declared[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	for _, id := range unknown {
		problems = append(problems, Problem{Step: id, Message: "unknown step"})
	}
	return problems
}

// Export writes the entry of a finished run. Maintenance flows are decoded
// into their typed log; other flows are written as raw step data.
func Export(w io.Writer, format, flow string, data domain.Data) error {
	var doc any = data.Plain()
	if flow == maintenance.FlowDIY || flow == maintenance.FlowShop {
		log, err := maintenance.ToLog(flow, data)
		if err != nil {
			return err
		}
		doc = log
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		raw, err := toml.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// ExportFile writes Export output to path, in the format of its extension.
func ExportFile(path, flow string, data domain.Data) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Export(&buf, format, flow, data); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
