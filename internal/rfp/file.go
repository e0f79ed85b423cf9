package rfp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

const schemaName = "rfp-summary.schema.json"

var (
	summarySchema = mustCompileSchema(schemaJSON, schemaName)
	printer       = message.NewPrinter(language.English)
)

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile %s: %v", name, err))
	}
	return sch
}

// LoadSummary reads a summary previously written by Save or by hand. Both
// JSON and YAML are accepted; the document is validated before decoding.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rfp summary: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rfp summary %s: %w", path, err)
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rfp summary %s: top level must be an object", path)
	}

	if err := Validate(fields); err != nil {
		return nil, fmt.Errorf("rfp summary %s: %w", path, err)
	}

	return Decode(fields)
}

// Validate checks a decoded summary document against the summary schema.
func Validate(doc map[string]any) error {
	// round trip through JSON so YAML ints and JSON numbers look the same to the validator
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	err = summarySchema.Validate(instance)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}

	var problems []string
	collectSchemaErrors(ve, &problems)
	return fmt.Errorf("invalid summary: %s", strings.Join(problems, "; "))
}

func collectSchemaErrors(ve *jsonschema.ValidationError, problems *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*problems = append(*problems, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(printer)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, problems)
	}
}

// Save writes the summary as indented JSON, creating parent directories.
func (s *Summary) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(s)
}
