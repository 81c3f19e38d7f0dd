package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docql/internal/query"
	"github.com/roach88/docql/internal/schema"
)

// DefaultCollection is the table scenarios use when they name none.
const DefaultCollection = "docs"

// Scenario defines one query run against a fixed document set.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection is the table name. Defaults to DefaultCollection.
	Collection string `yaml:"collection,omitempty"`

	// Schema is an inline schema document in the schema file layout.
	Schema map[string]any `yaml:"schema,omitempty"`

	// SchemaFile is a schema file, relative to the scenario file.
	// Mutually exclusive with Schema.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// Documents are loaded before the query runs.
	Documents []DocumentStep `yaml:"documents"`

	// Query is the query in document form. Empty matches everything.
	Query map[string]any `yaml:"query"`

	// Options holds sort, limit and skip in document form.
	Options map[string]any `yaml:"options,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`

	// Golden overrides the golden file name. Defaults to Name.
	Golden string `yaml:"golden,omitempty"`
}

// DocumentStep is one document to load.
type DocumentStep struct {
	// ID is optional; missing ids are generated in order.
	ID   string         `yaml:"id,omitempty"`
	Body map[string]any `yaml:"body"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// IDs is used by ids, contains and excludes.
	IDs []string `yaml:"ids,omitempty"`

	// Count is used by count.
	Count *int64 `yaml:"count,omitempty"`

	// Pages is used by pages.
	Pages [][]string `yaml:"pages,omitempty"`

	// Text is used by sql_contains.
	Text string `yaml:"text,omitempty"`

	// Kind is a querysql.ErrorKind, used by error.
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertIDs         = "ids"
	AssertContains    = "contains"
	AssertExcludes    = "excludes"
	AssertCount       = "count"
	AssertPages       = "pages"
	AssertSQLContains = "sql_contains"
	AssertError       = "error"
)

// plan is a scenario with its schema, query and options parsed.
type plan struct {
	collection string
	schema     *schema.Schema
	query      query.Query
	opts       query.Options
}

// LoadScenario reads and parses a scenario YAML file. A relative
// schema_file is resolved against the scenario's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.SchemaFile != "" && !filepath.IsAbs(scenario.SchemaFile) {
		scenario.SchemaFile = filepath.Join(filepath.Dir(path), scenario.SchemaFile)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and that the schema, query and
// options parse. Translation errors are left to Run.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool)
	for i, doc := range s.Documents {
		if doc.Body == nil {
			return fmt.Errorf("documents[%d]: body is required", i)
		}
		if doc.ID == "" {
			continue
		}
		if seen[doc.ID] {
			return fmt.Errorf("documents[%d]: duplicate id %q", i, doc.ID)
		}
		seen[doc.ID] = true
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	_, err := s.plan()
	return err
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertIDs:
		// An empty list asserts an empty page.
	case AssertContains, AssertExcludes:
		if len(a.IDs) == 0 {
			return fmt.Errorf("assertions[%d]: ids are required for %s", index, a.Type)
		}
	case AssertCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertPages:
		if len(a.Pages) == 0 {
			return fmt.Errorf("assertions[%d]: pages are required for pages", index)
		}
	case AssertSQLContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for sql_contains", index)
		}
	case AssertError:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func (s *Scenario) plan() (*plan, error) {
	p := &plan{collection: s.Collection}
	if p.collection == "" {
		p.collection = DefaultCollection
	}
	if err := schema.ValidateTableName(p.collection); err != nil {
		return nil, fmt.Errorf("collection: %w", err)
	}

	var err error
	if p.schema, err = s.loadSchema(); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	p.query = query.Empty{}
	if len(s.Query) > 0 {
		if p.query, err = query.Parse(s.Query); err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
	}
	if len(s.Options) > 0 {
		if p.opts, err = query.ParseOptions(s.Options); err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
	}
	return p, nil
}

func (s *Scenario) loadSchema() (*schema.Schema, error) {
	switch {
	case s.Schema != nil && s.SchemaFile != "":
		return nil, fmt.Errorf("schema and schema_file are mutually exclusive")
	case s.SchemaFile != "":
		return schema.LoadFile(s.SchemaFile)
	case s.Schema != nil:
		// Round-trip through YAML so inline schemas get the file loader's
		// strict decoding and defaults.
		data, err := yaml.Marshal(s.Schema)
		if err != nil {
			return nil, err
		}
		return schema.LoadYAML(bytes.NewReader(data))
	default:
		return schema.New(nil, nil)
	}
}

// goldenName is the golden file name for the scenario.
func (s *Scenario) goldenName() string {
	if s.Golden != "" {
		return s.Golden
	}
	return s.Name
}
