package ml

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// HeartSchemaVersion names the column contract of the shipped model.
const HeartSchemaVersion = "heart-v1"

// ColumnSchema is an ordered list of the columns a model was trained on.
type ColumnSchema struct {
	Version string   `yaml:"version" json:"version"`
	Columns []string `yaml:"columns" json:"columns"`
}

// HeartSchemaV1 is the training-time column order of the shipped model.
func HeartSchemaV1() ColumnSchema {
	return ColumnSchema{Version: HeartSchemaVersion, Columns: FeatureNames()}
}

func (s ColumnSchema) Validate() error {
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: %q declares no columns", ErrInvalidSchema, s.Version)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if c == "" {
			return fmt.Errorf("%w: %q has an empty column name", ErrInvalidSchema, s.Version)
		}
		if seen[c] {
			return fmt.Errorf("%w: %q repeats column %q", ErrInvalidSchema, s.Version, c)
		}
		seen[c] = true
	}
	return nil
}

// LoadSchema reads a ColumnSchema from a YAML (or JSON) file.
func LoadSchema(path string) (ColumnSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ColumnSchema{}, err
	}
	var schema ColumnSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return ColumnSchema{}, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if schema.Version == "" {
		return ColumnSchema{}, fmt.Errorf("%w: version is required", ErrInvalidSchema)
	}
	if err := schema.Validate(); err != nil {
		return ColumnSchema{}, err
	}
	return schema, nil
}

// SchemaRef is either a known ColumnSchema or Unavailable.
type SchemaRef struct {
	schema *ColumnSchema
}

func KnownSchema(s ColumnSchema) SchemaRef {
	s.Columns = append([]string(nil), s.Columns...)
	return SchemaRef{schema: &s}
}

func UnavailableSchema() SchemaRef {
	return SchemaRef{}
}

func (r SchemaRef) Schema() (ColumnSchema, bool) {
	if r.schema == nil {
		return ColumnSchema{}, false
	}
	return *r.schema, true
}

func (r SchemaRef) String() string {
	if r.schema == nil {
		return "unavailable"
	}
	return r.schema.Version
}

// DeclaredSchema returns the schema a classifier carries about itself.
func DeclaredSchema(c Classifier) SchemaRef {
	p, ok := c.(SchemaProvider)
	if !ok {
		return UnavailableSchema()
	}
	names := p.FeatureNames()
	if len(names) == 0 {
		return UnavailableSchema()
	}
	return KnownSchema(ColumnSchema{Version: "model", Columns: names})
}

// OrderedFeatureVector is what the classifier consumes.
type OrderedFeatureVector struct {
	Columns       []string  `json:"columns"`
	Values        []float64 `json:"values"`
	SchemaVersion string    `json:"schema_version,omitempty"`
	Verified      bool      `json:"verified"`
}

// Warning returns ErrUnverifiedOrdering when the vector was not checked
// against a schema.
func (v OrderedFeatureVector) Warning() error {
	if v.Verified {
		return nil
	}
	return ErrUnverifiedOrdering
}

// Project orders the record by the schema. Every declared column must exist
// in the record; nothing is zero-filled. Without a schema the construction
// order is used and the result is marked unverified.
func Project(record FeatureRecord, ref SchemaRef) (OrderedFeatureVector, error) {
	schema, ok := ref.Schema()
	if !ok {
		return OrderedFeatureVector{
			Columns: record.Names(),
			Values:  record.Values(),
		}, nil
	}
	if err := schema.Validate(); err != nil {
		return OrderedFeatureVector{}, err
	}

	var missing []string
	values := make([]float64, len(schema.Columns))
	for i, col := range schema.Columns {
		v, ok := record.Value(col)
		if !ok {
			missing = append(missing, col)
			continue
		}
		values[i] = v
	}
	if len(missing) > 0 {
		return OrderedFeatureVector{}, &SchemaMismatchError{SchemaVersion: schema.Version, Missing: missing}
	}

	return OrderedFeatureVector{
		Columns:       append([]string(nil), schema.Columns...),
		Values:        values,
		SchemaVersion: schema.Version,
		Verified:      true,
	}, nil
}
