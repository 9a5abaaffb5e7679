package ml

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sampleRecord(t *testing.T) FeatureRecord {
	t.Helper()
	record, err := mustAssembler(t, nil).Assemble(sampleVitals(), identityScaler())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return record
}

func TestProjectPermutation(t *testing.T) {
	record := sampleRecord(t)
	names := FeatureNames()
	reversed := make([]string, len(names))
	for i, n := range names {
		reversed[len(names)-1-i] = n
	}

	vector, err := Project(record, KnownSchema(ColumnSchema{Version: "reversed", Columns: reversed}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !vector.Verified || vector.Warning() != nil {
		t.Fatal("expected verified vector")
	}
	if !reflect.DeepEqual(vector.Columns, reversed) {
		t.Fatalf("unexpected columns: %v", vector.Columns)
	}
	for i, col := range reversed {
		want, _ := record.Value(col)
		if vector.Values[i] != want {
			t.Fatalf("%s at %d: expected %v, got %v", col, i, want, vector.Values[i])
		}
	}
	if vector.SchemaVersion != "reversed" {
		t.Fatalf("unexpected schema version %q", vector.SchemaVersion)
	}
}

func TestProjectSubset(t *testing.T) {
	record := sampleRecord(t)
	vector, err := Project(record, KnownSchema(ColumnSchema{Version: "v", Columns: []string{"risk_score", "age"}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(vector.Values, []float64{3, 65}) {
		t.Fatalf("unexpected values: %v", vector.Values)
	}
}

func TestProjectUnknownColumn(t *testing.T) {
	record := sampleRecord(t)
	columns := append(FeatureNames(), "cp_4")
	_, err := Project(record, KnownSchema(ColumnSchema{Version: "drifted", Columns: columns}))
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if !reflect.DeepEqual(mismatch.Missing, []string{"cp_4"}) {
		t.Fatalf("unexpected missing columns: %v", mismatch.Missing)
	}
}

func TestProjectUnavailableSchema(t *testing.T) {
	record := sampleRecord(t)
	vector, err := Project(record, UnavailableSchema())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vector.Verified {
		t.Fatal("expected unverified vector")
	}
	if !errors.Is(vector.Warning(), ErrUnverifiedOrdering) {
		t.Fatalf("expected unverified warning, got %v", vector.Warning())
	}
	if !reflect.DeepEqual(vector.Columns, FeatureNames()) {
		t.Fatalf("unexpected columns: %v", vector.Columns)
	}
	if !reflect.DeepEqual(vector.Values, record.Values()) {
		t.Fatalf("unexpected values: %v", vector.Values)
	}
}

func TestProjectRejectsInvalidSchema(t *testing.T) {
	record := sampleRecord(t)
	if _, err := Project(record, KnownSchema(ColumnSchema{Version: "empty"})); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for empty schema, got %v", err)
	}
	dup := ColumnSchema{Version: "dup", Columns: []string{"age", "age"}}
	if _, err := Project(record, KnownSchema(dup)); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for duplicate column, got %v", err)
	}
}

func TestHeartSchemaMatchesAssembler(t *testing.T) {
	vector, err := Project(sampleRecord(t), KnownSchema(HeartSchemaV1()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vector.Values) != 19 {
		t.Fatalf("expected 19 values, got %d", len(vector.Values))
	}
}

func TestLoadSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := "version: heart-v1\ncolumns:\n  - age\n  - sex\n  - risk_score\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	schema, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Version != "heart-v1" || len(schema.Columns) != 3 {
		t.Fatalf("unexpected schema: %+v", schema)
	}

	if err := os.WriteFile(path, []byte("columns: [age]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSchema(path); err == nil {
		t.Fatal("expected error for missing version")
	}
}

func TestDeclaredSchema(t *testing.T) {
	tree := NewDecisionTree([]string{"age", "sex"}, []TreeNode{{IsLeaf: true, Proba: []float64{1, 0}}})
	ref := DeclaredSchema(tree)
	schema, ok := ref.Schema()
	if !ok || !reflect.DeepEqual(schema.Columns, []string{"age", "sex"}) {
		t.Fatalf("unexpected declared schema: %+v", schema)
	}

	unnamed := NewDecisionTree(nil, []TreeNode{{IsLeaf: true, Proba: []float64{1, 0}}})
	if _, ok := DeclaredSchema(unnamed).Schema(); ok {
		t.Fatal("expected unavailable schema")
	}
}
