package metadata

import (
	"reflect"
	"testing"
	"time"

	"gorm.io/gorm"
)

type Product struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Price    float64 `gorm:"column:unit_price"`
	Internal string  `gorm:"-"`
	Tags     []Tag
}

type Tag struct {
	ID   int
	Name string
}

type OrderLine struct {
	OrderID  int `gorm:"primaryKey;autoIncrement:false"`
	LineCode int `gorm:"primaryKey"`
	Quantity int
}

type Customer struct {
	gorm.Model
	Email string `gorm:"not null"`
}

type Ledger struct {
	ID        int
	CreatedAt time.Time
	Note      *string
}

func (Ledger) TableName() string { return "ledger" }

func TestAnalyzeEntity_SingleKey(t *testing.T) {
	meta, err := AnalyzeEntity(Product{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if meta.TableName != "products" {
		t.Errorf("Expected table products, got %s", meta.TableName)
	}
	if got := meta.KeyColumns(); !reflect.DeepEqual(got, []string{"id"}) {
		t.Errorf("Expected key columns [id], got %v", got)
	}
	if !meta.KeyProperties[0].DatabaseGenerated {
		t.Error("Expected integer primary key to be database generated")
	}
	if prop := meta.FindProperty("unit_price"); prop == nil || prop.Name != "Price" {
		t.Errorf("Expected unit_price column for Price, got %+v", prop)
	}
	if meta.FindProperty("Internal") != nil {
		t.Error("Expected gorm:\"-\" field to be skipped")
	}
	if meta.FindProperty("Tags") != nil {
		t.Error("Expected association field to be skipped")
	}
}

func TestAnalyzeEntity_CompositeKey(t *testing.T) {
	meta, err := AnalyzeEntity(&OrderLine{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if meta.TableName != "order_lines" {
		t.Errorf("Expected table order_lines, got %s", meta.TableName)
	}
	if got := meta.KeyColumns(); !reflect.DeepEqual(got, []string{"order_id", "line_code"}) {
		t.Errorf("Expected key columns [order_id line_code], got %v", got)
	}
	for _, key := range meta.KeyProperties {
		if key.DatabaseGenerated {
			t.Errorf("Expected composite key %s not to be generated", key.Name)
		}
	}

	ids, err := meta.IDs([]OrderLine{{OrderID: 1, LineCode: 1}, {OrderID: 2, LineCode: 1}})
	if err != nil {
		t.Fatalf("IDs failed: %v", err)
	}
	expected := []interface{}{
		map[string]interface{}{"order_id": 1, "line_code": 1},
		map[string]interface{}{"order_id": 2, "line_code": 1},
	}
	if !reflect.DeepEqual(ids, expected) {
		t.Errorf("Expected %v, got %v", expected, ids)
	}
}

func TestAnalyzeEntity_EmbeddedModel(t *testing.T) {
	meta, err := AnalyzeEntity([]*Customer{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if got := meta.KeyColumns(); !reflect.DeepEqual(got, []string{"id"}) {
		t.Errorf("Expected key columns [id], got %v", got)
	}
	for _, column := range []string{"created_at", "updated_at", "deleted_at", "email"} {
		if meta.FindProperty(column) == nil {
			t.Errorf("Expected column %s", column)
		}
	}
	if meta.FindProperty("email").Nullable {
		t.Error("Expected email to be non-nullable")
	}

	customer := &Customer{Email: "a@example.com"}
	customer.ID = 42
	ids, err := meta.IDs([]*Customer{customer})
	if err != nil {
		t.Fatalf("IDs failed: %v", err)
	}
	if !reflect.DeepEqual(ids, []interface{}{uint(42)}) {
		t.Errorf("Expected [42], got %v", ids)
	}
}

func TestAnalyzeEntity_TableNameOverrideAndIDFallback(t *testing.T) {
	meta, err := AnalyzeEntity(Ledger{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if meta.TableName != "ledger" {
		t.Errorf("Expected table ledger, got %s", meta.TableName)
	}
	if got := meta.KeyColumns(); !reflect.DeepEqual(got, []string{"id"}) {
		t.Errorf("Expected ID fallback key, got %v", got)
	}
	if meta.FindProperty("created_at") == nil {
		t.Error("Expected time.Time field to be a column")
	}
	if !meta.FindProperty("note").Nullable {
		t.Error("Expected pointer field to be nullable")
	}

	note := "n"
	row, err := meta.Row(&Ledger{ID: 3, Note: &note})
	if err != nil {
		t.Fatalf("Row failed: %v", err)
	}
	if row["id"] != 3 || row["note"] != &note {
		t.Errorf("unexpected row %v", row)
	}
}

func TestAnalyzeEntity_Errors(t *testing.T) {
	type NoKey struct {
		Name string
	}
	if _, err := AnalyzeEntity(NoKey{}); err == nil {
		t.Error("Expected error for entity without key")
	}
	if _, err := AnalyzeEntity(42); err == nil {
		t.Error("Expected error for non-struct entity")
	}
	if _, err := AnalyzeEntity(nil); err == nil {
		t.Error("Expected error for nil entity")
	}

	meta, err := AnalyzeEntity(Product{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if _, err := meta.KeyValues(Tag{ID: 1}); err == nil {
		t.Error("Expected error for entity of another type")
	}
	var nilProduct *Product
	if _, err := meta.KeyValues(nilProduct); err == nil {
		t.Error("Expected error for nil entity pointer")
	}
}

func TestAnalyzeEntity_IsCached(t *testing.T) {
	first, err := AnalyzeEntity(Product{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	second, err := AnalyzeEntity(&[]Product{})
	if err != nil {
		t.Fatalf("AnalyzeEntity failed: %v", err)
	}
	if first != second {
		t.Error("Expected cached metadata to be reused")
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ProductID": "product_id",
		"XMLParser": "xml_parser",
		"LineCode":  "line_code",
		"id":        "id",
	}
	for input, expected := range tests {
		if got := toSnakeCase(input); got != expected {
			t.Errorf("toSnakeCase(%q) = %q, want %q", input, got, expected)
		}
	}
}
