package metadata

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// EntityMetadata describes how an entity struct maps onto a table.
type EntityMetadata struct {
	EntityType    reflect.Type
	EntityName    string
	TableName     string // Database table name (computed once, respects custom TableName() methods)
	Properties    []PropertyMetadata
	KeyProperties []PropertyMetadata // Support for composite keys
}

// PropertyMetadata holds metadata information about a persisted field
type PropertyMetadata struct {
	Name              string
	Type              reflect.Type
	ColumnName        string // Database column name (computed once, respects GORM column: tags)
	IsKey             bool
	DatabaseGenerated bool
	Nullable          bool
	GormTag           string
	index             []int
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})

	cache sync.Map // reflect.Type -> *EntityMetadata
)

// AnalyzeEntity extracts table, column and key metadata from a struct, a
// pointer to one, or a slice of either. Results are cached per type.
func AnalyzeEntity(entity interface{}) (*EntityMetadata, error) {
	if entity == nil {
		return nil, fmt.Errorf("entity must be a struct, got nil")
	}
	entityType := elementType(reflect.TypeOf(entity))

	if entityType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity must be a struct, got %s", entityType.Kind())
	}

	if cached, ok := cache.Load(entityType); ok {
		return cached.(*EntityMetadata), nil
	}

	metadata := &EntityMetadata{
		EntityType: entityType,
		EntityName: entityType.Name(),
		TableName:  getTableNameFromReflectType(entityType),
	}
	if err := analyzeFields(entityType, nil, metadata); err != nil {
		return nil, err
	}

	// Auto-detect key if no explicit key is set and a field is named "ID"
	if len(metadata.KeyProperties) == 0 {
		for i := range metadata.Properties {
			if metadata.Properties[i].Name == "ID" {
				metadata.Properties[i].IsKey = true
				metadata.Properties[i].DatabaseGenerated = isDatabaseGeneratedKey(metadata.Properties[i])
				metadata.KeyProperties = append(metadata.KeyProperties, metadata.Properties[i])
				break
			}
		}
	}

	// Composite keys are never auto-incremented unless asked for
	if len(metadata.KeyProperties) > 1 {
		for i := range metadata.KeyProperties {
			if !strings.Contains(strings.ToLower(metadata.KeyProperties[i].GormTag), "autoincrement") {
				metadata.KeyProperties[i].DatabaseGenerated = false
			}
		}
	}

	// Validate that we have at least one key property
	if len(metadata.KeyProperties) == 0 {
		return nil, fmt.Errorf("entity %s must have at least one key property (use `gorm:\"primaryKey\"` tag or name field 'ID')", metadata.EntityName)
	}

	actual, _ := cache.LoadOrStore(entityType, metadata)
	return actual.(*EntityMetadata), nil
}

func analyzeFields(structType reflect.Type, parent []int, metadata *EntityMetadata) error {
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		gormTag := field.Tag.Get("gorm")
		if gormTag == "-" || hasGormSetting(gormTag, "-") {
			continue
		}

		index := append(append([]int(nil), parent...), i)

		// Embedded structs such as gorm.Model contribute their fields
		if field.Anonymous && isEmbeddable(field.Type) {
			if err := analyzeFields(dereferenceType(field.Type), index, metadata); err != nil {
				return err
			}
			continue
		}

		if isRelation(field.Type) {
			continue
		}

		property := PropertyMetadata{
			Name:     field.Name,
			Type:     field.Type,
			GormTag:  gormTag,
			Nullable: isTypeNullable(field.Type) && !hasGormSetting(gormTag, "not null"),
			index:    index,
		}
		property.ColumnName = getColumnNameFromProperty(&property)
		if property.ColumnName == "" {
			return fmt.Errorf("error analyzing field %s: empty column name", field.Name)
		}

		if hasGormSetting(gormTag, "primarykey") || hasGormSetting(gormTag, "primary_key") {
			property.IsKey = true
			property.DatabaseGenerated = isDatabaseGeneratedKey(property)
			upsertKeyProperty(metadata, property)
		}

		metadata.Properties = append(metadata.Properties, property)
	}
	return nil
}

func upsertKeyProperty(metadata *EntityMetadata, property PropertyMetadata) {
	if metadata == nil || !property.IsKey {
		return
	}

	for i := range metadata.KeyProperties {
		if metadata.KeyProperties[i].Name == property.Name {
			metadata.KeyProperties[i] = property
			return
		}
	}

	metadata.KeyProperties = append(metadata.KeyProperties, property)
}

// isDatabaseGeneratedKey follows GORM: a lone integer primary key is
// auto-incremented unless autoIncrement:false is set.
func isDatabaseGeneratedKey(property PropertyMetadata) bool {
	if !property.IsKey {
		return false
	}

	gormTag := strings.ToLower(property.GormTag)

	// Check for explicit autoincrement:false
	if strings.Contains(gormTag, "autoincrement:false") {
		return false
	}

	keyType := dereferenceType(property.Type)
	switch keyType.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

// KeyColumns returns the key column names in declaration order.
func (metadata *EntityMetadata) KeyColumns() []string {
	columns := make([]string, len(metadata.KeyProperties))
	for i, prop := range metadata.KeyProperties {
		columns[i] = prop.ColumnName
	}
	return columns
}

// FindProperty returns the property matching the provided field or column
// name. Returns nil if no property matches.
func (metadata *EntityMetadata) FindProperty(name string) *PropertyMetadata {
	for i := range metadata.Properties {
		if metadata.Properties[i].Name == name || metadata.Properties[i].ColumnName == name {
			return &metadata.Properties[i]
		}
	}
	return nil
}

// KeyValues returns the key of one entity as a column -> value map.
func (metadata *EntityMetadata) KeyValues(entity interface{}) (map[string]interface{}, error) {
	v, err := metadata.structValue(entity)
	if err != nil {
		return nil, err
	}
	key := make(map[string]interface{}, len(metadata.KeyProperties))
	for _, prop := range metadata.KeyProperties {
		fv, ok := fieldByIndex(v, prop.index)
		if !ok {
			return nil, fmt.Errorf("entity %s: key %s is behind a nil embedded pointer", metadata.EntityName, prop.Name)
		}
		key[prop.ColumnName] = fv.Interface()
	}
	return key, nil
}

// IDs extracts identifiers from a slice (or array) of entities: plain values
// for a single-column key, column maps for a composite key. The result can be
// passed straight to an identifier filter.
func (metadata *EntityMetadata) IDs(entities interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(entities)
	for rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() != reflect.Struct {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		entities = []interface{}{entities}
		rv = reflect.ValueOf(entities)
	}

	ids := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		key, err := metadata.KeyValues(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		if len(metadata.KeyProperties) == 1 {
			ids = append(ids, key[metadata.KeyProperties[0].ColumnName])
			continue
		}
		ids = append(ids, key)
	}
	return ids, nil
}

// Row returns every persisted column of entity as a column -> value map.
func (metadata *EntityMetadata) Row(entity interface{}) (map[string]interface{}, error) {
	v, err := metadata.structValue(entity)
	if err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(metadata.Properties))
	for _, prop := range metadata.Properties {
		fv, ok := fieldByIndex(v, prop.index)
		if !ok {
			row[prop.ColumnName] = nil
			continue
		}
		row[prop.ColumnName] = fv.Interface()
	}
	return row, nil
}

func (metadata *EntityMetadata) structValue(entity interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("entity %s is nil", metadata.EntityName)
		}
		v = v.Elem()
	}
	if v.Type() != metadata.EntityType {
		return reflect.Value{}, fmt.Errorf("expected %s, got %s", metadata.EntityType, v.Type())
	}
	return v, nil
}

// fieldByIndex walks index like reflect.Value.FieldByIndex but reports nil
// embedded pointers instead of panicking.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

func hasGormSetting(gormTag, setting string) bool {
	for _, part := range strings.Split(gormTag, ";") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == setting || strings.HasPrefix(part, setting+":") {
			return true
		}
	}
	return false
}

// isEmbeddable reports whether an anonymous field is a struct whose fields are
// promoted into the table (as opposed to a struct stored as a single column).
func isEmbeddable(t reflect.Type) bool {
	t = dereferenceType(t)
	return t.Kind() == reflect.Struct && !isScalarType(t)
}

// isRelation reports whether a field holds associated entities rather than a
// column value.
func isRelation(t reflect.Type) bool {
	t = dereferenceType(t)
	switch t.Kind() {
	case reflect.Struct:
		return !isScalarType(t)
	case reflect.Slice, reflect.Array:
		elem := dereferenceType(t.Elem())
		return elem.Kind() == reflect.Struct && !isScalarType(elem)
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Interface:
		return true
	}
	return false
}

func isScalarType(t reflect.Type) bool {
	if t == timeType {
		return true
	}
	return t.Implements(valuerType) || reflect.PointerTo(t).Implements(scannerType)
}

func isTypeNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		// These types can be nil in Go
		return true
	default:
		// Value types like int, bool, time.Time cannot be nil
		return false
	}
}

// pluralize creates a simple pluralized form of the entity name
func pluralize(word string) string {
	if word == "" {
		return word
	}

	switch {
	case strings.HasSuffix(word, "y") && len(word) > 1 && !isVowel(rune(word[len(word)-2])):
		// "Category" -> "Categories", but "Key" -> "Keys"
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") || strings.HasSuffix(word, "z") ||
		strings.HasSuffix(word, "ch") || strings.HasSuffix(word, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

// isVowel checks if a rune is a vowel
func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	default:
		return false
	}
}

func dereferenceType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// elementType strips pointers, slices and arrays down to the entity type.
func elementType(t reflect.Type) reflect.Type {
	for {
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}
}

// getTableNameFromReflectType returns the table name for a given entity type
// This respects custom TableName() methods on the entity by using reflection
// to create a zero-value instance and checking if it implements the TableName() interface
func getTableNameFromReflectType(entityType reflect.Type) string {
	// Create a zero value instance and check if it implements TableName()
	instance := reflect.New(entityType).Interface()

	if tabler, ok := instance.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}

	// Fallback to default GORM naming (snake_case pluralization)
	return toSnakeCase(pluralize(entityType.Name()))
}

// getColumnNameFromProperty computes the database column name for a property
// This respects GORM column: tags, then falls back to snake_case conversion
func getColumnNameFromProperty(prop *PropertyMetadata) string {
	if prop == nil {
		return ""
	}

	if prop.GormTag != "" {
		parts := strings.Split(prop.GormTag, ";")
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "column:") {
				return part[len("column:"):]
			}
		}
	}

	return toSnakeCase(prop.Name)
}

// toSnakeCase converts a camelCase or PascalCase string to snake_case
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			// For "ProductID", we want "product_id" not "product_i_d"
			prevRune := rune(s[i-1])
			if prevRune >= 'a' && prevRune <= 'z' {
				result.WriteRune('_')
			} else if i < len(s)-1 {
				// "XMLParser" -> "xml_parser"
				nextRune := rune(s[i+1])
				if nextRune >= 'a' && nextRune <= 'z' {
					result.WriteRune('_')
				}
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
