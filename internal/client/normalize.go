package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Schema maps every spelling of an entity's fields (camelCase, snake_case,
// UPPER_SNAKE, column name) onto the camelCase JSON name of the model.
type Schema struct {
	name   string
	fields map[string]string
}

var schemas sync.Map

// SchemaOf derives the field set from the json tags of T.
func SchemaOf[T any]() *Schema {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := schemas.Load(typ); ok {
		return cached.(*Schema)
	}

	s := &Schema{name: typ.Name(), fields: make(map[string]string)}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		s.fields[canonical(name)] = name
		s.fields[canonical(f.Name)] = name
		if column := gormColumn(f.Tag.Get("gorm")); column != "" {
			s.fields[canonical(column)] = name
		}
	}

	actual, _ := schemas.LoadOrStore(typ, s)
	return actual.(*Schema)
}

// Fields lists the camelCase field names.
func (s *Schema) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range s.fields {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Normalize converts one object to camelCase keys. When a field is present
// under several spellings, a non-null UPPER_SNAKE value wins over the exact
// camelCase key, which wins over any other spelling.
func (s *Schema) Normalize(obj map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(obj))
	ranks := make(map[string]int, len(obj))

	var unknown []string
	for key, value := range obj {
		name, ok := s.fields[canonical(key)]
		if !ok {
			unknown = append(unknown, key)
			continue
		}

		rank := 1
		switch {
		case isUpperKey(key) && value != nil:
			rank = 3
		case key == name:
			rank = 2
		case isUpperKey(key):
			rank = 0
		}

		if prev, seen := ranks[name]; seen && prev >= rank {
			continue
		}
		ranks[name] = rank
		out[name] = value
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unexpected %s fields in response: %s", s.name, strings.Join(unknown, ", "))
	}
	return out, nil
}

// Decode normalizes raw and decodes it into v.
func (s *Schema) Decode(raw []byte, v interface{}) error {
	var obj map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.name, err)
	}
	if obj == nil {
		return fmt.Errorf("failed to decode %s: empty object", s.name)
	}

	normalized, err := s.Normalize(obj)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.name, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.name, err)
	}
	return nil
}

func canonical(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", ""))
}

func isUpperKey(key string) bool {
	return strings.ToUpper(key) == key && strings.ToLower(key) != key
}

func gormColumn(tag string) string {
	for _, part := range strings.Split(tag, ";") {
		if column, ok := strings.CutPrefix(part, "column:"); ok {
			return column
		}
	}
	return ""
}
