package query

import (
	"reflect"
	"strings"
	"unicode"
)

// maxDepth bounds the field-path traversal when building the validator's
// allowed set, protecting against recursive type graphs.
const maxDepth = 6

// Validator checks query specifications against the known field set of an
// aggregate type, including the closed subtype hierarchy of its
// interface-typed fields. A query referencing an unknown field is rejected
// before it reaches the store.
type Validator struct {
	allowed map[string]struct{}
}

// NewValidator builds a validator for the aggregate root. variants maps an
// interface type (given as a nil pointer to the interface, e.g.
// (*transfer.ProvisionedResource)(nil)) to the concrete types that may occur
// behind it; their fields become queryable under the interface field's path.
func NewValidator(root any, variants map[any][]any) *Validator {
	v := &Validator{allowed: map[string]struct{}{}}

	resolved := map[reflect.Type][]reflect.Type{}
	for iface, impls := range variants {
		ifaceType := reflect.TypeOf(iface).Elem()
		for _, impl := range impls {
			resolved[ifaceType] = append(resolved[ifaceType], reflect.TypeOf(impl))
		}
	}

	v.collect(reflect.TypeOf(root), "", 0, resolved)
	return v
}

// Validate checks every criterion field, the operator set and the sort field
// of the specification. It returns a descriptive error naming the first
// offending element, or nil.
func (v *Validator) Validate(spec Spec) error {
	for _, criterion := range spec.Filter {
		if !validOperator(criterion.Op) {
			return &ValidationError{Element: string(criterion.Op), Reason: "unsupported operator"}
		}
		if !v.knownField(criterion.Field) {
			return &ValidationError{Element: criterion.Field, Reason: "unknown field"}
		}
	}
	if spec.SortField != "" && !v.knownField(spec.SortField) {
		return &ValidationError{Element: spec.SortField, Reason: "unknown sort field"}
	}
	return nil
}

// ValidationError describes a rejected query element.
type ValidationError struct {
	// Element is the offending field path or operator.
	Element string

	// Reason says why it was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid query: " + e.Reason + " " + e.Element
}

func (v *Validator) knownField(path string) bool {
	if _, ok := v.allowed[path]; ok {
		return true
	}
	// Map-valued fields register a wildcard entry covering arbitrary keys.
	if i := strings.LastIndex(path, "."); i > 0 {
		if _, ok := v.allowed[path[:i]+".*"]; ok {
			return true
		}
	}
	return false
}

func (v *Validator) collect(t reflect.Type, prefix string, depth int, variants map[reflect.Type][]reflect.Type) {
	if depth > maxDepth {
		return
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name := fieldName(field)
			if name == "-" {
				continue
			}
			v.collectField(field.Type, join(prefix, name), depth+1, variants)
		}
	case reflect.Interface:
		for _, impl := range variants[t] {
			v.collect(impl, prefix, depth, variants)
		}
	case reflect.Map:
		// Map-valued fields accept any sub-key, e.g. address properties.
		v.allowed[join(prefix, "*")] = struct{}{}
	}
}

func (v *Validator) collectField(t reflect.Type, path string, depth int, variants map[reflect.Type][]reflect.Type) {
	v.allowed[path] = struct{}{}
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Interface, reflect.Map:
		// time.Time and friends stay terminal; their internals are not
		// queryable paths.
		if t.PkgPath() == "time" {
			return
		}
		v.collect(t, path, depth, variants)
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// fieldName derives the queryable name of a struct field: the json tag when
// present, lowerCamel of the Go name otherwise.
func fieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag != "" {
		name := strings.Split(tag, ",")[0]
		if name != "" {
			return name
		}
	}
	runes := []rune(field.Name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
