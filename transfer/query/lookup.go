package query

import (
	"fmt"
	"reflect"
	"strings"
)

// Matches evaluates a single criterion against a value. Slice-valued
// segments fan out: the criterion matches when any element matches.
// Comparison is string-based over the canonical rendering of the leaf value,
// which fits the string-typed filter model of the management API.
func Matches(obj any, criterion Criterion) bool {
	values := LookupAll(obj, criterion.Field)
	for _, value := range values {
		rendered := render(value)
		switch criterion.Op {
		case OpEqual:
			if rendered == criterion.Value {
				return true
			}
		case OpNotEqual:
			if rendered != criterion.Value {
				return true
			}
		case OpLike:
			if strings.Contains(rendered, criterion.Value) {
				return true
			}
		}
	}
	return false
}

// MatchesAll evaluates every criterion of the specification (AND semantics).
func MatchesAll(obj any, spec Spec) bool {
	for _, criterion := range spec.Filter {
		if !Matches(obj, criterion) {
			return false
		}
	}
	return true
}

// LookupAll resolves a dotted field path against a value, fanning out across
// slice-valued segments. It returns every leaf value reached, or nil when
// the path does not resolve.
func LookupAll(obj any, path string) []any {
	return lookup(reflect.ValueOf(obj), splitPath(path))
}

func lookup(v reflect.Value, segments []string) []any {
	if !v.IsValid() {
		return nil
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	if len(segments) == 0 {
		return []any{v.Interface()}
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.IsExported() && fieldName(field) == segments[0] {
				return lookup(v.Field(i), segments[1:])
			}
		}
		return nil
	case reflect.Map:
		key := reflect.ValueOf(segments[0])
		if v.Type().Key() != key.Type() {
			return nil
		}
		return lookup(v.MapIndex(key), segments[1:])
	case reflect.Slice, reflect.Array:
		var results []any
		for i := 0; i < v.Len(); i++ {
			results = append(results, lookup(v.Index(i), segments)...)
		}
		return results
	}
	return nil
}

func render(value any) string {
	return fmt.Sprintf("%v", value)
}
