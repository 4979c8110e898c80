// Package query provides the query specification accepted by the transfer
// process store, plus a validator that checks a specification against the
// field set of the aggregate before it ever reaches the store.
package query

import (
	"fmt"
	"strings"
)

// SortOrder controls result ordering.
type SortOrder string

const (
	// SortAscending orders results ascending by the sort field.
	SortAscending SortOrder = "ASC"

	// SortDescending orders results descending by the sort field.
	SortDescending SortOrder = "DESC"
)

// Operator is a filter comparison operator.
type Operator string

const (
	// OpEqual matches values equal to the criterion value.
	OpEqual Operator = "="

	// OpNotEqual matches values different from the criterion value.
	OpNotEqual Operator = "!="

	// OpLike matches string values containing the criterion value.
	OpLike Operator = "like"
)

// Criterion is a single filter expression: left operand, operator, right
// operand. The left operand is a dotted field path into the aggregate, e.g.
// "dataRequest.id" or "provisionedResources.bucketName".
type Criterion struct {
	Field string
	Op    Operator
	Value string
}

// String renders the criterion for error messages.
func (c Criterion) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Value)
}

// Spec describes a store query: filter criteria combined with AND, optional
// ordering and paging.
type Spec struct {
	// Filter lists the criteria; all must match.
	Filter []Criterion

	// SortField orders results when set.
	SortField string

	// SortOrder applies when SortField is set; defaults to ascending.
	SortOrder SortOrder

	// Offset skips the first n results.
	Offset int

	// Limit caps the result count; zero means unlimited.
	Limit int
}

// None is the empty specification, matching everything.
var None = Spec{}

// ByState builds a specification filtering on the aggregate state field.
func ByState(state string) Spec {
	return Spec{Filter: []Criterion{{Field: "state", Op: OpEqual, Value: state}}}
}

// ByField builds a single-criterion equality specification.
func ByField(field, value string) Spec {
	return Spec{Filter: []Criterion{{Field: field, Op: OpEqual, Value: value}}}
}

// validOperator reports whether op is one of the supported operators.
func validOperator(op Operator) bool {
	switch op {
	case OpEqual, OpNotEqual, OpLike:
		return true
	}
	return false
}

// splitPath splits a dotted field path into segments, dropping empties.
func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, ".") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
