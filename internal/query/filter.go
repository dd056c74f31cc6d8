// Package query translates HTTP list parameters into MongoDB filter, sort,
// projection and pagination settings.
package query

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reserved parameter names. They never become generic filter clauses.
const (
	ParamPage     = "page"
	ParamSort     = "sort"
	ParamLimit    = "limit"
	ParamFields   = "fields"
	ParamSearch   = "search"
	ParamCategory = "category"
	ParamMinPrice = "minPrice"
	ParamMaxPrice = "maxPrice"
)

var reservedParams = map[string]struct{}{
	ParamPage:     {},
	ParamSort:     {},
	ParamLimit:    {},
	ParamFields:   {},
	ParamSearch:   {},
	ParamCategory: {},
	ParamMinPrice: {},
	ParamMaxPrice: {},
}

var comparisonOperators = map[string]string{
	"gte": "$gte",
	"gt":  "$gt",
	"lte": "$lte",
	"lt":  "$lt",
}

// DefaultSearchFields are matched by the search parameter when a collection
// does not declare its own.
var DefaultSearchFields = []string{"name", "description"}

var bracketKey = regexp.MustCompile(`^([A-Za-z0-9_.]+)\[([A-Za-z]+)\]$`)

// Translate builds a filter document from parsed query parameters.
// Malformed clauses are dropped rather than reported.
func Translate(values url.Values, searchFields ...string) bson.M {
	filter := bson.M{}

	// Range operators are applied before equality so that a field carrying
	// both always resolves to the range clause, whatever the map order.
	var plain []string
	for key, vals := range values {
		if _, reserved := reservedParams[key]; reserved {
			continue
		}
		if len(vals) == 0 {
			continue
		}
		if m := bracketKey.FindStringSubmatch(key); m != nil {
			addComparison(filter, m[1], m[2], vals[0])
			continue
		}
		if validField(key) {
			plain = append(plain, key)
		}
	}
	for _, key := range plain {
		addEquality(filter, key, values[key])
	}

	if term := strings.TrimSpace(values.Get(ParamSearch)); term != "" {
		if len(searchFields) == 0 {
			searchFields = DefaultSearchFields
		}
		filter["$or"] = searchClause(term, searchFields)
	}

	if category := strings.TrimSpace(values.Get(ParamCategory)); category != "" {
		filter[ParamCategory] = category
	}

	addPriceRange(filter, values.Get(ParamMinPrice), values.Get(ParamMaxPrice))

	return filter
}

func addComparison(filter bson.M, field, op, raw string) {
	mongoOp, ok := comparisonOperators[strings.ToLower(op)]
	if !ok || !validField(field) {
		return
	}
	value, ok := coerceRangeValue(raw)
	if !ok {
		return
	}
	clause, ok := filter[field].(bson.M)
	if !ok || !isRangeClause(clause) {
		clause = bson.M{}
	}
	clause[mongoOp] = value
	filter[field] = clause
}

// isRangeClause reports whether every operator in clause is a comparison.
func isRangeClause(clause bson.M) bool {
	for op := range clause {
		switch op {
		case "$gte", "$gt", "$lte", "$lt":
		default:
			return false
		}
	}
	return true
}

func addEquality(filter bson.M, field string, vals []string) {
	if clause, ok := filter[field].(bson.M); ok && isRangeClause(clause) {
		return
	}
	if len(vals) == 1 {
		filter[field] = coerceEqualityValue(vals[0])
		return
	}
	in := make(bson.A, 0, len(vals))
	for _, v := range vals {
		in = append(in, coerceEqualityValue(v))
	}
	filter[field] = bson.M{"$in": in}
}

func searchClause(term string, fields []string) bson.A {
	pattern := regexp.QuoteMeta(term)
	or := make(bson.A, 0, len(fields))
	for _, field := range fields {
		or = append(or, bson.M{field: primitive.Regex{Pattern: pattern, Options: "i"}})
	}
	return or
}

func addPriceRange(filter bson.M, minRaw, maxRaw string) {
	minPrice, hasMin := parseNumber(minRaw)
	maxPrice, hasMax := parseNumber(maxRaw)
	if !hasMin && !hasMax {
		return
	}
	clause, ok := filter["price"].(bson.M)
	if !ok || !isRangeClause(clause) {
		clause = bson.M{}
	}
	if hasMin {
		clause["$gte"] = minPrice
	}
	if hasMax {
		clause["$lte"] = maxPrice
	}
	filter["price"] = clause
}

// coerceRangeValue accepts numbers and dates; anything else is rejected.
func coerceRangeValue(raw string) (interface{}, bool) {
	if n, ok := parseNumber(raw); ok {
		return n, true
	}
	trimmed := strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), true
		}
	}
	return nil, false
}

func coerceEqualityValue(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

// parseNumber returns an int64 for integral input and a float64 otherwise.
// NaN and infinities are rejected.
func parseNumber(raw string) (interface{}, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func validField(name string) bool {
	return name != "" && !strings.HasPrefix(name, "$") && !strings.ContainsAny(name, "[]$")
}
