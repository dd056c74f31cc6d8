package query

import (
	"net/url"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultPage  int64 = 1
	DefaultLimit int64 = 100
	MaxLimit     int64 = 1000
	MaxPage      int64 = 1 << 31

	// CreatedAtField orders results when no sort is requested.
	CreatedAtField = "createdAt"
	// VersionField is the internal revision counter hidden from responses.
	VersionField = "__v"
)

// Filtered is the first stage of a list query. Each stage is a value; moving to
// the next stage never changes the previous one, and the only way forward is
// filter → sort → select → paginate.
type Filtered struct {
	filter bson.M
}

// Sorted carries the filter plus ordering.
type Sorted struct {
	filter bson.M
	sort   bson.D
}

// Selected carries the filter, ordering and projection.
type Selected struct {
	filter     bson.M
	sort       bson.D
	projection bson.D
}

// Page describes a slice of results.
type Page struct {
	Number int64 `json:"page"`
	Limit  int64 `json:"limit"`
	Skip   int64 `json:"-"`
}

// Plan is a complete, ready-to-execute list query.
type Plan struct {
	filter     bson.M
	sort       bson.D
	projection bson.D
	page       Page
}

// Filter starts a query from request parameters.
func Filter(values url.Values, searchFields ...string) Filtered {
	return Filtered{filter: Translate(values, searchFields...)}
}

// FromValues runs every stage in order.
func FromValues(values url.Values, searchFields ...string) Plan {
	return Filter(values, searchFields...).Sort(values).Select(values).Paginate(values)
}

// Sort applies the comma-separated sort parameter. A leading '-' sorts
// descending. Without a sort parameter results are newest first.
func (f Filtered) Sort(values url.Values) Sorted {
	return Sorted{filter: f.filter, sort: parseSort(joined(values, ParamSort))}
}

// Select applies the comma-separated fields parameter.
func (s Sorted) Select(values url.Values) Selected {
	return Selected{filter: s.filter, sort: s.sort, projection: parseFields(joined(values, ParamFields))}
}

// Paginate applies page and limit.
func (s Selected) Paginate(values url.Values) Plan {
	return Plan{
		filter:     s.filter,
		sort:       s.sort,
		projection: s.projection,
		page:       ParsePage(values),
	}
}

// Filter returns a deep copy of the filter document.
func (p Plan) Filter() bson.M {
	return cloneDoc(p.filter)
}

// Where returns a copy of the plan whose filter pins field to value,
// replacing any clause the request supplied for it.
func (p Plan) Where(field string, value interface{}) Plan {
	p.filter = cloneDoc(p.filter)
	if p.filter == nil {
		p.filter = bson.M{}
	}
	p.filter[field] = value
	return p
}

// Sort returns a copy of the sort specification.
func (p Plan) Sort() bson.D {
	return append(bson.D(nil), p.sort...)
}

// Projection returns a copy of the projection.
func (p Plan) Projection() bson.D {
	return append(bson.D(nil), p.projection...)
}

// Page returns the resolved page number, limit and skip.
func (p Plan) Page() Page {
	return p.page
}

// FindOptions renders the sort, projection and page as driver options.
func (p Plan) FindOptions() *options.FindOptions {
	return options.Find().
		SetSort(p.Sort()).
		SetProjection(p.Projection()).
		SetSkip(p.page.Skip).
		SetLimit(p.page.Limit)
}

// ParsePage reads page and limit. Missing, malformed and non-positive values
// fall back to the defaults; limit and page are capped.
func ParsePage(values url.Values) Page {
	page := parsePositive(values.Get(ParamPage), DefaultPage)
	limit := parsePositive(values.Get(ParamLimit), DefaultLimit)
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page > MaxPage {
		page = MaxPage
	}
	return Page{Number: page, Limit: limit, Skip: (page - 1) * limit}
}

func parsePositive(raw string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func parseSort(raw string) bson.D {
	sort := bson.D{}
	seen := map[string]struct{}{}
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		dir := 1
		if strings.HasPrefix(token, "-") {
			dir = -1
			token = strings.TrimSpace(token[1:])
		}
		if !validField(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		sort = append(sort, bson.E{Key: token, Value: dir})
	}
	if len(sort) == 0 {
		sort = bson.D{{Key: CreatedAtField, Value: -1}}
	}
	// _id breaks ties so that page boundaries are stable.
	if _, ok := seen["_id"]; !ok {
		sort = append(sort, bson.E{Key: "_id", Value: sort[len(sort)-1].Value})
	}
	return sort
}

func parseFields(raw string) bson.D {
	var include, exclude bson.D
	seen := map[string]struct{}{}
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		excluded := strings.HasPrefix(token, "-")
		if excluded {
			token = strings.TrimSpace(token[1:])
		}
		if !validField(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if excluded {
			exclude = append(exclude, bson.E{Key: token, Value: 0})
		} else {
			include = append(include, bson.E{Key: token, Value: 1})
		}
	}

	switch {
	case len(include) > 0:
		// Mongo rejects mixed projections; only _id may be excluded alongside includes.
		for _, e := range exclude {
			if e.Key == "_id" {
				include = append(include, e)
			}
		}
		return include
	case len(exclude) > 0:
		return exclude
	default:
		return bson.D{{Key: VersionField, Value: 0}}
	}
}

func joined(values url.Values, key string) string {
	return strings.Join(values[key], ",")
}

func cloneDoc(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return cloneDoc(val)
	case bson.A:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case bson.D:
		out := make(bson.D, len(val))
		for i, e := range val {
			out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	default:
		return v
	}
}
