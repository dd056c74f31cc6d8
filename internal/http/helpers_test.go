package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Clark-Hu/workshop-market/internal/config"
	"github.com/Clark-Hu/workshop-market/internal/domain"
	"github.com/Clark-Hu/workshop-market/internal/query"
	"github.com/Clark-Hu/workshop-market/internal/repository"
)

const testSecret = "test-secret"

var (
	sellerA   = domain.Actor{ID: "A", Role: domain.RoleSeller}
	sellerB   = domain.Actor{ID: "B", Role: domain.RoleSeller}
	adminC    = domain.Actor{ID: "C", Role: domain.RoleAdmin}
	customerD = domain.Actor{ID: "D", Role: domain.RoleCustomer}
)

// memoryDocs is an in-memory DocumentStore.
type memoryDocs[T any] struct {
	mu       sync.Mutex
	name     string
	docs     map[string]T
	order    []string
	setID    func(*T, primitive.ObjectID)
	lastPlan *query.Plan
}

func newMemoryDocs[T any](name string, setID func(*T, primitive.ObjectID)) *memoryDocs[T] {
	return &memoryDocs[T]{name: name, docs: map[string]T{}, setID: setID}
}

func (m *memoryDocs[T]) Name() string           { return m.name }
func (m *memoryDocs[T]) SearchFields() []string { return query.DefaultSearchFields }

func (m *memoryDocs[T]) List(_ context.Context, plan query.Plan) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPlan = &plan
	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.docs[id])
	}
	return out, nil
}

func (m *memoryDocs[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		var zero T
		return zero, repository.ErrNotFound
	}
	return doc, nil
}

func (m *memoryDocs[T]) Create(_ context.Context, doc *T) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid := primitive.NewObjectID()
	m.setID(doc, oid)
	m.docs[oid.Hex()] = *doc
	m.order = append(m.order, oid.Hex())
	return oid.Hex(), nil
}

func (m *memoryDocs[T]) Update(_ context.Context, id string, doc *T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		var zero T
		return zero, repository.ErrNotFound
	}
	m.docs[id] = *doc
	return *doc, nil
}

func (m *memoryDocs[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.docs, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memoryDocs[T]) mutate(id string, fn func(*T)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return false
	}
	fn(&doc)
	m.docs[id] = doc
	return true
}

// memoryCatalog implements reviews.Targets and rating.Sink over memoryDocs.
type memoryCatalog struct {
	products  *memoryDocs[domain.Product]
	shops     *memoryDocs[domain.Shop]
	records   *memoryDocs[domain.ServiceRecord]
	tutorials *memoryDocs[domain.Tutorial]
	vehicles  *memoryDocs[domain.Vehicle]
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		products:  newMemoryDocs("products", func(p *domain.Product, id primitive.ObjectID) { p.ID = id }),
		shops:     newMemoryDocs("shops", func(s *domain.Shop, id primitive.ObjectID) { s.ID = id }),
		records:   newMemoryDocs("service_records", func(r *domain.ServiceRecord, id primitive.ObjectID) { r.ID = id }),
		tutorials: newMemoryDocs("tutorials", func(t *domain.Tutorial, id primitive.ObjectID) { t.ID = id }),
		vehicles:  newMemoryDocs("vehicles", func(v *domain.Vehicle, id primitive.ObjectID) { v.ID = id }),
	}
}

func (c *memoryCatalog) Exists(ctx context.Context, t domain.Target) (bool, error) {
	var err error
	switch t.Type {
	case domain.KindProduct:
		_, err = c.products.Get(ctx, t.ID)
	case domain.KindShop:
		_, err = c.shops.Get(ctx, t.ID)
	case domain.KindServiceRecord:
		_, err = c.records.Get(ctx, t.ID)
	case domain.KindTutorial:
		_, err = c.tutorials.Get(ctx, t.ID)
	default:
		return false, fmt.Errorf("unknown kind %q", t.Type)
	}
	return err == nil, nil
}

func (c *memoryCatalog) SetRating(_ context.Context, t domain.Target, agg domain.AggregateRating) error {
	var ok bool
	switch t.Type {
	case domain.KindProduct:
		ok = c.products.mutate(t.ID, func(p *domain.Product) { p.AggregateRating = agg })
	case domain.KindShop:
		ok = c.shops.mutate(t.ID, func(s *domain.Shop) { s.AggregateRating = agg })
	case domain.KindServiceRecord:
		ok = c.records.mutate(t.ID, func(r *domain.ServiceRecord) { r.AggregateRating = agg })
	case domain.KindTutorial:
		ok = c.tutorials.mutate(t.ID, func(tu *domain.Tutorial) { tu.AggregateRating = agg })
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Port:             "0",
		JWTSecret:        testSecret,
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
	}
}

func buildTestServer(tb testing.TB, catalog *memoryCatalog, reviews ReviewService) *Server {
	tb.Helper()
	return New(testConfig(), Deps{
		Products:       catalog.products,
		Shops:          catalog.shops,
		ServiceRecords: catalog.records,
		Tutorials:      catalog.tutorials,
		Vehicles:       catalog.vehicles,
		Reviews:        reviews,
	}, nil)
}

func bearer(tb testing.TB, actor domain.Actor) string {
	tb.Helper()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(tb, err)
	return "Bearer " + signed
}

// do sends a request through the full router. A nil actor sends no token.
func do(tb testing.TB, srv *Server, method, path string, body interface{}, actor *domain.Actor) *httptest.ResponseRecorder {
	tb.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(tb, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != nil {
		req.Header.Set("Authorization", bearer(tb, *actor))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(tb testing.TB, rec *httptest.ResponseRecorder) testEnvelope {
	tb.Helper()
	var env testEnvelope
	require.NoError(tb, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func seedProduct(tb testing.TB, catalog *memoryCatalog, owner string, name string, price float64) domain.Product {
	tb.Helper()
	p := domain.Product{Name: name, Price: price, SellerID: owner, CreatedAt: time.Now().UTC()}
	_, err := catalog.products.Create(context.Background(), &p)
	require.NoError(tb, err)
	return p
}
