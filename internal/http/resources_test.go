package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Clark-Hu/workshop-market/internal/domain"
	"github.com/Clark-Hu/workshop-market/internal/query"
)

func TestListProductsEnvelope(t *testing.T) {
	catalog := newMemoryCatalog()
	seedProduct(t, catalog, "A", "Brake pads", 40)
	seedProduct(t, catalog, "A", "Oil filter", 12)
	srv := buildTestServer(t, catalog, nil)

	rec := do(t, srv, http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	require.NotNil(t, env.Count)
	assert.Equal(t, 2, *env.Count)

	var items []domain.Product
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Equal(t, "Brake pads", items[0].Name)
}

func TestListEmptyCollection(t *testing.T) {
	srv := buildTestServer(t, newMemoryCatalog(), nil)

	rec := do(t, srv, http.MethodGet, "/api/tutorials", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"count":0,"data":[]}`, rec.Body.String())
}

func TestListTranslatesQuery(t *testing.T) {
	catalog := newMemoryCatalog()
	srv := buildTestServer(t, catalog, nil)

	rec := do(t, srv, http.MethodGet, "/api/products?price[gte]=10&category=brakes&sort=-price&page=3&limit=20", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, catalog.products.lastPlan)
	plan := *catalog.products.lastPlan
	assert.Equal(t, bson.M{
		"price":    bson.M{"$gte": int64(10)},
		"category": "brakes",
	}, plan.Filter())
	assert.Equal(t, query.Page{Number: 3, Limit: 20, Skip: 40}, plan.Page())
	assert.Equal(t, "price", plan.Sort()[0].Key)
	assert.Equal(t, -1, plan.Sort()[0].Value)
}

func TestListProjection(t *testing.T) {
	catalog := newMemoryCatalog()
	seedProduct(t, catalog, "A", "Spark plug", 8)
	srv := buildTestServer(t, catalog, nil)

	rec := do(t, srv, http.MethodGet, "/api/products?fields=name,price", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &items))
	require.Len(t, items, 1)
	assert.ElementsMatch(t, []string{"_id", "name", "price"}, keys(items[0]))

	rec = do(t, srv, http.MethodGet, "/api/products?fields=-description,-images", nil, nil)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &items))
	assert.NotContains(t, items[0], "description")
	assert.Contains(t, items[0], "seller_id")
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestCreateProduct(t *testing.T) {
	catalog := newMemoryCatalog()
	srv := buildTestServer(t, catalog, nil)

	body := map[string]interface{}{
		"name":          "Brake disc",
		"price":         80,
		"seller_id":     "someone-else",
		"averageRating": 5,
		"reviewCount":   99,
	}
	rec := do(t, srv, http.MethodPost, "/api/products", body, &sellerA)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Product
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))
	assert.Equal(t, "A", created.SellerID)
	assert.Zero(t, created.AverageRating)
	assert.Zero(t, created.ReviewCount)
	assert.False(t, created.ID.IsZero())
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateProductAccess(t *testing.T) {
	tests := []struct {
		name   string
		actor  *domain.Actor
		body   interface{}
		status int
	}{
		{"anonymous", nil, map[string]interface{}{"name": "x"}, http.StatusUnauthorized},
		{"customer", &customerD, map[string]interface{}{"name": "x"}, http.StatusForbidden},
		{"missing name", &sellerA, map[string]interface{}{"price": 3}, http.StatusBadRequest},
		{"negative price", &sellerA, map[string]interface{}{"name": "x", "price": -1}, http.StatusBadRequest},
		{"unknown field", &sellerA, map[string]interface{}{"name": "x", "colour": "red"}, http.StatusBadRequest},
		{"malformed json", &sellerA, "{not json", http.StatusBadRequest},
		{"empty body", &sellerA, "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := buildTestServer(t, newMemoryCatalog(), nil)
			rec := do(t, srv, http.MethodPost, "/api/products", tt.body, tt.actor)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestProductOwnershipScenario(t *testing.T) {
	catalog := newMemoryCatalog()
	product := seedProduct(t, catalog, "A", "Wiper blades", 15)
	srv := buildTestServer(t, catalog, nil)
	path := "/api/products/" + product.ID.Hex()

	rec := do(t, srv, http.MethodPut, path, map[string]interface{}{"name": "Stolen"}, &sellerB)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to modify this product", decodeEnvelope(t, rec).Error)

	rec = do(t, srv, http.MethodPut, path, map[string]interface{}{"name": "Wiper blades XL", "seller_id": "B", "averageRating": 5}, &sellerA)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.Product
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &updated))
	assert.Equal(t, "Wiper blades XL", updated.Name)
	assert.Equal(t, "A", updated.SellerID)
	assert.Equal(t, 15.0, updated.Price)
	assert.Zero(t, updated.AverageRating)

	rec = do(t, srv, http.MethodDelete, path, nil, &sellerB)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodDelete, path, nil, &adminC)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeEnvelope(t, rec).Error)
}

func TestNotFoundBeforeAuthorization(t *testing.T) {
	srv := buildTestServer(t, newMemoryCatalog(), nil)

	tests := []struct {
		method string
		path   string
		actor  *domain.Actor
	}{
		{http.MethodPut, "/api/shops/65f000000000000000000001", nil},
		{http.MethodDelete, "/api/shops/65f000000000000000000001", &customerD},
		{http.MethodDelete, "/api/tutorials/not-an-id", nil},
	}
	for _, tt := range tests {
		rec := do(t, srv, tt.method, tt.path, map[string]interface{}{}, tt.actor)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestUnauthenticatedMutationOfExisting(t *testing.T) {
	catalog := newMemoryCatalog()
	product := seedProduct(t, catalog, "A", "Coolant", 9)
	srv := buildTestServer(t, catalog, nil)

	rec := do(t, srv, http.MethodDelete, "/api/products/"+product.ID.Hex(), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTutorialAuthorFromToken(t *testing.T) {
	catalog := newMemoryCatalog()
	srv := buildTestServer(t, catalog, nil)

	rec := do(t, srv, http.MethodPost, "/api/tutorials", map[string]interface{}{"title": "Changing oil", "author": "X"}, &customerD)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.Tutorial
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &created))
	assert.Equal(t, "D", created.AuthorID)
}

func TestInvalidToken(t *testing.T) {
	srv := buildTestServer(t, newMemoryCatalog(), nil)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "A",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "A"},
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	headers := []string{"Bearer garbage", "Basic Zm9vOmJhcg==", "Bearer ", "Bearer " + expired, "Bearer " + foreign}
	for _, header := range headers {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestProject(t *testing.T) {
	items := []domain.Shop{{Name: "Garage", OwnerID: "A", Address: "Main St"}}

	out, err := project(items, bson.D{{Key: query.VersionField, Value: 0}})
	require.NoError(t, err)
	assert.IsType(t, domain.Shop{}, out[0])

	out, err = project(items, bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 0}})
	require.NoError(t, err)
	fields := out[0].(map[string]json.RawMessage)
	assert.Len(t, fields, 1)
	assert.Contains(t, fields, "name")

	out, err = project(items, bson.D{{Key: "address", Value: 0}})
	require.NoError(t, err)
	fields = out[0].(map[string]json.RawMessage)
	assert.NotContains(t, fields, "address")
	assert.Contains(t, fields, "owner_id")
}
