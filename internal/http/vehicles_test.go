package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/workshop-market/internal/domain"
)

func seedVehicle(tb testing.TB, catalog *memoryCatalog, owner string) domain.Vehicle {
	tb.Helper()
	v := domain.Vehicle{OwnerID: owner, Make: "Toyota", Model: "Corolla", Plate: "ABC-123"}
	_, err := catalog.vehicles.Create(context.Background(), &v)
	require.NoError(tb, err)
	return v
}

func TestVehicleReadsArePrivate(t *testing.T) {
	catalog := newMemoryCatalog()
	srv := buildTestServer(t, catalog, nil)
	vehicle := seedVehicle(t, catalog, customerD.ID)
	path := "/api/vehicles/" + vehicle.ID.Hex()

	tests := []struct {
		name   string
		actor  *domain.Actor
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"other user", &sellerB, http.StatusNotFound},
		{"owner", &customerD, http.StatusOK},
		{"admin", &adminC, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, path, nil, tt.actor)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusNotFound {
				assert.Equal(t, "Vehicle not found", decodeEnvelope(t, rec).Error)
				assert.NotContains(t, rec.Body.String(), "ABC-123")
			}
		})
	}
}

func TestVehicleListScopedToOwner(t *testing.T) {
	catalog := newMemoryCatalog()
	srv := buildTestServer(t, catalog, nil)
	seedVehicle(t, catalog, customerD.ID)

	rec := do(t, srv, http.MethodGet, "/api/vehicles", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, catalog.vehicles.lastPlan, "store must not be queried for anonymous callers")

	// A client-supplied owner filter cannot widen the scope.
	rec = do(t, srv, http.MethodGet, "/api/vehicles?owner_id=D", nil, &sellerB)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, catalog.vehicles.lastPlan)
	assert.Equal(t, sellerB.ID, catalog.vehicles.lastPlan.Filter()["owner_id"])

	rec = do(t, srv, http.MethodGet, "/api/vehicles?make=Toyota", nil, &adminC)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, catalog.vehicles.lastPlan.Filter(), "owner_id")
}

func TestCatalogReadsStayPublic(t *testing.T) {
	catalog := newMemoryCatalog()
	srv := buildTestServer(t, catalog, nil)
	product := seedProduct(t, catalog, sellerA.ID, "Filter", 9)

	rec := do(t, srv, http.MethodGet, "/api/products/"+product.ID.Hex(), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/products", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
