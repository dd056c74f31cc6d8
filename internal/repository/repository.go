package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Clark-Hu/workshop-market/internal/domain"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateReview indicates the user already reviewed the target.
	ErrDuplicateReview = errors.New("repository: review already exists")
)

// Collection names in the catalog database.
const (
	ProductsCollection       = "products"
	ShopsCollection          = "shops"
	ServiceRecordsCollection = "service_records"
	TutorialsCollection      = "tutorials"
	VehiclesCollection       = "vehicles"
)

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Products       *Documents[domain.Product]
	Shops          *Documents[domain.Shop]
	ServiceRecords *Documents[domain.ServiceRecord]
	Tutorials      *Documents[domain.Tutorial]
	Vehicles       *VehiclesRepository
	Catalog        *Catalog
	Reviews        *ReviewsRepository
}

// New wires catalog repositories to the Mongo database and reviews to the pgx pool.
func New(db *mongo.Database, pool *pgxpool.Pool) *Repository {
	return &Repository{
		Products:       NewDocuments[domain.Product](db.Collection(ProductsCollection)),
		Shops:          NewDocuments[domain.Shop](db.Collection(ShopsCollection)),
		ServiceRecords: NewDocuments[domain.ServiceRecord](db.Collection(ServiceRecordsCollection)),
		Tutorials:      NewDocuments[domain.Tutorial](db.Collection(TutorialsCollection), "title", "name", "description", "content"),
		Vehicles:       &VehiclesRepository{Documents: NewDocuments[domain.Vehicle](db.Collection(VehiclesCollection), "make", "model", "plate")},
		Catalog:        &Catalog{db: db},
		Reviews:        &ReviewsRepository{pool: pool},
	}
}

// CollectionFor maps a reviewable kind to its collection. The mapping is closed:
// adding a kind means adding a case here.
func CollectionFor(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindProduct:
		return ProductsCollection, nil
	case domain.KindShop:
		return ShopsCollection, nil
	case domain.KindServiceRecord:
		return ServiceRecordsCollection, nil
	case domain.KindTutorial:
		return TutorialsCollection, nil
	default:
		return "", fmt.Errorf("no collection for item type %q", kind)
	}
}
