package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AggregateRating is the denormalized rating pair stored on every reviewable entity.
// Only the rating recalculation writes it.
type AggregateRating struct {
	AverageRating float64 `json:"averageRating" bson:"averageRating"`
	ReviewCount   int64   `json:"reviewCount" bson:"reviewCount"`
}

// Product is an item sold by a shop's seller.
type Product struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	Category    string             `json:"category" bson:"category"`
	Price       float64            `json:"price" bson:"price"`
	Stock       int                `json:"stock" bson:"stock"`
	ShopID      string             `json:"shop_id,omitempty" bson:"shop_id,omitempty"`
	SellerID    string             `json:"seller_id" bson:"seller_id"`
	Images      []string           `json:"images,omitempty" bson:"images,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`

	AggregateRating `bson:",inline"`
}

// Shop is a workshop or store run by its owner.
type Shop struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	Category    string             `json:"category,omitempty" bson:"category,omitempty"`
	Address     string             `json:"address,omitempty" bson:"address,omitempty"`
	Phone       string             `json:"phone,omitempty" bson:"phone,omitempty"`
	OwnerID     string             `json:"owner_id" bson:"owner_id"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`

	AggregateRating `bson:",inline"`
}

// ServiceRecord documents a service performed on a customer's vehicle.
type ServiceRecord struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description" bson:"description"`
	Category    string             `json:"category,omitempty" bson:"category,omitempty"`
	Price       float64            `json:"price" bson:"price"`
	VehicleID   string             `json:"vehicle_id,omitempty" bson:"vehicle_id,omitempty"`
	ShopID      string             `json:"shop_id,omitempty" bson:"shop_id,omitempty"`
	UserID      string             `json:"user" bson:"user"`
	ServiceDate time.Time          `json:"serviceDate" bson:"serviceDate"`
	Mileage     float64            `json:"mileage,omitempty" bson:"mileage,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`

	AggregateRating `bson:",inline"`
}

// Tutorial is a how-to article written by an author.
type Tutorial struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Name        string             `json:"name,omitempty" bson:"name,omitempty"`
	Description string             `json:"description" bson:"description"`
	Content     string             `json:"content,omitempty" bson:"content,omitempty"`
	Category    string             `json:"category,omitempty" bson:"category,omitempty"`
	Difficulty  string             `json:"difficulty,omitempty" bson:"difficulty,omitempty"`
	AuthorID    string             `json:"author" bson:"author"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`

	AggregateRating `bson:",inline"`
}
