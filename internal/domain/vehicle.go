package domain

import (
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle is a customer's vehicle tracked for maintenance reminders.
type Vehicle struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	OwnerID         string             `json:"owner_id" bson:"owner_id"`
	Make            string             `json:"make" bson:"make"`
	Model           string             `json:"model" bson:"model"`
	Year            int                `json:"year" bson:"year"`
	Plate           string             `json:"plate,omitempty" bson:"plate,omitempty"`
	Mileage         float64            `json:"mileage" bson:"mileage"`
	NextServiceDate *time.Time         `json:"nextServiceDate,omitempty" bson:"nextServiceDate,omitempty"`
	LastRemindedAt  *time.Time         `json:"lastRemindedAt,omitempty" bson:"lastRemindedAt,omitempty"`
	RemindedFor     *time.Time         `json:"-" bson:"remindedFor,omitempty"`
	LastAttemptAt   *time.Time         `json:"-" bson:"lastAttemptAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// DisplayName renders "Year Make Model" for notifications.
func (v Vehicle) DisplayName() string {
	name := strings.TrimSpace(v.Make + " " + v.Model)
	if v.Year > 0 {
		return strconv.Itoa(v.Year) + " " + name
	}
	return name
}
