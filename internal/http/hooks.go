package httpserver

import (
	"strings"
	"time"

	"github.com/Clark-Hu/workshop-market/internal/apperr"
	"github.com/Clark-Hu/workshop-market/internal/domain"
)

var productHooks = resourceHooks[domain.Product]{
	createRoles: []domain.Role{domain.RoleSeller, domain.RoleAdmin},
	prepare: func(p *domain.Product, actor domain.Actor, now time.Time) {
		*p = domain.Product{
			Name:        strings.TrimSpace(p.Name),
			Description: p.Description,
			Category:    strings.TrimSpace(p.Category),
			Price:       p.Price,
			Stock:       p.Stock,
			ShopID:      p.ShopID,
			SellerID:    actor.ID,
			Images:      p.Images,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	},
	keep: func(p *domain.Product, stored domain.Product) {
		p.ID = stored.ID
		p.SellerID = stored.SellerID
		p.CreatedAt = stored.CreatedAt
		p.AggregateRating = stored.AggregateRating
	},
	validate: func(p domain.Product) error {
		if strings.TrimSpace(p.Name) == "" {
			return apperr.Validation("name is required")
		}
		if p.Price < 0 {
			return apperr.Validation("price must be non-negative")
		}
		if p.Stock < 0 {
			return apperr.Validation("stock must be non-negative")
		}
		return nil
	},
}

var shopHooks = resourceHooks[domain.Shop]{
	createRoles: []domain.Role{domain.RoleSeller, domain.RoleAdmin},
	prepare: func(s *domain.Shop, actor domain.Actor, now time.Time) {
		*s = domain.Shop{
			Name:        strings.TrimSpace(s.Name),
			Description: s.Description,
			Category:    strings.TrimSpace(s.Category),
			Address:     s.Address,
			Phone:       s.Phone,
			OwnerID:     actor.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	},
	keep: func(s *domain.Shop, stored domain.Shop) {
		s.ID = stored.ID
		s.OwnerID = stored.OwnerID
		s.CreatedAt = stored.CreatedAt
		s.AggregateRating = stored.AggregateRating
	},
	validate: func(s domain.Shop) error {
		if strings.TrimSpace(s.Name) == "" {
			return apperr.Validation("name is required")
		}
		return nil
	},
}

var serviceRecordHooks = resourceHooks[domain.ServiceRecord]{
	prepare: func(r *domain.ServiceRecord, actor domain.Actor, now time.Time) {
		*r = domain.ServiceRecord{
			Name:        strings.TrimSpace(r.Name),
			Description: r.Description,
			Category:    strings.TrimSpace(r.Category),
			Price:       r.Price,
			VehicleID:   r.VehicleID,
			ShopID:      r.ShopID,
			UserID:      actor.ID,
			ServiceDate: r.ServiceDate,
			Mileage:     r.Mileage,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if r.ServiceDate.IsZero() {
			r.ServiceDate = now
		}
	},
	keep: func(r *domain.ServiceRecord, stored domain.ServiceRecord) {
		r.ID = stored.ID
		r.UserID = stored.UserID
		r.CreatedAt = stored.CreatedAt
		r.AggregateRating = stored.AggregateRating
	},
	validate: func(r domain.ServiceRecord) error {
		if strings.TrimSpace(r.Name) == "" {
			return apperr.Validation("name is required")
		}
		if r.Price < 0 || r.Mileage < 0 {
			return apperr.Validation("price and mileage must be non-negative")
		}
		return nil
	},
}

var tutorialHooks = resourceHooks[domain.Tutorial]{
	prepare: func(t *domain.Tutorial, actor domain.Actor, now time.Time) {
		*t = domain.Tutorial{
			Title:       strings.TrimSpace(t.Title),
			Name:        strings.TrimSpace(t.Name),
			Description: t.Description,
			Content:     t.Content,
			Category:    strings.TrimSpace(t.Category),
			Difficulty:  t.Difficulty,
			AuthorID:    actor.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	},
	keep: func(t *domain.Tutorial, stored domain.Tutorial) {
		t.ID = stored.ID
		t.AuthorID = stored.AuthorID
		t.CreatedAt = stored.CreatedAt
		t.AggregateRating = stored.AggregateRating
	},
	validate: func(t domain.Tutorial) error {
		if strings.TrimSpace(t.Title) == "" {
			return apperr.Validation("title is required")
		}
		return nil
	},
}

var vehicleHooks = resourceHooks[domain.Vehicle]{
	ownerField: "owner_id",
	prepare: func(v *domain.Vehicle, actor domain.Actor, now time.Time) {
		*v = domain.Vehicle{
			OwnerID:         actor.ID,
			Make:            strings.TrimSpace(v.Make),
			Model:           strings.TrimSpace(v.Model),
			Year:            v.Year,
			Plate:           strings.TrimSpace(v.Plate),
			Mileage:         v.Mileage,
			NextServiceDate: v.NextServiceDate,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	},
	keep: func(v *domain.Vehicle, stored domain.Vehicle) {
		v.ID = stored.ID
		v.OwnerID = stored.OwnerID
		v.CreatedAt = stored.CreatedAt
		v.LastRemindedAt = stored.LastRemindedAt
		v.RemindedFor = stored.RemindedFor
		v.LastAttemptAt = stored.LastAttemptAt
	},
	validate: func(v domain.Vehicle) error {
		if v.Make == "" || v.Model == "" {
			return apperr.Validation("make and model are required")
		}
		if v.Mileage < 0 {
			return apperr.Validation("mileage must be non-negative")
		}
		return nil
	},
}
