package authz

import "github.com/Clark-Hu/workshop-market/internal/domain"

var (
	Products       = NewPolicy("product", func(p domain.Product) []string { return []string{p.SellerID} })
	Shops          = NewPolicy("shop", func(s domain.Shop) []string { return []string{s.OwnerID} })
	ServiceRecords = NewPolicy("service record", func(r domain.ServiceRecord) []string { return []string{r.UserID} })
	Tutorials      = NewPolicy("tutorial", func(t domain.Tutorial) []string { return []string{t.AuthorID} })
	Reviews        = NewPolicy("review", func(r domain.Review) []string { return []string{r.UserID} })
	Vehicles       = NewPolicy("vehicle", func(v domain.Vehicle) []string { return []string{v.OwnerID} })
)
