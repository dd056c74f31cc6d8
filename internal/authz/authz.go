// Package authz gates mutations by resource ownership or actor role.
package authz

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Clark-Hu/workshop-market/internal/apperr"
	"github.com/Clark-Hu/workshop-market/internal/domain"
)

// DefaultRoles may mutate any resource.
var DefaultRoles = []domain.Role{domain.RoleAdmin}

// Owners returns the actor ids that own a resource.
type Owners[R any] func(R) []string

// Check authorizes actor against resource. A nil resource is reported as not
// found before the actor is considered. The check passes when the actor is
// one of the owners or holds one of the allowed roles.
func Check[R any](actor domain.Actor, resource *R, owners Owners[R], allowed ...domain.Role) error {
	if resource == nil {
		return apperr.NotFound("Resource not found")
	}
	if actor.Anonymous() {
		return apperr.Unauthorized("Authentication required")
	}
	if slices.Contains(allowed, actor.Role) {
		return nil
	}
	if owners != nil {
		for _, owner := range owners(*resource) {
			if owner != "" && owner == actor.ID {
				return nil
			}
		}
	}
	return apperr.Forbidden("Not authorized to modify this resource")
}

// Policy binds an ownership accessor and a role allow-list to one resource type.
type Policy[R any] struct {
	Name  string
	Owner Owners[R]
	Roles []domain.Role
}

// NewPolicy returns a policy that admits owners and DefaultRoles.
func NewPolicy[R any](name string, owner Owners[R]) Policy[R] {
	return Policy[R]{Name: name, Owner: owner, Roles: DefaultRoles}
}

// Authorize runs Check with the policy's owner accessor and roles.
func (p Policy[R]) Authorize(actor domain.Actor, resource *R) error {
	err := Check(actor, resource, p.Owner, p.Roles...)
	if err != nil && p.Name != "" && apperr.Is(err, apperr.CodeForbidden) {
		return apperr.Forbidden(fmt.Sprintf("Not authorized to modify this %s", p.Name))
	}
	if err != nil && p.Name != "" && apperr.Is(err, apperr.CodeNotFound) {
		return apperr.NotFound(fmt.Sprintf("%s not found", capitalize(p.Name)))
	}
	return err
}

// Load fetches a resource by id and authorizes actor against it. isNotFound
// tells which fetch errors mean the resource is absent.
func Load[R any](ctx context.Context, p Policy[R], actor domain.Actor, id string,
	fetch func(context.Context, string) (R, error), isNotFound func(error) bool,
) (R, error) {
	var zero R
	resource, err := fetch(ctx, id)
	if err != nil {
		if isNotFound != nil && isNotFound(err) {
			return zero, p.Authorize(actor, nil)
		}
		return zero, err
	}
	if err := p.Authorize(actor, &resource); err != nil {
		return zero, err
	}
	return resource, nil
}

// NotFoundIs builds an isNotFound predicate for a sentinel error.
func NotFoundIs(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
