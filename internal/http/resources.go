package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Clark-Hu/workshop-market/internal/apperr"
	"github.com/Clark-Hu/workshop-market/internal/authz"
	"github.com/Clark-Hu/workshop-market/internal/domain"
	"github.com/Clark-Hu/workshop-market/internal/metrics"
	"github.com/Clark-Hu/workshop-market/internal/query"
	"github.com/Clark-Hu/workshop-market/internal/repository"
)

// DocumentStore is the persistence a catalog resource needs.
type DocumentStore[T any] interface {
	Name() string
	SearchFields() []string
	List(ctx context.Context, plan query.Plan) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, doc *T) (string, error)
	Update(ctx context.Context, id string, doc *T) (T, error)
	Delete(ctx context.Context, id string) error
}

// resourceHooks holds the per-type parts of the generic handlers.
type resourceHooks[T any] struct {
	// createRoles limits who may create; empty means any authenticated actor.
	createRoles []domain.Role
	// prepare sets server-owned fields on a new document.
	prepare func(doc *T, actor domain.Actor, now time.Time)
	// keep copies server-owned fields from the stored document onto an update.
	keep     func(doc *T, stored T)
	validate func(doc T) error
	// ownerField makes reads private: an actor is required, and anyone
	// outside the policy's roles only sees documents whose ownerField is
	// their id.
	ownerField string
}

type resource[T any] struct {
	srv    *Server
	store  DocumentStore[T]
	policy authz.Policy[T]
	hooks  resourceHooks[T]
}

func mountResource[T any](r chi.Router, srv *Server, path string, store DocumentStore[T], policy authz.Policy[T], hooks resourceHooks[T]) {
	if store == nil {
		return
	}
	res := &resource[T]{srv: srv, store: store, policy: policy, hooks: hooks}
	r.Route(path, func(r chi.Router) {
		r.Get("/", res.list)
		r.Post("/", res.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", res.get)
			r.Put("/", res.update)
			r.Delete("/", res.remove)
		})
	})
}

func (res *resource[T]) list(w http.ResponseWriter, r *http.Request) {
	plan := query.FromValues(r.URL.Query(), res.store.SearchFields()...)
	if res.hooks.ownerField != "" {
		actor, err := requireActor(r.Context())
		if err != nil {
			res.srv.respondError(w, r, err)
			return
		}
		if !hasRole(actor, res.policy.Roles) {
			plan = plan.Where(res.hooks.ownerField, actor.ID)
		}
	}
	metrics.ListQueries.WithLabelValues(res.store.Name()).Inc()

	items, err := res.store.List(r.Context(), plan)
	if err != nil {
		res.srv.respondError(w, r, err)
		return
	}
	data, err := project(items, plan.Projection())
	if err != nil {
		res.srv.respondError(w, r, err)
		return
	}
	res.srv.respondList(w, data, len(data))
}

func (res *resource[T]) get(w http.ResponseWriter, r *http.Request) {
	var actor domain.Actor
	if res.hooks.ownerField != "" {
		var err error
		if actor, err = requireActor(r.Context()); err != nil {
			res.srv.respondError(w, r, err)
			return
		}
	}

	doc, err := res.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		res.srv.respondError(w, r, res.notFound(err))
		return
	}
	// Private documents read as absent to anyone the policy rejects.
	if res.hooks.ownerField != "" && res.policy.Authorize(actor, &doc) != nil {
		res.srv.respondError(w, r, res.notFound(repository.ErrNotFound))
		return
	}
	res.srv.respondData(w, http.StatusOK, doc)
}

func (res *resource[T]) create(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r.Context())
	if err != nil {
		res.srv.respondError(w, r, err)
		return
	}
	if len(res.hooks.createRoles) > 0 && !hasRole(actor, res.hooks.createRoles) {
		res.srv.respondError(w, r, apperr.Forbidden(fmt.Sprintf("Not authorized to create a %s", res.policy.Name)))
		return
	}

	var doc T
	if err := decodeJSONBody(w, r, &doc); err != nil {
		res.srv.respondDecodeError(w, r, err)
		return
	}
	res.hooks.prepare(&doc, actor, time.Now().UTC())
	if err := res.hooks.validate(doc); err != nil {
		res.srv.respondError(w, r, err)
		return
	}

	id, err := res.store.Create(r.Context(), &doc)
	if err != nil {
		res.srv.respondError(w, r, err)
		return
	}
	stored, err := res.store.Get(r.Context(), id)
	if err != nil {
		res.srv.respondError(w, r, err)
		return
	}
	res.srv.respondData(w, http.StatusCreated, stored)
}

func (res *resource[T]) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stored, err := authz.Load(r.Context(), res.policy, actorFrom(r.Context()), id, res.store.Get, authz.NotFoundIs(repository.ErrNotFound))
	if err != nil {
		res.srv.respondError(w, r, err)
		return
	}

	doc := stored
	if err := decodeJSONBody(w, r, &doc); err != nil {
		res.srv.respondDecodeError(w, r, err)
		return
	}
	res.hooks.keep(&doc, stored)
	if err := res.hooks.validate(doc); err != nil {
		res.srv.respondError(w, r, err)
		return
	}

	updated, err := res.store.Update(r.Context(), id, &doc)
	if err != nil {
		res.srv.respondError(w, r, res.notFound(err))
		return
	}
	res.srv.respondData(w, http.StatusOK, updated)
}

func (res *resource[T]) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := authz.Load(r.Context(), res.policy, actorFrom(r.Context()), id, res.store.Get, authz.NotFoundIs(repository.ErrNotFound)); err != nil {
		res.srv.respondError(w, r, err)
		return
	}
	if err := res.store.Delete(r.Context(), id); err != nil {
		res.srv.respondError(w, r, res.notFound(err))
		return
	}
	res.srv.respondData(w, http.StatusOK, struct{}{})
}

func (res *resource[T]) notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return res.policy.Authorize(domain.Actor{}, nil)
	}
	return err
}

func hasRole(actor domain.Actor, roles []domain.Role) bool {
	for _, role := range roles {
		if actor.Role == role {
			return true
		}
	}
	return false
}

// project applies a field selection to typed documents. JSON names match the
// stored field names, so the projection keys apply to the encoded form.
func project[T any](items []T, projection bson.D) ([]interface{}, error) {
	include := map[string]bool{}
	exclude := map[string]bool{}
	for _, e := range projection {
		top, _, nested := strings.Cut(e.Key, ".")
		if v, ok := e.Value.(int); ok && v == 0 {
			if !nested && e.Key != query.VersionField {
				exclude[e.Key] = true
			}
		} else {
			include[top] = true
		}
	}

	out := make([]interface{}, 0, len(items))
	for _, item := range items {
		if len(include) == 0 && len(exclude) == 0 {
			out = append(out, item)
			continue
		}
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		for key := range fields {
			switch {
			case exclude[key]:
				delete(fields, key)
			case len(include) > 0 && !include[key] && key != "_id":
				delete(fields, key)
			}
		}
		out = append(out, fields)
	}
	return out, nil
}
