// Package memory provides an in-process ColmeiaRepository with the same
// uniqueness and not-found semantics as the MongoDB implementation.
package memory

import (
	"context"
	"fmt"
	"sync"

	colmodels "gitlab.com/apiario/colmeia.server/src/production/COL.Models"
	interfaces "gitlab.com/apiario/colmeia.server/src/production/COL.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ColmeiaRepository struct {
	mu    sync.RWMutex
	docs  map[primitive.ObjectID]colmodels.Colmeia
	order []primitive.ObjectID
}

func NewColmeiaRepository() *ColmeiaRepository {
	return &ColmeiaRepository{docs: make(map[primitive.ObjectID]colmodels.Colmeia)}
}

func (r *ColmeiaRepository) CreateColmeia(_ context.Context, c *colmodels.Colmeia) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.identifierTaken(c.Identifier, primitive.NilObjectID) {
		return fmt.Errorf("%w: %q", interfaces.ErrDuplicateIdentifier, c.Identifier)
	}

	doc := *c
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	r.docs[doc.ID] = doc
	r.order = append(r.order, doc.ID)

	c.ID = doc.ID
	return nil
}

func (r *ColmeiaRepository) GetColmeia(_ context.Context, id primitive.ObjectID) (*colmodels.Colmeia, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, interfaces.ErrColmeiaNotFound
	}
	return &doc, nil
}

func (r *ColmeiaRepository) ListColmeias(_ context.Context) ([]colmodels.Colmeia, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]colmodels.Colmeia, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.docs[id])
	}
	return out, nil
}

func (r *ColmeiaRepository) UpdateColmeia(_ context.Context, c colmodels.Colmeia) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[c.ID]; !ok {
		return interfaces.ErrColmeiaNotFound
	}
	if r.identifierTaken(c.Identifier, c.ID) {
		return fmt.Errorf("%w: %q", interfaces.ErrDuplicateIdentifier, c.Identifier)
	}

	r.docs[c.ID] = c
	return nil
}

func (r *ColmeiaRepository) DeleteColmeia(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return interfaces.ErrColmeiaNotFound
	}
	delete(r.docs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// identifierTaken must be called with the lock held.
func (r *ColmeiaRepository) identifierTaken(identifier string, except primitive.ObjectID) bool {
	for id, doc := range r.docs {
		if id != except && doc.Identifier == identifier {
			return true
		}
	}
	return false
}
