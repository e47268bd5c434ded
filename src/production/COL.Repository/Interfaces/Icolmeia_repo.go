package interfaces

import (
	"context"
	"errors"

	colmodels "gitlab.com/apiario/colmeia.server/src/production/COL.Models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrColmeiaNotFound is returned when no document matches the id
	ErrColmeiaNotFound = errors.New("colmeia not found")

	// ErrDuplicateIdentifier is returned when the unique identifier index rejects a write
	ErrDuplicateIdentifier = errors.New("duplicate colmeia identifier")
)

type ColmeiaRepository interface {
	// Create assigns c.ID
	CreateColmeia(ctx context.Context, c *colmodels.Colmeia) error

	// Read
	GetColmeia(ctx context.Context, id primitive.ObjectID) (*colmodels.Colmeia, error)
	ListColmeias(ctx context.Context) ([]colmodels.Colmeia, error)

	// Update replaces the stored document with c
	UpdateColmeia(ctx context.Context, c colmodels.Colmeia) error

	// Delete
	DeleteColmeia(ctx context.Context, id primitive.ObjectID) error
}
