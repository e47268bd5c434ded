package colmeia

import (
	"context"
	"errors"
	"fmt"
	"time"

	colmodels "gitlab.com/apiario/colmeia.server/src/production/COL.Models"
	interfaces "gitlab.com/apiario/colmeia.server/src/production/COL.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ColmeiaService provides colmeia CRUD operations
type ColmeiaService struct {
	repo interfaces.ColmeiaRepository
	now  func() time.Time
}

// Option configures a ColmeiaService
type Option func(*ColmeiaService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *ColmeiaService) {
		s.now = now
	}
}

// NewColmeiaService creates a new colmeia service
func NewColmeiaService(repo interfaces.ColmeiaRepository, opts ...Option) *ColmeiaService {
	s := &ColmeiaService{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input and stores a new colmeia
func (s *ColmeiaService) Create(ctx context.Context, in colmodels.ColmeiaInput) (*colmodels.Colmeia, error) {
	now := s.timestamp()
	c := colmodels.Colmeia{
		InstalledAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyInput(&c, in)

	if fields := Validate(c); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.repo.CreateColmeia(ctx, &c); err != nil {
		return nil, storeError(err)
	}

	return &c, nil
}

// ListAll returns every colmeia
func (s *ColmeiaService) ListAll(ctx context.Context) ([]colmodels.Colmeia, error) {
	colmeias, err := s.repo.ListColmeias(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	if colmeias == nil {
		colmeias = []colmodels.Colmeia{}
	}
	return colmeias, nil
}

// GetByID retrieves a colmeia by its ObjectID hex string
func (s *ColmeiaService) GetByID(ctx context.Context, id string) (*colmodels.Colmeia, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.GetColmeia(ctx, oid)
	if err != nil {
		return nil, storeError(err)
	}
	return c, nil
}

// Update merges the supplied fields into the stored colmeia and re-validates it
func (s *ColmeiaService) Update(ctx context.Context, id string, in colmodels.ColmeiaInput) (*colmodels.Colmeia, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.GetColmeia(ctx, oid)
	if err != nil {
		return nil, storeError(err)
	}

	applyInput(c, in)
	c.UpdatedAt = s.timestamp()
	if c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}

	if fields := Validate(*c); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	if err := s.repo.UpdateColmeia(ctx, *c); err != nil {
		return nil, storeError(err)
	}

	return c, nil
}

// Delete removes a colmeia
func (s *ColmeiaService) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteColmeia(ctx, oid); err != nil {
		return storeError(err)
	}
	return nil
}

// timestamp is UTC at BSON date precision so stored and returned values match
func (s *ColmeiaService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

// applyInput copies every field present in the input. A null on a required
// string clears it so validation reports it; a null installedAt is ignored.
func applyInput(c *colmodels.Colmeia, in colmodels.ColmeiaInput) {
	if in.Identifier.Set {
		c.Identifier = in.Identifier.Value
	}
	if in.Location.Set {
		c.Location = in.Location.Value
	}
	if in.InstalledAt.Set && !in.InstalledAt.Null {
		c.InstalledAt = in.InstalledAt.Value.Time.UTC().Truncate(time.Millisecond)
	}
	if in.InternalTemperature.Set {
		c.InternalTemperature = in.InternalTemperature.Ptr()
	}
	if in.InternalHumidity.Set {
		c.InternalHumidity = in.InternalHumidity.Ptr()
	}
	if in.Weight.Set {
		c.Weight = in.Weight.Ptr()
	}
}

func storeError(err error) error {
	switch {
	case errors.Is(err, interfaces.ErrColmeiaNotFound):
		return ErrNotFound
	case errors.Is(err, interfaces.ErrDuplicateIdentifier):
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	default:
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
}
