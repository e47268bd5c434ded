package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	colmodels "gitlab.com/apiario/colmeia.server/src/production/COL.Models"
	interfaces "gitlab.com/apiario/colmeia.server/src/production/COL.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	singleOpTimeout = 3 * time.Second
	manyOpTimeout   = 10 * time.Second

	identifierIndexName = "identificador_1"
)

type MongoColmeiaRepository struct {
	coll *mongo.Collection
}

func NewMongoColmeiaRepository(coll *mongo.Collection) *MongoColmeiaRepository {
	return &MongoColmeiaRepository{coll: coll}
}

// EnsureIndexes creates the unique index on identificador if it is missing.
func (r *MongoColmeiaRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, manyOpTimeout)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, identifierIndex())
	if err != nil {
		return fmt.Errorf("failed to create %s index: %w", identifierIndexName, err)
	}
	return nil
}

func identifierIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "identificador", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(identifierIndexName),
	}
}

func (r *MongoColmeiaRepository) CreateColmeia(ctx context.Context, c *colmodels.Colmeia) error {
	ctx, cancel := context.WithTimeout(ctx, singleOpTimeout)
	defer cancel()

	doc := *c
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translateWriteError(err)
	}

	c.ID = doc.ID
	return nil
}

func (r *MongoColmeiaRepository) GetColmeia(ctx context.Context, id primitive.ObjectID) (*colmodels.Colmeia, error) {
	ctx, cancel := context.WithTimeout(ctx, singleOpTimeout)
	defer cancel()

	var c colmodels.Colmeia
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrColmeiaNotFound
		}
		return nil, err
	}

	return &c, nil
}

func (r *MongoColmeiaRepository) ListColmeias(ctx context.Context) ([]colmodels.Colmeia, error) {
	ctx, cancel := context.WithTimeout(ctx, manyOpTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	colmeias := make([]colmodels.Colmeia, 0)
	if err := cursor.All(ctx, &colmeias); err != nil {
		return nil, err
	}

	return colmeias, nil
}

func (r *MongoColmeiaRepository) UpdateColmeia(ctx context.Context, c colmodels.Colmeia) error {
	ctx, cancel := context.WithTimeout(ctx, singleOpTimeout)
	defer cancel()

	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return translateWriteError(err)
	}

	if result.MatchedCount == 0 {
		return interfaces.ErrColmeiaNotFound
	}

	return nil
}

func (r *MongoColmeiaRepository) DeleteColmeia(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, singleOpTimeout)
	defer cancel()

	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}

	if result.DeletedCount == 0 {
		return interfaces.ErrColmeiaNotFound
	}

	return nil
}

// translateWriteError maps E11000 onto the repository sentinel
func translateWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", interfaces.ErrDuplicateIdentifier, err)
	}
	return err
}
