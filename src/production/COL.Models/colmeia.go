package colmodels

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Colmeia is one physical beehive's identity and latest sensor snapshot.
// BSON names match the existing "colmeias" collection.
type Colmeia struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Identifier          string             `bson:"identificador" json:"identifier"`
	Location            string             `bson:"localizacao" json:"location"`
	InstalledAt         time.Time          `bson:"dataInstalacao" json:"installedAt"`
	InternalTemperature *float64           `bson:"temperaturaInterna" json:"internalTemperature"`
	InternalHumidity    *float64           `bson:"umidadeInterna" json:"internalHumidity"`
	Weight              *float64           `bson:"peso" json:"weight"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}
