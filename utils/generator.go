package utils

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GenerateId returns a fresh record id. ObjectID hex strings sort by creation
// time, which keeps the id a usable tiebreaker for feed ordering.
func GenerateId() string {
	return primitive.NewObjectID().Hex()
}

func Now() time.Time {
	return time.Now().UTC()
}
