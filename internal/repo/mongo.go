package repo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lijuuu/CTFArenaService/internal/model"
)

type MongoRepository struct {
	standings *mongo.Collection
}

func NewMongoRepository(client *mongo.Client, dbName string) *MongoRepository {
	return &MongoRepository{
		standings: client.Database(dbName).Collection("standings"),
	}
}

// ArchiveStandings stores the leaderboard as it was before a reset.
func (r *MongoRepository) ArchiveStandings(ctx context.Context, standings model.Standings) error {
	_, err := r.standings.InsertOne(ctx, standings)
	return err
}

// LatestStandings returns the most recent archive, or nil when none exist.
func (r *MongoRepository) LatestStandings(ctx context.Context) (*model.Standings, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "archived_at", Value: -1}})

	var out model.Standings
	err := r.standings.FindOne(ctx, bson.M{}, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
