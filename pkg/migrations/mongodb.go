package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"adpilot/internal/constants"
)

// EnsureMongoCollection creates the audit collection and its indexes. Safe to
// call on every startup.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.ExecutionRecordsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "execution_id", Value: 1}},
			Options: options.Index().SetName("idx_execution_records_execution_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "campaign_id", Value: 1}, {Key: "attempted_at", Value: -1}},
			Options: options.Index().SetName("idx_execution_records_campaign_attempted"),
		},
		{
			Keys:    bson.D{{Key: "rule_id", Value: 1}, {Key: "attempted_at", Value: -1}},
			Options: options.Index().SetName("idx_execution_records_rule_attempted"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}},
			Options: options.Index().SetName("idx_execution_records_tenant"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
