package repositories_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sa3tha/sa3tha_backend/config"
)

// Shared mongod for the package. MONGO_TEST_URI points the tests at an
// existing replica set instead of starting a container.
var (
	mongoOnce      sync.Once
	mongoClient    *mongo.Client
	mongoErr       error
	mongoContainer *mongodb.MongoDBContainer
)

func TestMain(m *testing.M) {
	code := m.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if mongoClient != nil {
		mongoClient.Disconnect(ctx)
	}
	if mongoContainer != nil {
		mongoContainer.Terminate(ctx)
	}
	os.Exit(code)
}

func startMongo() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		// transactions need a replica set
		c, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
		if err != nil {
			mongoErr = err
			return
		}
		mongoContainer = c
		if uri, mongoErr = c.ConnectionString(ctx); mongoErr != nil {
			return
		}
	}

	mongoClient, mongoErr = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if mongoErr == nil {
		mongoErr = mongoClient.Ping(ctx, nil)
	}
}

// testDB returns a fresh database with the production collections and
// indexes. Tests are skipped when no mongod can be started.
func testDB(t *testing.T) (*mongo.Client, *mongo.Database) {
	t.Helper()
	if testing.Short() {
		t.Skip("mongo integration tests skipped in -short mode")
	}
	mongoOnce.Do(startMongo)
	if mongoErr != nil {
		t.Skipf("mongo unavailable: %v", mongoErr)
	}

	db := mongoClient.Database("sa3tha_test_" + primitive.NewObjectID().Hex())
	config.SetupCollections(db)
	t.Cleanup(func() {
		db.Drop(context.Background())
	})
	return mongoClient, db
}
