package repositories_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sa3tha/sa3tha_backend/models"
	"github.com/sa3tha/sa3tha_backend/repositories"
)

func insertUser(t *testing.T, db *mongo.Database, u models.User) primitive.ObjectID {
	t.Helper()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.CreatedAt = t0
	u.UpdatedAt = t0
	_, err := db.Collection(repositories.UsersCollection).InsertOne(context.Background(), u)
	require.NoError(t, err)
	return u.ID
}

func TestUserRepository_GovernorateOnlyLocation(t *testing.T) {
	_, db := testDB(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()
	id := insertUser(t, db, models.User{Name: "Mona", Role: models.RoleCustomer})

	// the 2dsphere index refuses a location subdocument without a point
	_, err := db.Collection(repositories.UsersCollection).InsertOne(ctx, bson.M{
		"name":     "broken",
		"location": bson.M{"governorate": "القاهرة"},
	})
	require.Error(t, err)

	require.NoError(t, repo.SetLocation(ctx, id, nil, "القاهرة"))
	user, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "القاهرة", user.Region())
	assert.Nil(t, user.Location)

	require.NoError(t, repo.SetLocation(ctx, id, &models.GeoPoint{Lon: 31.2357, Lat: 30.0444}, "القاهرة"))
	require.NoError(t, repo.SetLocation(ctx, id, nil, "الجيزة"))
	user, err = repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "الجيزة", user.Region())
	p, ok := user.Location.Point()
	require.True(t, ok, "a governorate-only update keeps the stored point")
	assert.Equal(t, models.GeoPoint{Lon: 31.2357, Lat: 30.0444}, p)

	assert.ErrorIs(t, repo.SetLocation(ctx, primitive.NewObjectID(), nil, "الجيزة"), repositories.ErrNotFound)
}

func TestUserRepository_FindExpertsByGovernorate(t *testing.T) {
	_, db := testDB(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()
	profile := func(rating float64) *models.ExpertProfile {
		return &models.ExpertProfile{IsAvailable: true, AverageRating: rating}
	}

	insertUser(t, db, models.User{Name: "top", Role: models.RoleExpert, Governorate: "القاهرة", ExpertProfile: profile(4)})
	// written before the governorate moved out of the location subdocument
	insertUser(t, db, models.User{
		Name:          "legacy",
		Role:          models.RoleExpert,
		Location:      models.NewUserLocation(models.GeoPoint{Lon: 31.2, Lat: 30}, "القاهرة"),
		ExpertProfile: profile(5),
	})
	insertUser(t, db, models.User{Name: "giza", Role: models.RoleExpert, Governorate: "الجيزة", ExpertProfile: profile(5)})
	insertUser(t, db, models.User{Name: "customer", Role: models.RoleCustomer, Governorate: "القاهرة"})

	experts, err := repo.FindExperts(ctx, repositories.ExpertQuery{Governorate: "القاهرة", SortByRating: true})
	require.NoError(t, err)
	var names []string
	for _, e := range experts {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"legacy", "top"}, names)

	near, err := repo.FindExperts(ctx, repositories.ExpertQuery{
		Near:          &models.GeoPoint{Lon: 31.2, Lat: 30},
		MaxDistanceKm: 5,
	})
	require.NoError(t, err)
	require.Len(t, near, 1, "only experts with a stored point are geo-searchable")
	assert.Equal(t, "legacy", near[0].Name)
}

func TestUserRepository_ApplyRating(t *testing.T) {
	_, db := testDB(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()
	expert := insertUser(t, db, models.User{Role: models.RoleExpert, ExpertProfile: &models.ExpertProfile{}})

	summary, err := repo.ApplyRating(ctx, expert, 5)
	require.NoError(t, err)
	assert.Equal(t, models.RatingSummary{AverageRating: 5, RatingCount: 1}, summary)

	summary, err = repo.ApplyRating(ctx, expert, 3)
	require.NoError(t, err)
	assert.Equal(t, models.RatingSummary{AverageRating: 4, RatingCount: 2}, summary)

	customer := insertUser(t, db, models.User{Role: models.RoleCustomer})
	_, err = repo.ApplyRating(ctx, customer, 5)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	// a profile that never stored ratingCount counts as zero ratings
	bare := insertUser(t, db, models.User{Role: models.RoleExpert})
	summary, err = repo.ApplyRating(ctx, bare, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RatingCount)
}

func TestUserRepository_ConcurrentRatingsAreNotLost(t *testing.T) {
	_, db := testDB(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()
	expert := insertUser(t, db, models.User{Role: models.RoleExpert, ExpertProfile: &models.ExpertProfile{}})

	const writers = 4
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyRating(ctx, expert, 4)
			if err != nil {
				assert.True(t, errors.Is(err, repositories.ErrWriteConflict), "unexpected error: %v", err)
				return
			}
			mu.Lock()
			applied++
			mu.Unlock()
		}()
	}
	wg.Wait()

	stored, err := repo.FindByID(ctx, expert)
	require.NoError(t, err)
	assert.Equal(t, applied, stored.ExpertProfile.RatingCount, "every successful write is counted exactly once")
	assert.InDelta(t, 4.0, stored.ExpertProfile.AverageRating, 1e-9)
}
