package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proveit/models"
	"proveit/store"
)

type goals struct{ coll *mongo.Collection }

func owned(userID, goalID string) bson.M {
	return bson.M{"_id": goalID, "userId": userID}
}

// notMissedOn matches goals whose missed flag does not refer to day.
func notMissedOn(day string) bson.A {
	return bson.A{
		bson.M{"missedToday": bson.M{"$ne": true}},
		bson.M{"missedOn": bson.M{"$ne": day}},
	}
}

func (g goals) Create(ctx context.Context, goal *models.Goal) error {
	_, err := g.coll.InsertOne(ctx, goal)
	return insertErr(err)
}

func (g goals) Get(ctx context.Context, userID, goalID string) (*models.Goal, error) {
	var goal models.Goal
	if err := g.coll.FindOne(ctx, owned(userID, goalID)).Decode(&goal); err != nil {
		return nil, notFound(err)
	}
	return &goal, nil
}

func (g goals) List(ctx context.Context, userID string) ([]*models.Goal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := g.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*models.Goal{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g goals) Delete(ctx context.Context, userID, goalID string) error {
	res, err := g.coll.DeleteOne(ctx, owned(userID, goalID))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// missing distinguishes a lost conditional update from an absent goal.
func (g goals) missing(ctx context.Context, userID, goalID string) error {
	ok, err := exists(ctx, g.coll, owned(userID, goalID))
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (g goals) ApplyCompletion(ctx context.Context, userID, goalID string, u store.CompletionUpdate) (*models.Goal, error) {
	filter := owned(userID, goalID)
	filter["revision"] = u.ExpectedRevision
	filter["lastCompletedDay"] = bson.M{"$ne": u.Day}

	update := bson.M{
		"$addToSet": bson.M{"completedDates": u.Day},
		"$set": bson.M{
			"lastCompleted":    u.CompletedAt,
			"lastCompletedDay": u.Day,
			"currentStreak":    u.CurrentStreak,
			"longestStreak":    u.LongestStreak,
			"missedToday":      false,
		},
		"$inc": bson.M{"totalCompletions": 1, "revision": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var goal models.Goal
	err := g.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&goal)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if err := g.missing(ctx, userID, goalID); err != nil {
			return nil, err
		}
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

func (g goals) ClaimMissed(ctx context.Context, userID, goalID, day string) (bool, error) {
	filter := owned(userID, goalID)
	filter["lastCompletedDay"] = bson.M{"$ne": day}
	filter["$or"] = notMissedOn(day)

	res, err := g.coll.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"missedToday": true, "missedOn": day, "currentStreak": 0},
		"$inc": bson.M{"revision": 1},
	})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, g.missing(ctx, userID, goalID)
	}
	return true, nil
}

func (g goals) ReleaseMissed(ctx context.Context, userID, goalID, day string) error {
	filter := owned(userID, goalID)
	filter["missedToday"] = true
	filter["missedOn"] = day

	res, err := g.coll.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"missedToday": false},
		"$inc": bson.M{"revision": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return g.missing(ctx, userID, goalID)
	}
	return nil
}

func (g goals) ClaimStreakWarning(ctx context.Context, userID, goalID, day string) (bool, error) {
	filter := owned(userID, goalID)
	filter["warnedOn"] = bson.M{"$ne": day}
	filter["lastCompletedDay"] = bson.M{"$ne": day}
	filter["$or"] = notMissedOn(day)

	res, err := g.coll.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"warnedOn": day},
		"$inc": bson.M{"revision": 1},
	})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return false, g.missing(ctx, userID, goalID)
	}
	return true, nil
}
