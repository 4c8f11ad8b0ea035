package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proveit/models"
	"proveit/store"
)

type users struct{ coll *mongo.Collection }

func (u users) Ensure(ctx context.Context, user *models.User) (*models.User, bool, error) {
	raw, err := bson.Marshal(user)
	if err != nil {
		return nil, false, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}
	delete(doc, "_id")

	res, err := u.coll.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, false, err
	}
	stored, err := u.Get(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, res.UpsertedCount > 0, nil
}

func (u users) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := u.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return nil, notFound(err)
	}
	if user.Friends == nil {
		user.Friends = []string{}
	}
	return &user, nil
}

// update applies a field-scoped update and maps a missing user to ErrNotFound.
func (u users) update(ctx context.Context, filter, update bson.M) error {
	res, err := u.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (u users) IncrementStat(ctx context.Context, userID, stat string, delta int) error {
	switch stat {
	case models.StatPostsCompleted, models.StatTomatoCount:
	default:
		return fmt.Errorf("unknown stat %q", stat)
	}
	return u.update(ctx, bson.M{"_id": userID}, bson.M{"$inc": bson.M{"stats." + stat: delta}})
}

func (u users) ResetStreak(ctx context.Context, userID string) error {
	return u.update(ctx, bson.M{"_id": userID}, bson.M{"$set": bson.M{"currentStreak": 0}})
}

func (u users) AdvanceStreak(ctx context.Context, userID string, up store.StreakUpdate) (bool, error) {
	filter := bson.M{"_id": userID, "currentStreak": up.PrevCurrent}
	if up.PrevDay == "" {
		filter["lastStreakDay"] = bson.M{"$in": bson.A{"", nil}}
	} else {
		filter["lastStreakDay"] = up.PrevDay
	}
	res, err := u.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"currentStreak":  up.Current,
		"longestStreak":  up.Longest,
		"lastStreakDay":  up.Day,
		"lastStreakDate": up.At,
	}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		ok, err := exists(ctx, u.coll, bson.M{"_id": userID})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, store.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (u users) AddFriend(ctx context.Context, userID, friendID string) error {
	return u.update(ctx, bson.M{"_id": userID}, bson.M{"$addToSet": bson.M{"friends": friendID}})
}

func (u users) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return u.update(ctx, bson.M{"_id": userID}, bson.M{"$pull": bson.M{"friends": friendID}})
}
