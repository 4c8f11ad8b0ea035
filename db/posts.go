package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proveit/models"
	"proveit/store"
)

type posts struct{ coll *mongo.Collection }

func reactionPaths(t models.ReactionType, userID string) (counter, member string) {
	return "reactions." + string(t), "reactedUsers." + string(t) + "." + userID
}

func (p posts) Create(ctx context.Context, post *models.Post) error {
	_, err := p.coll.InsertOne(ctx, post)
	return insertErr(err)
}

func (p posts) Get(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	if err := p.coll.FindOne(ctx, bson.M{"_id": postID}).Decode(&post); err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

func (p posts) ListByAuthors(ctx context.Context, authorIDs []string, limit int) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := p.coll.Find(ctx, bson.M{"userId": bson.M{"$in": authorIDs}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []*models.Post{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p posts) AttachImage(ctx context.Context, postID, imageKey string) error {
	res, err := p.coll.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$set": bson.M{"imageKey": imageKey}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// settled reports a lost membership guard as no change, or ErrNotFound when
// the post is gone.
func (p posts) settled(ctx context.Context, postID string) (bool, error) {
	ok, err := exists(ctx, p.coll, bson.M{"_id": postID})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, store.ErrNotFound
	}
	return false, nil
}

func (p posts) AddReaction(ctx context.Context, postID string, t models.ReactionType, userID string) (bool, error) {
	counter, member := reactionPaths(t, userID)
	res, err := p.coll.UpdateOne(ctx,
		bson.M{"_id": postID, member: bson.M{"$ne": true}},
		bson.M{
			"$inc": bson.M{counter: 1},
			"$set": bson.M{member: true},
		},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return p.settled(ctx, postID)
	}
	return true, nil
}

func (p posts) RemoveReaction(ctx context.Context, postID string, t models.ReactionType, userID string) (bool, error) {
	counter, member := reactionPaths(t, userID)
	res, err := p.coll.UpdateOne(ctx,
		bson.M{"_id": postID, member: true},
		bson.M{
			"$inc":   bson.M{counter: -1},
			"$unset": bson.M{member: ""},
		},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		return p.settled(ctx, postID)
	}
	// The visible counter never goes below zero.
	if _, err := p.coll.UpdateOne(ctx,
		bson.M{"_id": postID, counter: bson.M{"$lt": 0}},
		bson.M{"$set": bson.M{counter: 0}},
	); err != nil {
		return true, err
	}
	return true, nil
}
