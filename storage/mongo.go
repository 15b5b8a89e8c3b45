package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"micro-twitter/domain/tweet"
	"micro-twitter/domain/user"
	"micro-twitter/utils"
)

type MongoStorage struct {
	Users  *mongo.Collection
	Tweets *mongo.Collection
}

func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{
		Users:  db.Collection("users"),
		Tweets: db.Collection("tweets"),
	}
}

// EnsureIndexes creates the unique account indexes and the feed sort index.
// Uniqueness of username/email is enforced here, not by a racy pre-read.
func (m *MongoStorage) EnsureIndexes(ctx context.Context) error {
	_, err := m.Users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return mapMongoErr(err)
	}
	_, err = m.Tweets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: -1}}},
	})
	return mapMongoErr(err)
}

func (m *MongoStorage) GetUser(ctx context.Context, userId string) (*user.User, error) {
	var u user.User
	err := m.Users.FindOne(ctx, bson.M{"id": userId}).Decode(&u)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	return &u, nil
}

func (m *MongoStorage) FindUserByUsername(ctx context.Context, username string) (*user.User, error) {
	var u user.User
	err := m.Users.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	return &u, nil
}

func (m *MongoStorage) CreateUser(ctx context.Context, u *user.User) error {
	u.Id = utils.GenerateId()
	if u.Followers == nil {
		u.Followers = make([]string, 0)
	}
	if u.Following == nil {
		u.Following = make([]string, 0)
	}
	_, err := m.Users.InsertOne(ctx, *u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrUserExists
	}
	return mapMongoErr(err)
}

func (m *MongoStorage) ToggleUserEdge(ctx context.Context, userId string, memberId string, edge UserEdge) (bool, error) {
	u, err := m.GetUser(ctx, userId)
	if err != nil {
		return false, err
	}
	update := edgeUpdate(edge, memberId, !tweet.HasMember(userEdgeOf(u, edge), memberId))
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated user.User
	err = m.Users.FindOneAndUpdate(ctx, bson.M{"id": userId}, update, opt).Decode(&updated)
	if err != nil {
		return false, mapMongoErr(err)
	}
	return tweet.HasMember(userEdgeOf(&updated, edge), memberId), nil
}

func (m *MongoStorage) SetUserEdge(ctx context.Context, userId string, memberId string, edge UserEdge, present bool) error {
	res, err := m.Users.UpdateOne(ctx, bson.M{"id": userId}, edgeUpdate(edge, memberId, present))
	if err != nil {
		return mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStorage) GetTweet(ctx context.Context, tweetId string) (*tweet.Tweet, error) {
	var two tweet.TweetWithOID
	err := m.Tweets.FindOne(ctx, bson.M{"id": tweetId}).Decode(&two)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	t := two.ToTweet()
	return &t, nil
}

func (m *MongoStorage) CreateTweet(ctx context.Context, authorId string, t *tweet.Tweet) error {
	t.Id = utils.GenerateId()
	t.AuthorId = authorId
	t.CreatedAt = utils.Now()
	if t.Likes == nil {
		t.Likes = make([]string, 0)
	}
	if t.Retweets == nil {
		t.Retweets = make([]string, 0)
	}
	_, err := m.Tweets.InsertOne(ctx, *t)
	return mapMongoErr(err)
}

// ToggleTweetMember reads current membership, then commits the flip as a
// per-element $addToSet/$pull. Concurrent toggles of distinct members touch
// distinct elements and never erase each other; concurrent identical toggles
// are idempotent per-element ops, and the returned state is read back from the
// committed document.
func (m *MongoStorage) ToggleTweetMember(ctx context.Context, tweetId string, memberId string, set TweetSet) (*tweet.Tweet, bool, error) {
	t, err := m.GetTweet(ctx, tweetId)
	if err != nil {
		return nil, false, err
	}
	update := setUpdate(set, memberId, !tweet.HasMember(tweetSetOf(t, set), memberId))
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var two tweet.TweetWithOID
	err = m.Tweets.FindOneAndUpdate(ctx, bson.M{"id": tweetId}, update, opt).Decode(&two)
	if err != nil {
		return nil, false, mapMongoErr(err)
	}
	updated := two.ToTweet()
	return &updated, tweet.HasMember(tweetSetOf(&updated, set), memberId), nil
}

func (m *MongoStorage) UpdateTweetContent(ctx context.Context, tweetId string, authorId string, content string) (*tweet.Tweet, error) {
	filter := bson.D{{Key: "id", Value: tweetId}, {Key: "authorId", Value: authorId}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "content", Value: content}}}}
	opt := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var two tweet.TweetWithOID
	err := m.Tweets.FindOneAndUpdate(ctx, filter, update, opt).Decode(&two)
	if err == nil {
		updated := two.ToTweet()
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, mapMongoErr(err)
	}
	// Distinguish "absent" from "not the caller's".
	err = m.Tweets.FindOne(ctx, bson.M{"id": tweetId}).Err()
	if err != nil {
		return nil, ErrNotFound
	}
	return nil, ErrForbiddenAccess
}

func (m *MongoStorage) DeleteTweet(ctx context.Context, tweetId string, expectedAuthor string) error {
	res, err := m.Tweets.DeleteOne(ctx, bson.D{{Key: "id", Value: tweetId}, {Key: "authorId", Value: expectedAuthor}})
	if err != nil {
		return mapMongoErr(err)
	}
	if res.DeletedCount > 0 {
		return nil
	}
	err = m.Tweets.FindOne(ctx, bson.M{"id": tweetId}).Err()
	if err != nil {
		return ErrNotFound
	}
	return ErrForbiddenAccess
}

func (m *MongoStorage) ListTweetsPage(ctx context.Context, skip int, limit int) ([]*tweet.Tweet, error) {
	opt := options.Find()
	opt.SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "id", Value: -1}})
	opt.SetSkip(int64(skip))
	opt.SetLimit(int64(limit))
	cur, err := m.Tweets.Find(ctx, bson.M{}, opt)
	if err != nil {
		return nil, mapMongoErr(err)
	}
	defer cur.Close(ctx)
	arr := make([]*tweet.Tweet, 0, limit)
	for cur.Next(ctx) {
		var two tweet.TweetWithOID
		if err := cur.Decode(&two); err != nil {
			return nil, mapMongoErr(err)
		}
		t := two.ToTweet()
		arr = append(arr, &t)
	}
	if err := cur.Err(); err != nil {
		return nil, mapMongoErr(err)
	}
	return arr, nil
}

// mapMongoErr translates driver errors into the storage sentinels: absent
// documents become ErrNotFound, everything else an infrastructure failure.
func mapMongoErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func setUpdate(set TweetSet, memberId string, add bool) bson.M {
	if add {
		return bson.M{"$addToSet": bson.M{string(set): memberId}}
	}
	return bson.M{"$pull": bson.M{string(set): memberId}}
}

func edgeUpdate(edge UserEdge, memberId string, add bool) bson.M {
	if add {
		return bson.M{"$addToSet": bson.M{string(edge): memberId}}
	}
	return bson.M{"$pull": bson.M{string(edge): memberId}}
}

func tweetSetOf(t *tweet.Tweet, set TweetSet) []string {
	if set == TweetRetweets {
		return t.Retweets
	}
	return t.Likes
}

func userEdgeOf(u *user.User, edge UserEdge) []string {
	if edge == EdgeFollowers {
		return u.Followers
	}
	return u.Following
}
