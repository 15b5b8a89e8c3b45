package storage

import (
	"context"

	"micro-twitter/domain/tweet"
	"micro-twitter/domain/user"
)

// PageSize is the fixed number of tweets per feed page.
const PageSize = 20

// TweetSet names a toggled member set on a tweet record. Values double as the
// stored field names.
type TweetSet string

const (
	TweetLikes    TweetSet = "likes"
	TweetRetweets TweetSet = "retweets"
)

// UserEdge names a follow-edge set on a user record. Values double as the
// stored field names.
type UserEdge string

const (
	EdgeFollowers UserEdge = "followers"
	EdgeFollowing UserEdge = "following"
)

// Storage is the durable record store. No multi-record transaction is
// available; callers that touch two records must handle partial failure
// themselves. All implementations must be safe for concurrent use.
//
// Set mutations (ToggleTweetMember, ToggleUserEdge, SetUserEdge) commit as
// per-element operations on the record: concurrent mutations of distinct
// members never erase each other, relying on the store's per-record atomicity
// rather than whole-record replacement.
type Storage interface {
	GetUser(ctx context.Context, userId string) (*user.User, error)
	FindUserByUsername(ctx context.Context, username string) (*user.User, error)
	CreateUser(ctx context.Context, u *user.User) error

	// ToggleUserEdge flips memberId's membership in the named edge set and
	// returns the resulting state.
	ToggleUserEdge(ctx context.Context, userId string, memberId string, edge UserEdge) (bool, error)
	// SetUserEdge forces memberId's membership in the named edge set to the
	// given state. Idempotent.
	SetUserEdge(ctx context.Context, userId string, memberId string, edge UserEdge, present bool) error

	GetTweet(ctx context.Context, tweetId string) (*tweet.Tweet, error)
	CreateTweet(ctx context.Context, authorId string, t *tweet.Tweet) error
	// ToggleTweetMember flips memberId's membership in the named set and
	// returns the updated tweet plus the resulting state.
	ToggleTweetMember(ctx context.Context, tweetId string, memberId string, set TweetSet) (*tweet.Tweet, bool, error)
	// UpdateTweetContent replaces the body of the author's tweet. Returns
	// ErrNotFound when the tweet is absent, ErrForbiddenAccess when it exists
	// but belongs to someone else.
	UpdateTweetContent(ctx context.Context, tweetId string, authorId string, content string) (*tweet.Tweet, error)
	// DeleteTweet removes the tweet when it belongs to expectedAuthor.
	// Same ErrNotFound / ErrForbiddenAccess split as UpdateTweetContent.
	DeleteTweet(ctx context.Context, tweetId string, expectedAuthor string) error

	// ListTweetsPage returns up to limit tweets starting at offset skip,
	// ordered by creation time descending, ties broken by id descending.
	ListTweetsPage(ctx context.Context, skip int, limit int) ([]*tweet.Tweet, error)
}
