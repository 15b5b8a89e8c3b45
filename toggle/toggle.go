package toggle

import (
	"context"
	"errors"

	"github.com/RichardKnop/machinery/v1"
	"github.com/RichardKnop/machinery/v1/tasks"
	"github.com/sirupsen/logrus"

	"micro-twitter/domain/tweet"
	"micro-twitter/storage"
)

var ErrSelfFollow = errors.New("cannot follow yourself")

// RepairFollowTask is the machinery task name for the async follow repair.
const RepairFollowTask = "repairFollow"

// Engine applies idempotent presence toggles to the relationship sets. Every
// toggle commits as a per-element store operation, so concurrent toggles by
// different callers flip distinct elements and never erase each other; a
// toggle ends in the opposite of wherever the set stood when its write
// committed.
type Engine struct {
	Store storage.Storage
	// Server, when set, backs the follow repair queue. Nil is fine for
	// single-record toggles and for tests.
	Server *machinery.Server
}

func NewEngine(store storage.Storage, server *machinery.Server) *Engine {
	return &Engine{Store: store, Server: server}
}

// ToggleLike flips callerId's membership in the tweet's like set and returns
// the updated tweet plus the resulting membership.
func (e *Engine) ToggleLike(ctx context.Context, tweetId string, callerId string) (*tweet.Tweet, bool, error) {
	return e.Store.ToggleTweetMember(ctx, tweetId, callerId, storage.TweetLikes)
}

func (e *Engine) ToggleRetweet(ctx context.Context, tweetId string, callerId string) (*tweet.Tweet, bool, error) {
	return e.Store.ToggleTweetMember(ctx, tweetId, callerId, storage.TweetRetweets)
}

// ToggleFollow flips the follow edge between caller and target. The edge lives
// on two records (caller.following, target.followers) and no cross-record
// transaction exists, so the writes are applied in a fixed order: following
// side first, followers side second. The following side is the source of truth
// during a partial failure. If the second write fails the first is rolled back
// best-effort; if the rollback fails too, an async repair task re-derives the
// followers side.
func (e *Engine) ToggleFollow(ctx context.Context, targetId string, callerId string) (bool, error) {
	if targetId == callerId {
		return false, ErrSelfFollow
	}
	if _, err := e.Store.GetUser(ctx, targetId); err != nil {
		return false, err
	}

	following, err := e.Store.ToggleUserEdge(ctx, callerId, targetId, storage.EdgeFollowing)
	if err != nil {
		return false, err
	}

	if err := e.Store.SetUserEdge(ctx, targetId, callerId, storage.EdgeFollowers, following); err != nil {
		rbErr := e.Store.SetUserEdge(ctx, callerId, targetId, storage.EdgeFollowing, !following)
		if rbErr != nil {
			logrus.WithError(rbErr).WithFields(logrus.Fields{
				"caller": callerId,
				"target": targetId,
			}).Error("follow rollback failed, enqueueing repair")
			e.enqueueRepair(callerId, targetId)
			return following, nil
		}
		return false, err
	}
	return following, nil
}

// RepairFollow re-derives target.followers membership for caller from
// caller.following. Runs as a machinery task; idempotent, safe to retry.
func (e *Engine) RepairFollow(callerId string, targetId string) error {
	ctx := context.Background()
	caller, err := e.Store.GetUser(ctx, callerId)
	if err != nil {
		return err
	}
	desired := tweet.HasMember(caller.Following, targetId)
	return e.Store.SetUserEdge(ctx, targetId, callerId, storage.EdgeFollowers, desired)
}

func (e *Engine) enqueueRepair(callerId string, targetId string) {
	if e.Server == nil {
		return
	}
	signature := &tasks.Signature{
		Name: RepairFollowTask,
		Args: []tasks.Arg{
			{Type: "string", Value: callerId},
			{Type: "string", Value: targetId},
		},
		RetryCount: 3,
	}
	if _, err := e.Server.SendTask(signature); err != nil {
		logrus.WithError(err).Error("failed to enqueue follow repair")
	}
}
