package toggle

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micro-twitter/domain/tweet"
	"micro-twitter/domain/user"
	"micro-twitter/storage"
)

// flakyStore fails SetUserEdge for chosen user ids, optionally after letting a
// number of writes through, so partial follow writes can be forced.
type flakyStore struct {
	storage.Storage
	failFor map[string]int // user id -> number of edge writes allowed before failing
	writes  map[string]int
}

func newFlakyStore(inner storage.Storage) *flakyStore {
	return &flakyStore{Storage: inner, failFor: make(map[string]int), writes: make(map[string]int)}
}

func (f *flakyStore) SetUserEdge(ctx context.Context, userId string, memberId string, edge storage.UserEdge, present bool) error {
	if allowed, ok := f.failFor[userId]; ok {
		if f.writes[userId] >= allowed {
			return storage.ErrStoreUnavailable
		}
	}
	f.writes[userId]++
	return f.Storage.SetUserEdge(ctx, userId, memberId, edge, present)
}

func setup(t *testing.T) (*storage.InMemoryStorage, *user.User, *user.User) {
	t.Helper()
	ctx := context.Background()
	im := storage.NewInMemoryStorage()
	a := &user.User{Username: "alice", Email: "alice@example.com"}
	require.NoError(t, im.CreateUser(ctx, a))
	b := &user.User{Username: "bob", Email: "bob@example.com"}
	require.NoError(t, im.CreateUser(ctx, b))
	return im, a, b
}

func TestToggleLikeDoubleToggle(t *testing.T) {
	ctx := context.Background()
	im, a, b := setup(t)
	engine := NewEngine(im, nil)

	tw := &tweet.Tweet{Content: "hello"}
	require.NoError(t, im.CreateTweet(ctx, a.Id, tw))

	liked, present, err := engine.ToggleLike(ctx, tw.Id, b.Id)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []string{b.Id}, liked.Likes)

	// Second identical toggle returns to the original state.
	unliked, present, err := engine.ToggleLike(ctx, tw.Id, b.Id)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Empty(t, unliked.Likes)

	_, _, err = engine.ToggleLike(ctx, "missing", b.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestToggleRetweet(t *testing.T) {
	ctx := context.Background()
	im, a, b := setup(t)
	engine := NewEngine(im, nil)

	tw := &tweet.Tweet{Content: "hello"}
	require.NoError(t, im.CreateTweet(ctx, a.Id, tw))

	rt, present, err := engine.ToggleRetweet(ctx, tw.Id, b.Id)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []string{b.Id}, rt.Retweets)
	assert.Empty(t, rt.Likes, "like and retweet sets are independent")

	rt, present, err = engine.ToggleRetweet(ctx, tw.Id, b.Id)
	require.NoError(t, err)
	assert.False(t, present)
	assert.Empty(t, rt.Retweets)
}

func TestToggleFollowSymmetry(t *testing.T) {
	ctx := context.Background()
	im, a, b := setup(t)
	engine := NewEngine(im, nil)

	following, err := engine.ToggleFollow(ctx, b.Id, a.Id)
	require.NoError(t, err)
	assert.True(t, following)

	gotA, _ := im.GetUser(ctx, a.Id)
	gotB, _ := im.GetUser(ctx, b.Id)
	assert.Equal(t, []string{b.Id}, gotA.Following)
	assert.Equal(t, []string{a.Id}, gotB.Followers)

	following, err = engine.ToggleFollow(ctx, b.Id, a.Id)
	require.NoError(t, err)
	assert.False(t, following)

	gotA, _ = im.GetUser(ctx, a.Id)
	gotB, _ = im.GetUser(ctx, b.Id)
	assert.Empty(t, gotA.Following)
	assert.Empty(t, gotB.Followers)
}

func TestToggleFollowRejectsSelf(t *testing.T) {
	ctx := context.Background()
	im, a, _ := setup(t)
	engine := NewEngine(im, nil)

	_, err := engine.ToggleFollow(ctx, a.Id, a.Id)
	assert.ErrorIs(t, err, ErrSelfFollow)
}

func TestToggleFollowMissingUsers(t *testing.T) {
	ctx := context.Background()
	im, a, _ := setup(t)
	engine := NewEngine(im, nil)

	_, err := engine.ToggleFollow(ctx, "missing", a.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = engine.ToggleFollow(ctx, a.Id, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestToggleFollowSecondWriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	im, a, b := setup(t)
	flaky := newFlakyStore(im)
	flaky.failFor[b.Id] = 0 // followers-side write always fails
	engine := NewEngine(flaky, nil)

	_, err := engine.ToggleFollow(ctx, b.Id, a.Id)
	require.Error(t, err)

	// Compensation undid the following-side write: no half-applied edge.
	gotA, _ := im.GetUser(ctx, a.Id)
	gotB, _ := im.GetUser(ctx, b.Id)
	assert.Empty(t, gotA.Following)
	assert.Empty(t, gotB.Followers)
}

func TestToggleFollowRollbackFailureLeavesFollowingSideAuthoritative(t *testing.T) {
	ctx := context.Background()
	im, a, b := setup(t)
	flaky := newFlakyStore(im)
	flaky.failFor[b.Id] = 0 // followers-side write fails
	flaky.failFor[a.Id] = 0 // the compensating write fails too
	engine := NewEngine(flaky, nil)

	following, err := engine.ToggleFollow(ctx, b.Id, a.Id)
	require.NoError(t, err)
	assert.True(t, following)

	// Detectable asymmetry: A follows B, B does not yet list A.
	gotA, _ := im.GetUser(ctx, a.Id)
	gotB, _ := im.GetUser(ctx, b.Id)
	assert.Equal(t, []string{b.Id}, gotA.Following)
	assert.Empty(t, gotB.Followers)

	// Once the store recovers, the repair pass re-derives the followers side
	// and restores symmetry.
	delete(flaky.failFor, a.Id)
	delete(flaky.failFor, b.Id)
	require.NoError(t, engine.RepairFollow(a.Id, b.Id))
	gotB, _ = im.GetUser(ctx, b.Id)
	assert.Equal(t, []string{a.Id}, gotB.Followers)

	// Idempotent: running it again changes nothing.
	require.NoError(t, engine.RepairFollow(a.Id, b.Id))
	gotB, _ = im.GetUser(ctx, b.Id)
	assert.Equal(t, []string{a.Id}, gotB.Followers)
}

func TestConcurrentLikesByDifferentCallersAllLand(t *testing.T) {
	ctx := context.Background()
	im, a, _ := setup(t)
	engine := NewEngine(im, nil)

	tw := &tweet.Tweet{Content: "hello"}
	require.NoError(t, im.CreateTweet(ctx, a.Id, tw))

	callers := make([]string, 10)
	for i := range callers {
		u := &user.User{Username: fmt.Sprintf("user%d", i), Email: fmt.Sprintf("user%d@example.com", i)}
		require.NoError(t, im.CreateUser(ctx, u))
		callers[i] = u.Id
	}

	// Each caller flips its own element; no toggle may erase another's.
	var wg sync.WaitGroup
	errs := make([]error, len(callers))
	for i, id := range callers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, _, errs[i] = engine.ToggleLike(ctx, tw.Id, id)
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := im.GetTweet(ctx, tw.Id)
	require.NoError(t, err)
	assert.ElementsMatch(t, callers, got.Likes)
}

func TestConcurrentFollowsByDifferentCallersAllLand(t *testing.T) {
	ctx := context.Background()
	im, _, b := setup(t)
	engine := NewEngine(im, nil)

	callers := make([]string, 10)
	for i := range callers {
		u := &user.User{Username: fmt.Sprintf("fan%d", i), Email: fmt.Sprintf("fan%d@example.com", i)}
		require.NoError(t, im.CreateUser(ctx, u))
		callers[i] = u.Id
	}

	var wg sync.WaitGroup
	errs := make([]error, len(callers))
	for i, id := range callers {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = engine.ToggleFollow(ctx, b.Id, id)
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	gotB, err := im.GetUser(ctx, b.Id)
	require.NoError(t, err)
	assert.ElementsMatch(t, callers, gotB.Followers)
}
