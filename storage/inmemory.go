package storage

import (
	"context"
	"sort"
	"sync"

	"micro-twitter/domain/tweet"
	"micro-twitter/domain/user"
	"micro-twitter/utils"
)

// InMemoryStorage backs tests and local runs. Records are copied on the way in
// and out so callers never alias internal state.
type InMemoryStorage struct {
	mu     sync.RWMutex
	users  map[string]*user.User
	tweets map[string]*tweet.Tweet
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		users:  make(map[string]*user.User),
		tweets: make(map[string]*tweet.Tweet),
	}
}

func (im *InMemoryStorage) GetUser(_ context.Context, userId string) (*user.User, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	u, ok := im.users[userId]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (im *InMemoryStorage) FindUserByUsername(_ context.Context, username string) (*user.User, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	for _, u := range im.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (im *InMemoryStorage) CreateUser(_ context.Context, u *user.User) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, existing := range im.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrUserExists
		}
	}
	u.Id = utils.GenerateId()
	if u.Followers == nil {
		u.Followers = make([]string, 0)
	}
	if u.Following == nil {
		u.Following = make([]string, 0)
	}
	im.users[u.Id] = copyUser(u)
	return nil
}

func (im *InMemoryStorage) ToggleUserEdge(_ context.Context, userId string, memberId string, edge UserEdge) (bool, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	u, ok := im.users[userId]
	if !ok {
		return false, ErrNotFound
	}
	var present bool
	if edge == EdgeFollowers {
		u.Followers, present = tweet.ToggleMember(u.Followers, memberId)
	} else {
		u.Following, present = tweet.ToggleMember(u.Following, memberId)
	}
	return present, nil
}

func (im *InMemoryStorage) SetUserEdge(_ context.Context, userId string, memberId string, edge UserEdge, present bool) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	u, ok := im.users[userId]
	if !ok {
		return ErrNotFound
	}
	if tweet.HasMember(userEdgeOf(u, edge), memberId) == present {
		return nil
	}
	if edge == EdgeFollowers {
		u.Followers, _ = tweet.ToggleMember(u.Followers, memberId)
	} else {
		u.Following, _ = tweet.ToggleMember(u.Following, memberId)
	}
	return nil
}

func (im *InMemoryStorage) GetTweet(_ context.Context, tweetId string) (*tweet.Tweet, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	t, ok := im.tweets[tweetId]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTweet(t), nil
}

func (im *InMemoryStorage) CreateTweet(_ context.Context, authorId string, t *tweet.Tweet) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	t.Id = utils.GenerateId()
	t.AuthorId = authorId
	t.CreatedAt = utils.Now()
	if t.Likes == nil {
		t.Likes = make([]string, 0)
	}
	if t.Retweets == nil {
		t.Retweets = make([]string, 0)
	}
	im.tweets[t.Id] = copyTweet(t)
	return nil
}

// ToggleTweetMember performs the whole read-flip-write inside one critical
// section, so concurrent toggles of distinct members both land.
func (im *InMemoryStorage) ToggleTweetMember(_ context.Context, tweetId string, memberId string, set TweetSet) (*tweet.Tweet, bool, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	t, ok := im.tweets[tweetId]
	if !ok {
		return nil, false, ErrNotFound
	}
	var present bool
	if set == TweetRetweets {
		t.Retweets, present = tweet.ToggleMember(t.Retweets, memberId)
	} else {
		t.Likes, present = tweet.ToggleMember(t.Likes, memberId)
	}
	return copyTweet(t), present, nil
}

func (im *InMemoryStorage) UpdateTweetContent(_ context.Context, tweetId string, authorId string, content string) (*tweet.Tweet, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	t, ok := im.tweets[tweetId]
	if !ok {
		return nil, ErrNotFound
	}
	if t.AuthorId != authorId {
		return nil, ErrForbiddenAccess
	}
	t.Content = content
	return copyTweet(t), nil
}

func (im *InMemoryStorage) DeleteTweet(_ context.Context, tweetId string, expectedAuthor string) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	t, ok := im.tweets[tweetId]
	if !ok {
		return ErrNotFound
	}
	if t.AuthorId != expectedAuthor {
		return ErrForbiddenAccess
	}
	delete(im.tweets, tweetId)
	return nil
}

func (im *InMemoryStorage) ListTweetsPage(_ context.Context, skip int, limit int) ([]*tweet.Tweet, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	all := make([]*tweet.Tweet, 0, len(im.tweets))
	for _, t := range im.tweets {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Id > all[j].Id
	})
	if skip >= len(all) {
		return make([]*tweet.Tweet, 0), nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	arr := make([]*tweet.Tweet, 0, end-skip)
	for _, t := range all[skip:end] {
		arr = append(arr, copyTweet(t))
	}
	return arr, nil
}

func copyUser(u *user.User) *user.User {
	out := *u
	out.Followers = append([]string(nil), u.Followers...)
	out.Following = append([]string(nil), u.Following...)
	return &out
}

func copyTweet(t *tweet.Tweet) *tweet.Tweet {
	out := *t
	out.Likes = append([]string(nil), t.Likes...)
	out.Retweets = append([]string(nil), t.Retweets...)
	return &out
}
