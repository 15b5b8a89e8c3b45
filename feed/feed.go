package feed

import (
	"context"

	"github.com/sirupsen/logrus"

	"micro-twitter/domain/tweet"
	"micro-twitter/monitoring"
	"micro-twitter/storage"
)

// Entry is one feed page slot: a tweet snapshot with the author's username
// populated for display.
type Entry struct {
	tweet.Tweet
	Author string `json:"author"`
}

// Service is the single entry point for feed reads and for reconciling the
// cache after writes. The cache is an optimization only: any cache failure
// degrades to a direct store read.
type Service struct {
	Store storage.Storage
	Cache Cache
}

func NewService(store storage.Storage, cache Cache) *Service {
	return &Service{Store: store, Cache: cache}
}

// ReadPage returns feed page p (1-based, fixed size 20). Cache hit returns the
// cached page without touching the store; a miss materializes the page from the
// store and writes it through.
func (s *Service) ReadPage(ctx context.Context, page int) ([]Entry, error) {
	if page < 1 {
		page = 1
	}
	entries, err := s.Cache.Get(ctx, page)
	if err == nil {
		monitoring.FeedCacheHits.Inc()
		return entries, nil
	}
	if err != ErrCacheMiss {
		logrus.WithError(err).Warn("feed cache read failed, falling back to store")
	}
	monitoring.FeedCacheMisses.Inc()

	tweets, err := s.Store.ListTweetsPage(ctx, (page-1)*storage.PageSize, storage.PageSize)
	if err != nil {
		return nil, err
	}
	entries = s.populate(ctx, tweets)
	if err := s.Cache.Put(ctx, page, entries); err != nil {
		logrus.WithError(err).Warn("feed cache write failed")
	}
	return entries, nil
}

// OnTweetCreated drops page 1 so the next read sees the new tweet immediately
// instead of waiting out the TTL. Deeper pages shift by at most one slot and
// are left to expire.
func (s *Service) OnTweetCreated(ctx context.Context, _ *tweet.Tweet) {
	if err := s.Cache.Invalidate(ctx, 1); err != nil {
		logrus.WithError(err).Warn("feed cache invalidation failed")
	}
}

func (s *Service) OnTweetDeleted(ctx context.Context, _ string) {
	if err := s.Cache.Invalidate(ctx, 1); err != nil {
		logrus.WithError(err).Warn("feed cache invalidation failed")
	}
}

func (s *Service) populate(ctx context.Context, tweets []*tweet.Tweet) []Entry {
	entries := make([]Entry, 0, len(tweets))
	names := make(map[string]string)
	for _, t := range tweets {
		name, ok := names[t.AuthorId]
		if !ok {
			if u, err := s.Store.GetUser(ctx, t.AuthorId); err == nil {
				name = u.Username
			}
			names[t.AuthorId] = name
		}
		entries = append(entries, Entry{Tweet: *t, Author: name})
	}
	return entries
}
