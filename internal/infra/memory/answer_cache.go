package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"klasquiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches a list's questions from the backing store.
type QuestionLoader interface {
	QuestionsByList(ctx context.Context, lijstID int64) ([]domain.Question, error)
}

// AnswerCache caches the answer key of a question list with TTL so the
// submit hot path does not hit the store for every answer.
type AnswerCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedKey
}

type cachedKey struct {
	answers   map[int64]string
	expiresAt time.Time
}

func NewAnswerCache(loader QuestionLoader, ttl time.Duration) *AnswerCache {
	return &AnswerCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedKey),
	}
}

// CorrectAnswer returns the stored correct answer for a question of the
// list, loading and caching the whole list on a miss.
func (c *AnswerCache) CorrectAnswer(ctx context.Context, lijstID, vraagID int64) (string, bool, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[lijstID]; ok && entry.expiresAt.After(now) {
		answer, known := entry.answers[vraagID]
		c.mu.RUnlock()
		return answer, known, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(strconv.FormatInt(lijstID, 10), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[lijstID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.answers, nil
		}
		c.mu.RUnlock()

		vragen, err := c.loader.QuestionsByList(ctx, lijstID)
		if err != nil {
			return nil, err
		}
		answers := make(map[int64]string, len(vragen))
		for _, q := range vragen {
			answers[q.ID] = q.Antwoord
		}

		c.mu.Lock()
		c.cache[lijstID] = cachedKey{answers: answers, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return answers, nil
	})
	if err != nil {
		return "", false, err
	}
	answers := result.(map[int64]string)
	answer, known := answers[vraagID]
	return answer, known, nil
}

// Invalidate drops the cached answer key of a list.
func (c *AnswerCache) Invalidate(_ context.Context, lijstID int64) error {
	c.mu.Lock()
	delete(c.cache, lijstID)
	c.mu.Unlock()
	return nil
}

func (c *AnswerCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
