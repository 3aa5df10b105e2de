package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"klasquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches a list's questions from the backing store.
type QuestionLoader interface {
	QuestionsByList(ctx context.Context, lijstID int64) ([]domain.Question, error)
}

// AnswerCache keeps question-list answer keys in Redis and falls back to
// a loader on cache miss. Keys are stored as:
//
//	HSET lijst:{lijstID}:answers {vraagID} {antwoord}
type AnswerCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewAnswerCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *AnswerCache {
	return &AnswerCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CorrectAnswer returns the correct answer for a question of the list,
// filling the Redis hash from the loader on a miss.
func (c *AnswerCache) CorrectAnswer(ctx context.Context, lijstID, vraagID int64) (string, bool, error) {
	key := c.answersKey(lijstID)
	field := strconv.FormatInt(vraagID, 10)

	answers, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(answers) > 0 {
		answer, known := answers[field]
		return answer, known, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the hash.
		answers, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(answers) > 0 {
			return answers, nil
		}

		vragen, err := c.loader.QuestionsByList(ctx, lijstID)
		if err != nil {
			return nil, err
		}

		filled := make(map[string]string, len(vragen))
		pipe := c.client.Pipeline()
		for _, q := range vragen {
			f := strconv.FormatInt(q.ID, 10)
			filled[f] = q.Antwoord
			pipe.HSet(ctx, key, f, q.Antwoord)
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)
		return filled, nil
	})
	if err != nil {
		return "", false, err
	}
	answers = result.(map[string]string)
	answer, known := answers[field]
	return answer, known, nil
}

// Invalidate deletes the Redis hash of a list so the next submission
// refills it from the store.
func (c *AnswerCache) Invalidate(ctx context.Context, lijstID int64) error {
	return c.client.Del(ctx, c.answersKey(lijstID)).Err()
}

func (c *AnswerCache) answersKey(lijstID int64) string {
	return "lijst:" + strconv.FormatInt(lijstID, 10) + ":answers"
}

func (c *AnswerCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
