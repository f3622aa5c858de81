package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/botfactory/chainbot/core/chain"
)

// RedisSessionStore keeps sessions as JSON values in Redis. A per-chain
// sorted set scored by last interaction backs the results listing, so the
// read path stays O(page) instead of scanning keys.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore wraps a connected client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionRedisKey(botID, userID int64) string {
	return fmt.Sprintf("chainbot:session:%d:%d", botID, userID)
}

func resultsRedisKey(botID, chainID int64) string {
	return fmt.Sprintf("chainbot:results:%d:%d", botID, chainID)
}

// Get returns the user's session or chain.ErrSessionNotFound.
func (r *RedisSessionStore) Get(ctx context.Context, botID, userID int64) (*chain.Session, error) {
	data, err := r.client.Get(ctx, sessionRedisKey(botID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, chain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: redis get session: %w", err)
	}

	var s chain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("storage: decode session for user %d: %w", userID, err)
	}
	return &s, nil
}

// GetOrCreate positions the session at the chain's entry step, keeping any
// previously collected answers.
func (r *RedisSessionStore) GetOrCreate(ctx context.Context, botID, userID, chainID, entryStepID int64) (*chain.Session, error) {
	s, err := r.Get(ctx, botID, userID)
	if errors.Is(err, chain.ErrSessionNotFound) {
		s = &chain.Session{BotID: botID, UserID: userID}
	} else if err != nil {
		return nil, err
	}

	s.ChainID = chainID
	s.Advance(entryStepID)
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save stores the session JSON. Sessions with recorded answers are also
// indexed on the chain's results set, scored by last interaction.
func (r *RedisSessionStore) Save(ctx context.Context, s *chain.Session) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("storage: encode session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionRedisKey(s.BotID, s.UserID), data, 0)
	if s.ChainID != 0 && len(s.Answers) > 0 {
		pipe.ZAdd(ctx, resultsRedisKey(s.BotID, s.ChainID), redis.Z{
			Score:  float64(s.UpdatedAt.UnixNano()),
			Member: strconv.FormatInt(s.UserID, 10),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: redis save session: %w", err)
	}
	return nil
}

// Record writes the answer onto the session and persists it.
func (r *RedisSessionStore) Record(ctx context.Context, s *chain.Session, stepName, answer string) error {
	s.RecordAnswer(stepName, answer)
	return r.Save(ctx, s)
}

// ListResults pages through the chain's results set, most recent first.
func (r *RedisSessionStore) ListResults(ctx context.Context, botID, chainID int64, page, perPage int) (*chain.ResultPage, error) {
	page, perPage = chain.NormalizePage(page, perPage)
	key := resultsRedisKey(botID, chainID)

	total, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: redis count results: %w", err)
	}

	start := int64((page - 1) * perPage)
	stop := start + int64(perPage) - 1
	members, err := r.client.ZRevRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: redis list results: %w", err)
	}

	items := make([]chain.Result, 0, len(members))
	for _, member := range members {
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		s, err := r.Get(ctx, botID, userID)
		if errors.Is(err, chain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, chain.Result{
			User:            s.User,
			Answers:         s.Answers,
			LastInteraction: s.UpdatedAt,
		})
	}

	return &chain.ResultPage{
		Items:      items,
		Total:      int(total),
		Page:       page,
		PerPage:    perPage,
		TotalPages: chain.PageCount(int(total), perPage),
	}, nil
}
