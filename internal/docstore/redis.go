package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	messagePrefix = "msg:"
	channelPrefix = "channel_msgs:"

	maxInsertAttempts = 10
)

// RedisMessageStore stores each message as a JSON string and indexes it in a
// per-channel sorted set scored by creation time in unix microseconds.
// Creation times are unique within a channel, so a message's CreatedAt is
// an exact cursor for the page that follows it.
type RedisMessageStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisMessageStore(redisURL string) (*RedisMessageStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisMessageStoreWithClient(client), nil
}

func NewRedisMessageStoreWithClient(client *redis.Client) *RedisMessageStore {
	return &RedisMessageStore{client: client, now: time.Now}
}

func messageKey(id string) string {
	return messagePrefix + id
}

func channelKey(channelId string) string {
	return channelPrefix + channelId
}

func (s *RedisMessageStore) Insert(ctx context.Context, nm NewMessage) (Message, error) {
	msg := Message{
		Id:          uuid.NewString(),
		ChannelId:   nm.ChannelId,
		ChannelType: nm.ChannelType,
		AuthorId:    nm.AuthorId,
		Content:     nm.Content,
		Attachments: nm.Attachments,
		ReplyTo:     nm.ReplyTo,
	}
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}

	key := channelKey(msg.ChannelId)
	now := s.now().UTC().Truncate(time.Microsecond)

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			created, err := nextCreatedAt(ctx, tx, key, now)
			if err != nil {
				return err
			}
			msg.CreatedAt = created
			msg.UpdatedAt = created

			data, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("marshal message: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, messageKey(msg.Id), data, 0)
				pipe.ZAdd(ctx, key, redis.Z{
					Score:  float64(created.UnixMicro()),
					Member: msg.Id,
				})
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			// another insert into the channel won the race
			continue
		}
		if err != nil {
			return Message{}, fmt.Errorf("insert message: %w", err)
		}

		return msg, nil
	}

	return Message{}, fmt.Errorf("insert message: channel %s too busy", msg.ChannelId)
}

// nextCreatedAt returns now, or one microsecond past the channel's newest
// message when now would not sort after it.
func nextCreatedAt(ctx context.Context, tx *redis.Tx, key string, now time.Time) (time.Time, error) {
	newest, err := tx.ZRevRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("read channel index: %w", err)
	}

	if len(newest) == 1 {
		if last := int64(newest[0].Score); last >= now.UnixMicro() {
			return time.UnixMicro(last + 1).UTC(), nil
		}
	}

	return now, nil
}

func (s *RedisMessageStore) Get(ctx context.Context, id string) (Message, error) {
	data, err := s.client.Get(ctx, messageKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("get message: %w", err)
	}

	var msg Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal message: %w", err)
	}

	return msg, nil
}

func (s *RedisMessageStore) List(ctx context.Context, channelId string, before *time.Time, limit int) ([]Message, error) {
	maxScore := "+inf"
	if before != nil {
		maxScore = "(" + strconv.FormatInt(before.UnixMicro(), 10)
	}

	ids, err := s.client.ZRevRangeByScore(ctx, channelKey(channelId), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   maxScore,
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list message ids: %w", err)
	}

	messages := make([]Message, 0, len(ids))
	if len(ids) == 0 {
		return messages, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = messageKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	for _, v := range values {
		// index entries can outlive a concurrently deleted document
		data, ok := v.(string)
		if !ok {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Replace overwrites an existing message document. The channel index is left
// untouched so the message keeps its position.
func (s *RedisMessageStore) Replace(ctx context.Context, msg Message) (Message, error) {
	msg.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("marshal message: %w", err)
	}

	ok, err := s.client.SetXX(ctx, messageKey(msg.Id), data, 0).Result()
	if err != nil {
		return Message{}, fmt.Errorf("replace message: %w", err)
	}
	if !ok {
		return Message{}, ErrNotFound
	}

	return msg, nil
}

func (s *RedisMessageStore) Delete(ctx context.Context, id string) error {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, messageKey(id))
		pipe.ZRem(ctx, channelKey(msg.ChannelId), id)
		return nil
	}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

func (s *RedisMessageStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisMessageStore) Close() error {
	return s.client.Close()
}
