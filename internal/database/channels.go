package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/teris-io/shortid"
)

const channelColumns = "c.id, c.type, c.created_at, c.updated_at"

func scanChannel(row scanner) (Channel, error) {
	var ch Channel
	err := row.Scan(&ch.Id, &ch.Type, &ch.CreatedAt, &ch.UpdatedAt)
	return ch, err
}

func (db *PgGoSocialRepository) GetChannel(ctx context.Context, channelId string) (Channel, error) {
	return scanChannel(db.conn.QueryRowContext(ctx,
		"SELECT "+channelColumns+" FROM channels c WHERE c.id = $1 LIMIT 1",
		channelId,
	))
}

// ListChannels returns the user's channels of the given type, most recently
// active first.
func (db *PgGoSocialRepository) ListChannels(ctx context.Context, userId int, channelType string, limit int) ([]ChannelSummary, error) {
	query := `
		SELECT
				c.id,
				c.type,
				c.created_at,
				c.updated_at,
				m.unread_count,
				m.last_read_at,
				o.id,
				o.username,
				p.id
		FROM channel_members m
		JOIN channels c ON c.id = m.channel_id
		LEFT JOIN channel_members om ON c.type = 'dm' AND om.channel_id = c.id AND om.user_id <> m.user_id
		LEFT JOIN accounts o ON o.id = om.user_id
		LEFT JOIN posts p ON p.channel_id = c.id
		WHERE m.user_id = $1 AND c.type = $2
		ORDER BY c.updated_at DESC
		LIMIT $3;
`

	rows, err := db.conn.QueryContext(ctx, query, userId, channelType, limit)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]ChannelSummary, 0)
	for rows.Next() {
		var (
			cs         ChannelSummary
			lastReadAt sql.NullTime
			otherId    sql.NullInt64
			otherName  sql.NullString
			postId     sql.NullInt64
		)

		if err := rows.Scan(
			&cs.Id,
			&cs.Type,
			&cs.CreatedAt,
			&cs.UpdatedAt,
			&cs.UnreadCount,
			&lastReadAt,
			&otherId,
			&otherName,
			&postId,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		cs.LastReadAt = nullTimePtr(lastReadAt)
		cs.PostId = nullIntPtr(postId)
		if otherId.Valid {
			cs.OtherUser = &User{Id: int(otherId.Int64), Username: otherName.String}
		}

		channels = append(channels, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return channels, nil
}

// GetOrCreateDMChannel returns the dm channel shared by both users, creating
// it when none exists. The boolean reports whether a channel was created.
func (db *PgGoSocialRepository) GetOrCreateDMChannel(ctx context.Context, userId, otherUserId int) (Channel, bool, error) {
	low, high := orderedPair(userId, otherUserId)

	var (
		ch      Channel
		created bool
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		ch, created, err = getOrCreateDMChannel(ctx, tx, low, high)
		return err
	})
	if err != nil && IsUniqueViolation(err) {
		// the other participant created the pair first
		ch, err = getDMChannelByPair(ctx, db.conn, low, high)
		return ch, false, err
	}

	return ch, created, err
}

func orderedPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func getDMChannelByPair(ctx context.Context, q querier, low, high int) (Channel, error) {
	return scanChannel(q.QueryRowContext(ctx,
		"SELECT "+channelColumns+" FROM dm_pairs p JOIN channels c ON c.id = p.channel_id "+
			"WHERE p.user_low = $1 AND p.user_high = $2 LIMIT 1",
		low,
		high,
	))
}

func getOrCreateDMChannel(ctx context.Context, q querier, low, high int) (Channel, bool, error) {
	ch, err := getDMChannelByPair(ctx, q, low, high)
	if err == nil {
		return ch, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Channel{}, false, fmt.Errorf("get dm channel: %w", err)
	}

	ch, err = createChannel(ctx, q, ChannelTypeDM, "")
	if err != nil {
		return Channel{}, false, err
	}

	for _, userId := range []int{low, high} {
		if _, err := addChannelMember(ctx, q, ch.Id, userId); err != nil {
			return Channel{}, false, err
		}
	}

	if _, err := q.ExecContext(ctx,
		"INSERT INTO dm_pairs (user_low, user_high, channel_id) VALUES ($1, $2, $3)",
		low,
		high,
		ch.Id,
	); err != nil {
		return Channel{}, false, fmt.Errorf("create dm pair: %w", err)
	}

	return ch, true, nil
}

func createChannel(ctx context.Context, q querier, channelType, id string) (Channel, error) {
	if id == "" {
		var err error
		if id, err = shortid.Generate(); err != nil {
			return Channel{}, fmt.Errorf("generate channel id: %w", err)
		}
	}

	now := time.Now().UTC()
	ch, err := scanChannel(q.QueryRowContext(ctx,
		"INSERT INTO channels AS c (id, type, created_at, updated_at) VALUES ($1, $2, $3, $4) "+
			"RETURNING "+channelColumns,
		id,
		channelType,
		now,
		now,
	))
	if err != nil {
		return Channel{}, fmt.Errorf("create channel: %w", err)
	}

	return ch, nil
}

func addChannelMember(ctx context.Context, q querier, channelId string, userId int) (bool, error) {
	res, err := q.ExecContext(ctx,
		"INSERT INTO channel_members (channel_id, user_id, unread_count, created_at) VALUES ($1, $2, 0, $3) "+
			"ON CONFLICT (channel_id, user_id) DO NOTHING",
		channelId,
		userId,
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("add channel member: %w", err)
	}

	n, err := res.RowsAffected()
	return n == 1, err
}

func (db *PgGoSocialRepository) GetChannelMember(ctx context.Context, channelId string, userId int) (ChannelMember, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT channel_id, user_id, last_read_at, unread_count, created_at FROM channel_members "+
			"WHERE channel_id = $1 AND user_id = $2 LIMIT 1",
		channelId,
		userId,
	)

	return scanChannelMember(row)
}

func scanChannelMember(row *sql.Row) (ChannelMember, error) {
	var (
		m          ChannelMember
		lastReadAt sql.NullTime
	)
	err := row.Scan(&m.ChannelId, &m.UserId, &lastReadAt, &m.UnreadCount, &m.CreatedAt)
	m.LastReadAt = nullTimePtr(lastReadAt)
	return m, err
}

// AddChannelMember inserts the membership if absent and reports whether a
// row was added.
func (db *PgGoSocialRepository) AddChannelMember(ctx context.Context, channelId string, userId int) (bool, error) {
	return addChannelMember(ctx, db.conn, channelId, userId)
}

// CreateRecentPostMarker records that the user has joined the post owning the
// channel. It reports false when the marker already exists.
func (db *PgGoSocialRepository) CreateRecentPostMarker(ctx context.Context, channelId string, userId int) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO recent_posts (user_id, post_id, created_at) "+
			"SELECT $1, p.id, $3 FROM posts p WHERE p.channel_id = $2 "+
			"ON CONFLICT (user_id, post_id) DO NOTHING",
		userId,
		channelId,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n == 1, err
}

func (db *PgGoSocialRepository) MarkChannelRead(ctx context.Context, channelId string, userId int, at time.Time) (ChannelMember, error) {
	row := db.conn.QueryRowContext(ctx,
		"UPDATE channel_members SET last_read_at = $3, unread_count = 0 "+
			"WHERE channel_id = $1 AND user_id = $2 "+
			"RETURNING channel_id, user_id, last_read_at, unread_count, created_at",
		channelId,
		userId,
		at,
	)

	return scanChannelMember(row)
}

// IncrementUnread adds one unread message for every member of the channel
// not listed in excludeUserIds.
func (db *PgGoSocialRepository) IncrementUnread(ctx context.Context, channelId string, excludeUserIds []int) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE channel_members SET unread_count = unread_count + 1 "+
			"WHERE channel_id = $1 AND NOT (user_id = ANY($2))",
		channelId,
		pq.Array(int64s(excludeUserIds)),
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgGoSocialRepository) TouchChannel(ctx context.Context, channelId string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, "UPDATE channels SET updated_at = $2 WHERE id = $1", channelId, at)
	return err
}
