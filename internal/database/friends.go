package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const friendRequestColumns = "id, sender_id, receiver_id, created_at"

func scanFriendRequest(row scanner) (FriendRequest, error) {
	var fr FriendRequest
	err := row.Scan(&fr.Id, &fr.SenderId, &fr.ReceiverId, &fr.CreatedAt)
	return fr, err
}

func (db *PgGoSocialRepository) CreateFriendRequest(ctx context.Context, senderId, receiverId int) (FriendRequest, error) {
	return scanFriendRequest(db.conn.QueryRowContext(ctx,
		"INSERT INTO friend_requests (sender_id, receiver_id, created_at) VALUES ($1, $2, $3) "+
			"RETURNING "+friendRequestColumns,
		senderId,
		receiverId,
		time.Now().UTC(),
	))
}

// ListFriendRequests returns the pending requests sent or received by the user.
func (db *PgGoSocialRepository) ListFriendRequests(ctx context.Context, userId int) ([]FriendRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+friendRequestColumns+" FROM friend_requests "+
			"WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at DESC",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	requests := make([]FriendRequest, 0)
	for rows.Next() {
		fr, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		requests = append(requests, fr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return requests, nil
}

// DeleteFriendRequest removes a request the user sent or received.
func (db *PgGoSocialRepository) DeleteFriendRequest(ctx context.Context, requestId, userId int) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM friend_requests WHERE id = $1 AND (sender_id = $2 OR receiver_id = $2)",
		requestId,
		userId,
	)
	if err != nil {
		return err
	}

	return affectedOrNotFound(res)
}

// AcceptFriendRequest turns a pending request addressed to receiverId into a
// friendship. The mirrored friend rows, the shared dm channel and the removal
// of the request (and of any request in the opposite direction) commit
// together.
func (db *PgGoSocialRepository) AcceptFriendRequest(ctx context.Context, requestId, receiverId int) (Channel, error) {
	var ch Channel

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		fr, err := scanFriendRequest(tx.QueryRowContext(ctx,
			"SELECT "+friendRequestColumns+" FROM friend_requests "+
				"WHERE id = $1 AND receiver_id = $2 FOR UPDATE",
			requestId,
			receiverId,
		))
		if err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM friends WHERE user_id = $1 AND friend_id = $2)",
			fr.SenderId,
			fr.ReceiverId,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check friendship: %w", err)
		}

		if !exists {
			now := time.Now().UTC()
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO friends (user_id, friend_id, created_at) VALUES ($1, $2, $3), ($2, $1, $3) "+
					"ON CONFLICT (user_id, friend_id) DO NOTHING",
				fr.SenderId,
				fr.ReceiverId,
				now,
			); err != nil {
				return fmt.Errorf("create friends: %w", err)
			}
		}

		low, high := orderedPair(fr.SenderId, fr.ReceiverId)
		if ch, _, err = getOrCreateDMChannel(ctx, tx, low, high); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM friend_requests WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)",
			fr.SenderId,
			fr.ReceiverId,
		); err != nil {
			return fmt.Errorf("delete friend requests: %w", err)
		}

		return nil
	})

	return ch, err
}

func (db *PgGoSocialRepository) ListFriends(ctx context.Context, userId int) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT a.id, a.username, a.created_at, a.updated_at FROM friends f "+
			"JOIN accounts a ON a.id = f.friend_id WHERE f.user_id = $1 ORDER BY a.username",
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	friends := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Id, &u.Username, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		friends = append(friends, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return friends, nil
}

func (db *PgGoSocialRepository) AreFriends(ctx context.Context, userId, otherUserId int) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM friends WHERE user_id = $1 AND friend_id = $2)",
		userId,
		otherUserId,
	).Scan(&exists)

	return exists, err
}

// RemoveFriend deletes both rows of the friendship.
func (db *PgGoSocialRepository) RemoveFriend(ctx context.Context, userId, friendId int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM friends WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)",
			userId,
			friendId,
		)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if n != 2 {
			return errors.New("friendship rows out of sync")
		}

		return nil
	})
}
