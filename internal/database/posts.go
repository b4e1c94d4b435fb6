package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const postColumns = "p.id, p.author_id, p.channel_id, p.content, p.created_at"

func scanPost(row scanner) (Post, error) {
	var p Post
	err := row.Scan(&p.Id, &p.AuthorId, &p.ChannelId, &p.Content, &p.CreatedAt)
	return p, err
}

// CreatePost creates the post together with its discussion channel, the
// author's membership and recent-post marker, and links the author's
// finished attachments to it.
func (db *PgGoSocialRepository) CreatePost(ctx context.Context, params CreatePostParams) (Post, error) {
	var post Post

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ch, err := createChannel(ctx, tx, ChannelTypePost, params.ChannelId)
		if err != nil {
			return err
		}

		if _, err := addChannelMember(ctx, tx, ch.Id, params.AuthorId); err != nil {
			return err
		}

		post, err = scanPost(tx.QueryRowContext(ctx,
			"INSERT INTO posts AS p (author_id, channel_id, content, created_at) VALUES ($1, $2, $3, $4) "+
				"RETURNING "+postColumns,
			params.AuthorId,
			ch.Id,
			params.Content,
			time.Now().UTC(),
		))
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}

		if len(params.AttachmentIds) > 0 {
			res, err := tx.ExecContext(ctx,
				"UPDATE attachments a SET post_id = $1 FROM storage_objects o "+
					"WHERE o.id = a.storage_object_id AND o.status = $2 "+
					"AND a.id::text = ANY($3) AND a.user_id = $4 AND a.post_id IS NULL AND a.message_id IS NULL",
				post.Id,
				StatusDone,
				pq.Array(params.AttachmentIds),
				params.AuthorId,
			)
			if err != nil {
				return fmt.Errorf("link post attachments: %w", err)
			}

			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if int(n) != len(params.AttachmentIds) {
				return ErrNotFound
			}
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO recent_posts (user_id, post_id, created_at) VALUES ($1, $2, $3) "+
				"ON CONFLICT (user_id, post_id) DO NOTHING",
			params.AuthorId,
			post.Id,
			post.CreatedAt,
		); err != nil {
			return fmt.Errorf("create recent post: %w", err)
		}

		return nil
	})

	return post, err
}

func (db *PgGoSocialRepository) GetPost(ctx context.Context, postId int) (Post, error) {
	return scanPost(db.conn.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts p WHERE p.id = $1 LIMIT 1",
		postId,
	))
}
