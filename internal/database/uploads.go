package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const storageObjectColumns = "o.id, o.hash, o.filename, o.mime_type, o.size, o.storage_key, o.status, o.url, o.uploader_id, o.created_at, o.updated_at"

const attachmentColumns = "a.id, a.storage_object_id, a.user_id, a.filename, a.message_id, a.post_id, a.created_at"

type scanner interface {
	Scan(...any) error
}

func storageObjectDest(o *StorageObject, url *sql.NullString) []any {
	return []any{&o.Id, &o.Hash, &o.Filename, &o.MimeType, &o.Size, &o.StorageKey, &o.Status, url, &o.UploaderId, &o.CreatedAt, &o.UpdatedAt}
}

func scanStorageObject(row scanner) (StorageObject, error) {
	var (
		o   StorageObject
		url sql.NullString
	)
	err := row.Scan(storageObjectDest(&o, &url)...)
	o.Url = nullStringPtr(url)
	return o, err
}

func attachmentDest(a *Attachment, messageId *sql.NullString, postId *sql.NullInt64) []any {
	return []any{&a.Id, &a.StorageObjectId, &a.UserId, &a.Filename, messageId, postId, &a.CreatedAt}
}

func scanAttachment(row scanner) (Attachment, error) {
	var (
		a         Attachment
		messageId sql.NullString
		postId    sql.NullInt64
	)
	err := row.Scan(attachmentDest(&a, &messageId, &postId)...)
	a.MessageId = nullStringPtr(messageId)
	a.PostId = nullIntPtr(postId)
	return a, err
}

func (db *PgGoSocialRepository) GetStorageObject(ctx context.Context, id string) (StorageObject, error) {
	return scanStorageObject(db.conn.QueryRowContext(ctx,
		"SELECT "+storageObjectColumns+" FROM storage_objects o WHERE o.id::text = $1 LIMIT 1",
		id,
	))
}

func (db *PgGoSocialRepository) GetStorageObjectByHash(ctx context.Context, hash string) (StorageObject, error) {
	return scanStorageObject(db.conn.QueryRowContext(ctx,
		"SELECT "+storageObjectColumns+" FROM storage_objects o WHERE o.hash = $1 LIMIT 1",
		hash,
	))
}

// CreateStorageObject inserts a pending object. A concurrent insert of the
// same hash fails with a unique violation.
func (db *PgGoSocialRepository) CreateStorageObject(ctx context.Context, params CreateStorageObjectParams) (StorageObject, error) {
	now := time.Now().UTC()
	return scanStorageObject(db.conn.QueryRowContext(ctx,
		"INSERT INTO storage_objects AS o (id, hash, filename, mime_type, size, storage_key, status, uploader_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING "+storageObjectColumns,
		params.Id,
		params.Hash,
		params.Filename,
		params.MimeType,
		params.Size,
		params.StorageKey,
		StatusPending,
		params.UploaderId,
		now,
		now,
	))
}

// CompleteStorageObject transitions a pending object to done and records the
// uploader's attachment in the same transaction.
func (db *PgGoSocialRepository) CompleteStorageObject(ctx context.Context, id, url string, params CreateAttachmentParams) (StorageObject, Attachment, error) {
	var (
		obj StorageObject
		att Attachment
	)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		obj, err = scanStorageObject(tx.QueryRowContext(ctx,
			"UPDATE storage_objects AS o SET status = $2, url = $3, updated_at = $4 "+
				"WHERE o.id::text = $1 AND o.status = $5 RETURNING "+storageObjectColumns,
			id,
			StatusDone,
			url,
			time.Now().UTC(),
			StatusPending,
		))
		if err != nil {
			return fmt.Errorf("complete storage object: %w", err)
		}

		params.StorageObjectId = obj.Id
		att, err = createAttachment(ctx, tx, params)
		return err
	})

	return obj, att, err
}

func (db *PgGoSocialRepository) DeleteStorageObject(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM storage_objects WHERE id::text = $1", id)
	if err != nil {
		return err
	}

	return affectedOrNotFound(res)
}

func createAttachment(ctx context.Context, q querier, params CreateAttachmentParams) (Attachment, error) {
	att, err := scanAttachment(q.QueryRowContext(ctx,
		"INSERT INTO attachments AS a (id, storage_object_id, user_id, filename, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING "+attachmentColumns,
		params.Id,
		params.StorageObjectId,
		params.UserId,
		params.Filename,
		time.Now().UTC(),
	))
	if err != nil {
		return Attachment{}, fmt.Errorf("create attachment: %w", err)
	}

	return att, nil
}

func (db *PgGoSocialRepository) CreateAttachment(ctx context.Context, params CreateAttachmentParams) (Attachment, error) {
	return createAttachment(ctx, db.conn, params)
}

// GetAttachments loads the attachments with the given ids together with
// their storage objects. Unknown ids are omitted from the result.
func (db *PgGoSocialRepository) GetAttachments(ctx context.Context, attachmentIds []string) ([]AttachmentObject, error) {
	if len(attachmentIds) == 0 {
		return []AttachmentObject{}, nil
	}

	return db.queryAttachments(ctx,
		"SELECT "+attachmentColumns+", "+storageObjectColumns+" FROM attachments a "+
			"JOIN storage_objects o ON o.id = a.storage_object_id "+
			"WHERE a.id::text = ANY($1) ORDER BY a.created_at ASC",
		pq.Array(attachmentIds),
	)
}

func (db *PgGoSocialRepository) GetPostAttachments(ctx context.Context, postId int) ([]AttachmentObject, error) {
	return db.queryAttachments(ctx,
		"SELECT "+attachmentColumns+", "+storageObjectColumns+" FROM attachments a "+
			"JOIN storage_objects o ON o.id = a.storage_object_id "+
			"WHERE a.post_id = $1 ORDER BY a.created_at ASC",
		postId,
	)
}

func (db *PgGoSocialRepository) queryAttachments(ctx context.Context, query string, args ...any) ([]AttachmentObject, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get attachments: %w", err)
	}
	defer rows.Close()

	attachments := make([]AttachmentObject, 0)
	for rows.Next() {
		var (
			ao        AttachmentObject
			messageId sql.NullString
			postId    sql.NullInt64
			url       sql.NullString
		)

		dest := append(attachmentDest(&ao.Attachment, &messageId, &postId), storageObjectDest(&ao.Object, &url)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		ao.MessageId = nullStringPtr(messageId)
		ao.PostId = nullIntPtr(postId)
		ao.Object.Url = nullStringPtr(url)
		attachments = append(attachments, ao)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return attachments, nil
}

// LinkMessageAttachments makes attachmentIds the exact set of attachments
// of the message. Rows no longer listed are released. Each listed row must
// be a finished upload of userId that is free or already on this message,
// otherwise nothing changes and ErrNotFound is returned.
func (db *PgGoSocialRepository) LinkMessageAttachments(ctx context.Context, messageId string, userId int, attachmentIds []string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE attachments SET message_id = NULL WHERE message_id = $1 AND NOT (id::text = ANY($2))",
			messageId,
			pq.Array(attachmentIds),
		); err != nil {
			return fmt.Errorf("unlink message attachments: %w", err)
		}

		if len(attachmentIds) == 0 {
			return nil
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE attachments a SET message_id = $1 FROM storage_objects o "+
				"WHERE o.id = a.storage_object_id AND o.status = $2 "+
				"AND a.id::text = ANY($3) AND a.user_id = $4 AND a.post_id IS NULL "+
				"AND (a.message_id IS NULL OR a.message_id = $1)",
			messageId,
			StatusDone,
			pq.Array(attachmentIds),
			userId,
		)
		if err != nil {
			return fmt.Errorf("link message attachments: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(n) != len(attachmentIds) {
			// claimed by a concurrent message or post
			return ErrNotFound
		}

		return nil
	})
}
