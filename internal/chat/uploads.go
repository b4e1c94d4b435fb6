package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/objstore"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/npezzotti/gosocial/internal/stats"
)

const errUploadPending = "file already exists but is not ready, please try again later"

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/webm":      true,
	"audio/mpeg":      true,
	"audio/ogg":       true,
	"application/pdf": true,
	"text/plain":      true,
}

type InitUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Hash        string `json:"hash"`
}

type InitUploadResponse struct {
	Id           string     `json:"id"`
	Exists       bool       `json:"exists"`
	Url          string     `json:"url,omitempty"`
	AttachmentId string     `json:"attachment_id,omitempty"`
	UploadUrl    string     `json:"upload_url,omitempty"`
	StorageKey   string     `json:"storage_key,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type CompleteUploadRequest struct {
	Id   string `json:"id"`
	Hash string `json:"hash"`
}

type CompleteUploadResponse struct {
	Id           string `json:"id"`
	Url          string `json:"url"`
	AttachmentId string `json:"attachment_id,omitempty"`
}

type UploadInitialised struct {
	Id       string `json:"id"`
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	if len(name) > 255 {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = strings.ToValidUTF8(name[:255-len(ext)], "") + ext
	}

	return name
}

func (s *Service) validateInit(req InitUploadRequest) (InitUploadRequest, error) {
	if !hashPattern.MatchString(req.Hash) {
		return req, ErrValidation("hash must be a hex encoded sha-256 digest")
	}
	if req.Size <= 0 {
		return req, ErrValidation("size must be positive")
	}
	if req.Size > s.maxUploadSize {
		return req, ErrValidation(fmt.Sprintf("file too large (max %d bytes)", s.maxUploadSize))
	}

	mediaType, _, err := mime.ParseMediaType(req.ContentType)
	if err != nil || !allowedContentTypes[mediaType] {
		return req, ErrValidation("file type not allowed")
	}
	req.ContentType = mediaType

	if strings.TrimSpace(req.Filename) == "" {
		return req, ErrValidation("filename is required")
	}
	req.Filename = sanitizeFilename(req.Filename)

	return req, nil
}

// InitUpload registers a file by content hash. A finished file with the same
// hash is reused without a second upload; otherwise a pending object is
// created and a presigned PUT for its storage key is returned.
func (s *Service) InitUpload(ctx context.Context, sess Session, req InitUploadRequest) (InitUploadResponse, error) {
	if !sess.authenticated() {
		return InitUploadResponse{}, ErrUnauthorized()
	}

	req, err := s.validateInit(req)
	if err != nil {
		return InitUploadResponse{}, err
	}

	var resp InitUploadResponse
	existing, err := s.db.GetStorageObjectByHash(ctx, req.Hash)
	switch {
	case err == nil && existing.Done():
		resp, err = s.reuseObject(ctx, sess.UserId, existing, req.Filename)
	case err == nil:
		return InitUploadResponse{}, ErrConflict(errUploadPending)
	case errors.Is(err, database.ErrNotFound):
		resp, err = s.createObject(ctx, sess.UserId, req)
	default:
		return InitUploadResponse{}, ErrOperationFailed(err)
	}
	if err != nil {
		return InitUploadResponse{}, err
	}

	s.stats.Incr(stats.UploadsInitialised)
	s.rooms.Broadcast(rooms.UserRoom(sess.UserId), EventUploadInitialised, UploadInitialised{
		Id:       resp.Id,
		Filename: req.Filename,
		Hash:     req.Hash,
	})

	return resp, nil
}

func (s *Service) reuseObject(ctx context.Context, userId int, obj database.StorageObject, filename string) (InitUploadResponse, error) {
	att, err := s.db.CreateAttachment(ctx, database.CreateAttachmentParams{
		Id:              uuid.NewString(),
		StorageObjectId: obj.Id,
		UserId:          userId,
		Filename:        filename,
	})
	if err != nil {
		return InitUploadResponse{}, ErrOperationFailed(err)
	}

	resp := InitUploadResponse{
		Id:           obj.Id,
		Exists:       true,
		AttachmentId: att.Id,
	}
	if obj.Url != nil {
		resp.Url = *obj.Url
	}

	return resp, nil
}

func (s *Service) createObject(ctx context.Context, userId int, req InitUploadRequest) (InitUploadResponse, error) {
	id := uuid.NewString()
	key := id + strings.ToLower(filepath.Ext(req.Filename))

	obj, err := s.db.CreateStorageObject(ctx, database.CreateStorageObjectParams{
		Id:         id,
		Hash:       req.Hash,
		Filename:   req.Filename,
		MimeType:   req.ContentType,
		Size:       req.Size,
		StorageKey: key,
		UploaderId: userId,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return InitUploadResponse{}, ErrConflict(errUploadPending)
		}
		return InitUploadResponse{}, ErrOperationFailed(err)
	}

	expiresAt := s.now().UTC().Add(s.uploadURLExpiry)
	uploadUrl, err := s.objects.PresignPut(ctx, obj.StorageKey, s.uploadURLExpiry)
	if err != nil {
		comp := newCompensation(s.log)
		comp.add("delete storage object "+obj.Id, func(ctx context.Context) error {
			return s.db.DeleteStorageObject(ctx, obj.Id)
		})
		comp.run(ctx)
		return InitUploadResponse{}, ErrOperationFailed(err)
	}

	return InitUploadResponse{
		Id:         obj.Id,
		UploadUrl:  uploadUrl,
		StorageKey: obj.StorageKey,
		ExpiresAt:  &expiresAt,
	}, nil
}

// CompleteUpload verifies the uploaded bytes against the hash recorded at
// init and marks the object done. An object whose bytes do not match is
// removed from both stores.
func (s *Service) CompleteUpload(ctx context.Context, sess Session, req CompleteUploadRequest) (CompleteUploadResponse, error) {
	if !sess.authenticated() {
		return CompleteUploadResponse{}, ErrUnauthorized()
	}
	if req.Id == "" {
		return CompleteUploadResponse{}, ErrValidation("id is required")
	}
	if !hashPattern.MatchString(req.Hash) {
		return CompleteUploadResponse{}, ErrValidation("hash must be a hex encoded sha-256 digest")
	}

	obj, err := s.db.GetStorageObject(ctx, req.Id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return CompleteUploadResponse{}, ErrNotFound("file")
		}
		return CompleteUploadResponse{}, ErrOperationFailed(err)
	}

	if obj.UploaderId != sess.UserId {
		return CompleteUploadResponse{}, ErrUnauthorized()
	}
	if obj.Hash != req.Hash {
		return CompleteUploadResponse{}, ErrIntegrity("hash mismatch")
	}
	if obj.Done() {
		return completedResponse(obj, ""), nil
	}

	comp := newCompensation(s.log)
	comp.add("delete storage object "+obj.Id, func(ctx context.Context) error {
		return s.db.DeleteStorageObject(ctx, obj.Id)
	})
	comp.add("remove object "+obj.StorageKey, func(ctx context.Context) error {
		return s.objects.Remove(ctx, obj.StorageKey)
	})

	sum, n, err := hashObject(ctx, s.objects, obj.StorageKey, obj.Size)
	if err != nil {
		s.log.Printf("verify upload %s: %v", obj.Id, err)
		comp.run(ctx)
		s.stats.Incr(stats.UploadsRejected)
		return CompleteUploadResponse{}, ErrOperationFailed(err)
	}

	if n != obj.Size || sum != obj.Hash {
		s.log.Printf("upload %s rejected: stored %d bytes hashing to %s", obj.Id, n, sum)
		comp.run(ctx)
		s.stats.Incr(stats.UploadsRejected)
		return CompleteUploadResponse{}, ErrIntegrity("hash mismatch")
	}

	done, att, err := s.db.CompleteStorageObject(ctx, obj.Id, s.objects.PublicURL(obj.StorageKey), database.CreateAttachmentParams{
		Id:       uuid.NewString(),
		UserId:   sess.UserId,
		Filename: obj.Filename,
	})
	if errors.Is(err, database.ErrNotFound) {
		// completed by a concurrent call
		if current, getErr := s.db.GetStorageObject(ctx, obj.Id); getErr == nil && current.Done() {
			return completedResponse(current, ""), nil
		}
		return CompleteUploadResponse{}, ErrNotFound("file")
	}
	if err != nil {
		comp.run(ctx)
		s.stats.Incr(stats.UploadsRejected)
		return CompleteUploadResponse{}, ErrOperationFailed(err)
	}

	resp := completedResponse(done, att.Id)
	s.stats.Incr(stats.UploadsCompleted)
	s.rooms.Broadcast(rooms.UserRoom(sess.UserId), EventUploadCompleted, resp)

	return resp, nil
}

func completedResponse(obj database.StorageObject, attachmentId string) CompleteUploadResponse {
	resp := CompleteUploadResponse{Id: obj.Id, AttachmentId: attachmentId}
	if obj.Url != nil {
		resp.Url = *obj.Url
	}
	return resp
}

// hashObject streams the stored object through sha-256, reading at most one
// byte more than the expected size.
func hashObject(ctx context.Context, objects objstore.ObjectStore, key string, size int64) (string, int64, error) {
	rc, err := objects.Open(ctx, key)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	h := sha256.New()
	n, err := io.Copy(h, io.LimitReader(rc, size+1))
	if err != nil {
		return "", n, fmt.Errorf("read object: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}
