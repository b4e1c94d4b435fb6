package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/npezzotti/gosocial/internal/chat"
	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/types"
)

type CreatePostRequest struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
}

func toPost(p database.Post, attachments []database.AttachmentObject) types.Post {
	out := types.Post{
		Id:          p.Id,
		AuthorId:    p.AuthorId,
		ChannelId:   p.ChannelId,
		Content:     p.Content,
		Attachments: make([]types.Attachment, 0, len(attachments)),
		CreatedAt:   p.CreatedAt,
	}
	for _, ao := range attachments {
		out.Attachments = append(out.Attachments, chat.ToAttachment(ao))
	}
	return out
}

// createPost creates a post with its discussion channel. Attachments must be
// finished uploads owned by the author that are not attached elsewhere.
func (s *GoSocialApp) createPost(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	content, attachmentIds, err := chat.ValidateContent(req.Content, req.Attachments)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	post, err := s.db.CreatePost(r.Context(), database.CreatePostParams{
		AuthorId:      userId,
		Content:       content,
		AttachmentIds: attachmentIds,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// one of the attachments could not be linked
			s.writeError(w, NewBadRequestError())
			return
		}
		s.storeError(w, "create post", err)
		return
	}

	attachments, err := s.db.GetPostAttachments(r.Context(), post.Id)
	if err != nil {
		s.storeError(w, "get post attachments", err)
		return
	}

	s.writeJson(w, http.StatusCreated, toPost(post, attachments))
}

func (s *GoSocialApp) getPost(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	postId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	post, err := s.db.GetPost(r.Context(), postId)
	if err != nil {
		s.storeError(w, "get post", err)
		return
	}

	attachments, err := s.db.GetPostAttachments(r.Context(), post.Id)
	if err != nil {
		s.storeError(w, "get post attachments", err)
		return
	}

	s.writeJson(w, http.StatusOK, toPost(post, attachments))
}
