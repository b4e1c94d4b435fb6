// Package chat implements the channel, message and upload operations
// available to an authenticated realtime session.
package chat

import (
	"log"
	"time"

	"github.com/npezzotti/gosocial/internal/database"
	"github.com/npezzotti/gosocial/internal/docstore"
	"github.com/npezzotti/gosocial/internal/objstore"
	"github.com/npezzotti/gosocial/internal/rooms"
	"github.com/npezzotti/gosocial/internal/stats"
)

const (
	EventChannelJoined       = "channel:joined"
	EventChannelLeft         = "channel:left"
	EventChannelMarkedAsRead = "channel:marked_as_read"
	EventMessageCreated      = "message:created"
	EventMessageUpdated      = "message:updated"
	EventMessageDeleted      = "message:deleted"
	EventUploadInitialised   = "upload:initialised"
	EventUploadCompleted     = "upload:completed"
)

const (
	defaultMaxUploadSize   = 25 << 20
	defaultUploadURLExpiry = 5 * time.Minute
)

// Session is the caller of an operation: the resolved user and the
// connection the request arrived on.
type Session struct {
	UserId int
	Conn   rooms.Conn
}

func (s Session) authenticated() bool {
	return s.UserId > 0 && s.Conn != nil
}

type Options struct {
	DB      database.GoSocialRepository
	Docs    docstore.MessageStore
	Objects objstore.ObjectStore
	Rooms   rooms.Manager
	Stats   stats.StatsProvider
	Logger  *log.Logger

	MaxUploadSize   int64
	UploadURLExpiry time.Duration
}

type Service struct {
	db      database.GoSocialRepository
	docs    docstore.MessageStore
	objects objstore.ObjectStore
	rooms   rooms.Manager
	stats   stats.StatsProvider
	log     *log.Logger

	maxUploadSize   int64
	uploadURLExpiry time.Duration
	now             func() time.Time
}

func NewService(opts Options) *Service {
	s := &Service{
		db:              opts.DB,
		docs:            opts.Docs,
		objects:         opts.Objects,
		rooms:           opts.Rooms,
		stats:           opts.Stats,
		log:             opts.Logger,
		maxUploadSize:   opts.MaxUploadSize,
		uploadURLExpiry: opts.UploadURLExpiry,
		now:             time.Now,
	}

	if s.maxUploadSize <= 0 {
		s.maxUploadSize = defaultMaxUploadSize
	}
	if s.uploadURLExpiry <= 0 {
		s.uploadURLExpiry = defaultUploadURLExpiry
	}

	return s
}

func (s *Service) Rooms() rooms.Manager {
	return s.rooms
}
