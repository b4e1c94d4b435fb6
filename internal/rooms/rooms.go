// Package rooms tracks which live connections are subscribed to which named
// rooms and fans events out to them.
package rooms

import (
	"strconv"
	"time"
)

// Event is a server initiated frame delivered to every connection in a room.
type Event struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is a live connection that can be placed in rooms.
type Conn interface {
	Id() string
	UserId() int
	// Deliver queues the event for the connection and reports whether it
	// was accepted.
	Deliver(ev *Event) bool
	// Closed reports whether the connection has shut down. It must be true
	// before LeaveAll is called for the connection.
	Closed() bool
}

type Manager interface {
	// Join adds the connection to the room and reports whether it was not
	// already a member. Joins of a closed connection are ignored.
	Join(conn Conn, room string) bool
	// Leave removes the connection from the room and reports whether it was
	// a member.
	Leave(conn Conn, room string) bool
	LeaveAll(conn Conn)
	Broadcast(room, event string, payload any)
	// MembersOf returns the distinct user ids with a connection in the room.
	MembersOf(room string) []int
	RoomsOf(conn Conn) []string
}

func UserRoom(userId int) string {
	return "user:" + strconv.Itoa(userId)
}

func DMChannelRoom(channelId string) string {
	return "dm_channel:" + channelId
}

func ChannelRoom(channelId string) string {
	return "channel:" + channelId
}

// ForChannel returns the room of a channel of the given type.
func ForChannel(channelType, channelId string) string {
	if channelType == "dm" {
		return DMChannelRoom(channelId)
	}
	return ChannelRoom(channelId)
}
