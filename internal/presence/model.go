package presence

// Session records one client session's membership in a presence room. A
// session is online while its heartbeat deadline lies in the future and it
// has not explicitly disconnected; a lapsed heartbeat flips it offline
// without any write.
type Session struct {
	ID                    string `gorm:"column:id;primaryKey;size:190;not null"`
	RoomID                string `gorm:"column:room_id;size:190;not null;index:idx_presence_room;uniqueIndex:idx_presence_room_session,priority:1"`
	SessionID             string `gorm:"column:session_id;size:190;not null;uniqueIndex:idx_presence_room_session,priority:2"`
	UserID                string `gorm:"column:user_id;size:190;not null"`
	IntervalMillis        int64  `gorm:"column:interval_ms;not null"`
	LastHeartbeatMilli    int64  `gorm:"column:last_heartbeat_ms;not null"`
	Disconnected          bool   `gorm:"column:disconnected;not null;default:false"`
	LastDisconnectedMilli int64  `gorm:"column:last_disconnected_ms;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (Session) TableName() string {
	return "presence_sessions"
}

// RosterEntry is one user's aggregated presence in a room. A user is
// online while at least one of their sessions is.
type RosterEntry struct {
	UserID                string `json:"userId"`
	Online                bool   `json:"online"`
	LastDisconnectedMilli int64  `json:"lastDisconnected"`
}
