package cursors

// Cursor is one session's live pointer on a board. There is exactly one
// row per (board, session) pair; the composite unique index enforces what
// the pulse's read-modify-write assumes. Rows are refreshed in place and
// age out of reads once updatedAt falls behind the staleness window.
type Cursor struct {
	ID             string `gorm:"column:id;primaryKey;size:190;not null"`
	BoardID        string `gorm:"column:board_id;size:190;not null;index:idx_cursors_board;uniqueIndex:idx_cursors_board_session,priority:1"`
	SessionID      string `gorm:"column:session_id;size:190;not null;uniqueIndex:idx_cursors_board_session,priority:2"`
	UserID         string `gorm:"column:user_id;size:190;not null"`
	Name           string `gorm:"column:name;size:320;not null"`
	Color          string `gorm:"column:color;size:32;not null"`
	X              int64  `gorm:"column:x;not null"`
	Y              int64  `gorm:"column:y;not null"`
	UpdatedAtMilli int64  `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Cursor) TableName() string {
	return "cursors"
}
