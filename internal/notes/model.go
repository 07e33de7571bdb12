package notes

// Note is a positioned, resizable, colored text box owned by one board.
// Z orders painting only: the most recently touched note carries the
// largest value and renders on top.
type Note struct {
	ID             string  `gorm:"column:id;primaryKey;size:190;not null"`
	BoardID        string  `gorm:"column:board_id;size:190;not null;index:idx_notes_board"`
	X              float64 `gorm:"column:x;not null"`
	Y              float64 `gorm:"column:y;not null"`
	Width          float64 `gorm:"column:width;not null"`
	Height         float64 `gorm:"column:height;not null"`
	Text           string  `gorm:"column:text;type:text;not null"`
	Color          string  `gorm:"column:color;size:32;not null"`
	Z              int64   `gorm:"column:z;not null"`
	UpdatedAtMilli int64   `gorm:"column:updated_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}
