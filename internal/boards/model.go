package boards

// Board is a named collaborative canvas addressed by its normalized slug.
// The unique index backs the ensure flow against two clients racing to
// create the same slug.
type Board struct {
	ID             string `gorm:"column:id;primaryKey;size:190;not null"`
	Slug           string `gorm:"column:slug;size:190;not null;uniqueIndex:idx_boards_slug"`
	Name           string `gorm:"column:name;size:320;not null"`
	CreatedAtMilli int64  `gorm:"column:created_at_ms;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Board) TableName() string {
	return "boards"
}
