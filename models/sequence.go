package models

// CodeSequence holds the last issued number for one generated column and
// prefix, keyed as "<table>.<column>:<prefix>".
type CodeSequence struct {
	Name      string `gorm:"primaryKey;size:128"`
	LastValue int64  `gorm:"not null;default:0"`
}
