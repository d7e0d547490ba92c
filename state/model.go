package state

import (
	"gorm.io/gorm"
)

// Revision is one applied document.
type Revision struct {
	gorm.Model
	Generation uint64 `gorm:"index" json:"generation"`
	Digest     string `gorm:"size:64;index" json:"digest"`
	Document   string `json:"document,omitempty"`
}
