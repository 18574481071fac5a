package models

import "tix/src/types"

type Organizer struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Enabled  bool   `gorm:"default:true" json:"enabled"`
	Verified bool   `json:"verified"`

	types.Timestamps
}
