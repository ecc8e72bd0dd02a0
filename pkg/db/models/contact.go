package models

import "time"

// Contact is the persisted row of the contacts table. Timestamps are written
// explicitly by the store clock, never by gorm hooks.
type Contact struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string    `gorm:"column:name;not null"`
	Phone         string    `gorm:"column:phone;not null;uniqueIndex:contacts_phone_key"`
	Email         string    `gorm:"column:email;not null;default:''"`
	SocialAccount string    `gorm:"column:social_account;not null;default:''"`
	Address       string    `gorm:"column:address;not null;default:''"`
	Favorite      bool      `gorm:"column:favorite;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime:false;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime:false;not null"`
}

// TableName pins the table name used by migrations.
func (Contact) TableName() string {
	return "contacts"
}
