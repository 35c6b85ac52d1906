package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 会員。認証（トークン発行）は外部サービスが担うので、ここでは参照用の情報だけを持つ。
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Email     string `gorm:"uniqueIndex;not null"`
	FullName  string `gorm:"type:varchar(255)"`
	Phone     string `gorm:"type:varchar(30)"`
	Role      Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
