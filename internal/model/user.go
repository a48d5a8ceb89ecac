package model

import "time"

// User 表示系统用户。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                                   // 用户 ID
	Email     string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"email"`    // 邮箱（唯一）
	FullName  string    `gorm:"type:varchar(191);uniqueIndex;not null" json:"full_name"` // 姓名（唯一）
	Password  string    `gorm:"not null" json:"-"`                                      // bcrypt 哈希
	Role      string    `gorm:"type:varchar(16);default:member" json:"role"`            // 角色: admin / member
	CreatedAt time.Time `json:"created_at"`                                             // 创建时间
}
