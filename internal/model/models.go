package model

import (
	"time"
)

// Project 表示一个项目。
//
// 项目由创建者拥有，包含成员、任务类型标签以及关联的团队。
// 项目与成员、团队是多对多关系，任务类型归属于单个项目。
type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"` // 项目唯一标识
	Name        string    `gorm:"type:varchar(191);not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // 创建时间（UTC）

	CreatedByID uint  `gorm:"not null" json:"created_by_id"` // 创建者 ID
	CreatedBy   *User `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	IconID      *uint `json:"icon_id,omitempty"` // 可选的图标文件 ID
	Icon        *File `gorm:"foreignKey:IconID" json:"icon,omitempty"`

	Users     []User     `gorm:"many2many:project_users" json:"users"`   // 项目成员
	TaskTypes []TaskType `gorm:"foreignKey:ProjectID" json:"task_types"` // 项目内的任务类型标签
	Teams     []Team     `gorm:"many2many:project_teams" json:"teams"`   // 关联的团队
}

// TaskType 是项目级别的任务类型标签。
//
// 每个项目创建时会固定生成三个: "in progress" / "to do" / "done"。
// 任务本身的 Status 是自由文本，不受这些标签约束。
type TaskType struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ProjectID uint   `gorm:"index" json:"project_id"`
	Name      string `gorm:"type:varchar(64);not null" json:"name"`
}

// 项目创建时固定生成的三个任务类型名称。
const (
	TaskTypeInProgress = "in progress"
	TaskTypeTodo       = "to do"
	TaskTypeDone       = "done"
)

// Task 表示一个任务。
//
// 任务归属于项目，记录创建者、可选的执行人、自由文本状态以及起止时间窗口。
// 未指定时间窗口时默认: 开始 = 当前时间，结束 = 当前时间 + 7 天。
type Task struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(191);not null" json:"title"`
	Description string    `json:"description"`
	Status      string    `gorm:"type:varchar(64)" json:"status"` // 自由文本状态
	StartedAt   time.Time `json:"started_at"`                     // 开始时间
	EndsAt      time.Time `json:"ends_at"`                        // 截止时间
	CreatedAt   time.Time `json:"created_at"`

	ProjectID      uint     `gorm:"not null;index" json:"project_id"` // 所属项目 ID
	Project        *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	CreatedByID    uint     `gorm:"not null" json:"created_by_id"` // 创建者 ID
	CreatedBy      *User    `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	AssignedUserID *uint    `json:"assigned_user_id,omitempty"` // 执行人 ID（可为空）
	AssignedUser   *User    `gorm:"foreignKey:AssignedUserID" json:"assigned_user,omitempty"`

	Tags []TaskTag `gorm:"many2many:task_taggings" json:"tags"` // 任务标签
}

// TaskTag 是任务的标签。
type TaskTag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(64);not null" json:"name"`
}

// Team 表示一个团队，由若干分组构成。
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`

	CreatedByID uint  `gorm:"not null" json:"created_by_id"` // 创建者 ID
	CreatedBy   *User `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`

	Groups []Group `gorm:"foreignKey:TeamID" json:"groups"` // 团队内的分组
}

// Group 是团队内带角色的成员分组。
//
// 团队创建时固定生成两个 employee 分组：一个按请求中的用户列表填充，另一个为空。
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    *uint     `gorm:"index" json:"team_id,omitempty"` // 所属团队 ID
	Role      string    `gorm:"type:varchar(16);default:employee" json:"role"`
	CreatedAt time.Time `json:"created_at"`

	OwnerID uint  `gorm:"not null" json:"owner_id"` // 分组负责人 ID
	Owner   *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	Users []User `gorm:"many2many:group_users" json:"users"` // 分组成员
}

// 分组角色枚举。
const (
	GroupRoleEmployee = "employee"
	GroupRoleManager  = "manager"
	GroupRoleAdmin    = "admin"
)

// ValidGroupRole 判断角色是否属于枚举集合。
func ValidGroupRole(role string) bool {
	switch role {
	case GroupRoleEmployee, GroupRoleManager, GroupRoleAdmin:
		return true
	}
	return false
}

// Comment 是任务下的评论。
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    uint      `gorm:"not null;index" json:"task_id"` // 所属任务 ID
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`

	AuthorID uint  `gorm:"not null" json:"author_id"` // 评论作者 ID
	Author   *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// File 表示已登记的文件元数据（如项目图标）。
//
// StorageKey 是服务端生成的 UUID，对应对象存储中的实际位置。
type File struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(191);not null" json:"name"`
	StorageKey  string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"storage_key"`
	ContentType string    `gorm:"type:varchar(128)" json:"content_type"`
	Size        int64     `json:"size"` // 字节数
	CreatedAt   time.Time `json:"created_at"`
}

// Notification 是通知的占位实体，当前没有任何投递逻辑。
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index" json:"user_id"` // 接收者 ID
	Message   string     `json:"message"`
	ReadAt    *time.Time `json:"read_at,omitempty"` // 已读时间，未读为空
	CreatedAt time.Time  `json:"created_at"`
}
