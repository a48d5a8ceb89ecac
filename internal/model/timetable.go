package model

import "time"

// DayTimetable 是一周内某一天的工作时段。
type DayTimetable struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(32);not null" json:"name"` // 星期名称
	Day       time.Weekday `gorm:"not null" json:"day"`                   // 星期几 (0 = Sunday)
	StartsAt  time.Time    `json:"starts_at"`                             // 时段开始
	EndsAt    time.Time    `json:"ends_at"`                               // 时段结束
	Type      string       `gorm:"type:varchar(16);default:work" json:"type"` // work / weekend
	CreatedAt time.Time    `json:"created_at"`
}

// 时段类型枚举。
const (
	DayTypeWork    = "work"
	DayTypeWeekend = "weekend"
)

// WorkVisit 将一次到访窗口关联到某个工作时段。
type WorkVisit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VisitedAt time.Time `json:"visited_at"` // 到访开始
	EndedAt   time.Time `json:"ended_at"`   // 到访结束
	CreatedAt time.Time `json:"created_at"`

	DayTimetableID uint          `gorm:"not null;index" json:"day_timetable_id"` // 关联的时段 ID
	DayTimetable   *DayTimetable `gorm:"foreignKey:DayTimetableID" json:"day_timetable,omitempty"`
}

// DefaultWeek 生成默认的一周时间表：周一到周日，每天 8 小时，周六周日标记为 weekend。
//
// 生成的数据不落库，调用方按需持久化。
func DefaultWeek(now time.Time) []DayTimetable {
	week := []time.Weekday{
		time.Monday,
		time.Tuesday,
		time.Wednesday,
		time.Thursday,
		time.Friday,
		time.Saturday,
		time.Sunday,
	}

	days := make([]DayTimetable, 0, len(week))
	for _, wd := range week {
		dayType := DayTypeWork
		if wd == time.Saturday || wd == time.Sunday {
			dayType = DayTypeWeekend
		}
		days = append(days, DayTimetable{
			Name:     wd.String(),
			Day:      wd,
			StartsAt: now,
			EndsAt:   now.Add(8 * time.Hour),
			Type:     dayType,
		})
	}
	return days
}
