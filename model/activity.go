package model

// ActivityEntry records one acquisition attempt.
type ActivityEntry struct {
	ID        uint   `json:"-" gorm:"primaryKey;autoIncrement"`
	Timestamp int64  `json:"timestamp" gorm:"index;not null"`
	Date      string `json:"date" gorm:"type:varchar(32)"`
	URL       string `json:"url" gorm:"type:varchar(2048)"`
	Filename  string `json:"filename" gorm:"type:varchar(512)"`
	Filesize  int64  `json:"filesize"`
	Status    string `json:"status" gorm:"type:varchar(32)"`
}

// TableName 指定表名
func (ActivityEntry) TableName() string {
	return "activity_log"
}

const (
	ActivityStatusSuccess = "success"
	ActivityStatusFailed  = "failed"
)
