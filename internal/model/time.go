package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 格式序列化时间。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Time(t).Format(timeFormat))), nil
}

// UnmarshalJSON 解析 MarshalJSON 写出的格式，历史记录从 Redis 读回时使用。
func (t *LocalTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = LocalTime(time.Time{})
		return nil
	}
	parsed, err := time.ParseInLocation(timeFormat, s, time.Local)
	if err != nil {
		return fmt.Errorf("invalid time %q: %w", s, err)
	}
	*t = LocalTime(parsed)
	return nil
}

// Value 让 gorm 以 DATETIME 写入。
func (t LocalTime) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan 让 gorm 从 DATETIME 读出。
func (t *LocalTime) Scan(v interface{}) error {
	switch val := v.(type) {
	case time.Time:
		*t = LocalTime(val)
		return nil
	case nil:
		*t = LocalTime(time.Time{})
		return nil
	default:
		return fmt.Errorf("cannot scan %T into LocalTime", v)
	}
}
