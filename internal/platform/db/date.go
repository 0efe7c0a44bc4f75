package db

import (
	"database/sql/driver"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// NullDate は DATE 列を civil.Date として読み書きする。
// MySQL(parseTime=true) は time.Time、SQLite は宣言型により time.Time か文字列で返ってくる。
type NullDate struct {
	Date  civil.Date
	Valid bool
}

func NewNullDate(d civil.Date) NullDate { return NullDate{Date: d, Valid: true} }

func (d *NullDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Date, d.Valid = civil.Date{}, false
		return nil
	case time.Time:
		d.Date, d.Valid = civil.DateOf(v), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("NullDate: unsupported type %T", src)
	}
}

func (d *NullDate) parse(s string) error {
	if len(s) > 10 {
		s = s[:10]
	}
	cd, err := civil.ParseDate(s)
	if err != nil {
		return fmt.Errorf("NullDate: %w", err)
	}
	d.Date, d.Valid = cd, true
	return nil
}

// 両ドライバとも "YYYY-MM-DD" 文字列を DATE として受け付ける
func (d NullDate) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Date.String(), nil
}

// Ptr は JSON 応答用
func (d NullDate) Ptr() *civil.Date {
	if !d.Valid {
		return nil
	}
	v := d.Date
	return &v
}
