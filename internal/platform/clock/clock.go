package clock

import (
	"time"

	"cloud.google.com/go/civil"
)

type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed はテスト用の固定時計
type Fixed struct{ T time.Time }

func (f Fixed) Now() time.Time { return f.T }

// On は指定日の正午(UTC)を返す固定時計
func On(d civil.Date) Fixed {
	return Fixed{T: d.In(time.UTC).Add(12 * time.Hour)}
}

// Today: loc における今日の日付
func Today(c Clock, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(c.Now().In(loc))
}
