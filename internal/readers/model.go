package readers

import (
	"database/sql"
	"time"
)

// Reader は readers テーブルの1行
type Reader struct {
	ReaderID  int64
	Name      string
	Surname   string
	DNI       string
	Email     sql.NullString
	Phone     sql.NullString
	Active    bool
	CreatedAt time.Time
}

// Label: "Surname, Name (DNI)"
func (r *Reader) Label() string {
	return Label(r.Name, r.Surname, r.DNI)
}

func Label(name, surname, dni string) string {
	return surname + ", " + name + " (" + dni + ")"
}

type ReaderQuery struct {
	Q               string
	IncludeInactive bool
}
