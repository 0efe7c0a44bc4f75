package db

type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite3"
)

// ForUpdate は行ロック句を返す。SQLite は BEGIN IMMEDIATE でDB単位ロックを取るので空。
func (d Dialect) ForUpdate() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// goqu / goose の方言名と同じ
func (d Dialect) String() string { return string(d) }
