package apperr

import (
	"errors"

	mysql "github.com/go-sql-driver/mysql"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// FromDB はドライバエラーを分類する。what は対象リソース名（メッセージ用）。
// 分類できないものはそのまま返す（500 扱い）。
func FromDB(err error, what string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}

	if IsDuplicate(err) {
		return Conflict(what + " already exists")
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1451: // row is referenced
			return Referenced(what + " is still referenced")
		case 1452: // foreign key constraint fails
			return Invalid("referenced row for " + what + " does not exist")
		case 1213, 1205: // deadlock, lock wait timeout
			return Concurrency("concurrent update on " + what + ", retry")
		case 3819: // check constraint violated
			return Invalid(what + " violates a check constraint")
		}
		return err
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return Referenced(what + " violates a foreign key")
		case sqlite3.ErrConstraintCheck:
			return Invalid(what + " violates a check constraint")
		}
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return Concurrency("concurrent update on " + what + ", retry")
		}
	}
	return err
}

// IsDuplicate: 一意制約違反か
func IsDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
