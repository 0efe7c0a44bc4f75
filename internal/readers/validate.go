package readers

import (
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"

	"michibiblio-backend/internal/platform/apperr"
	"michibiblio-backend/internal/platform/textnorm"
)

var validate = validator.New()

// FromRequest は入力を正規化して Reader を組み立てる
func FromRequest(in CreateReaderRequest) *Reader {
	r := &Reader{
		Name:    textnorm.Clean(in.Name),
		Surname: textnorm.Clean(in.Surname),
		DNI:     normalizeDNI(in.DNI),
		Active:  true,
	}
	if in.Email != nil {
		r.Email = optional(strings.ToLower(strings.TrimSpace(*in.Email)))
	}
	if in.Phone != nil {
		r.Phone = optional(strings.TrimSpace(*in.Phone))
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	return r
}

// DNI は数字以外（ドット・空白）を除いて保存する
func normalizeDNI(s string) string {
	return strings.NewReplacer(".", "", " ", "", "-", "").Replace(strings.TrimSpace(s))
}

func optional(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Validate は Reader の違反を返す。prefix はフィールド名の前置き（例 "new_reader."）。
func Validate(r *Reader, prefix string) []apperr.Violation {
	var vs []apperr.Violation
	req := func(field, v string) {
		if v == "" {
			vs = append(vs, apperr.Violation{Field: prefix + field, Rule: "required", Message: field + " is required"})
		}
	}
	req("name", r.Name)
	req("surname", r.Surname)
	req("dni", r.DNI)

	if r.DNI != "" && (len(r.DNI) < 6 || len(r.DNI) > 20 || strings.Trim(r.DNI, "0123456789") != "") {
		vs = append(vs, apperr.Violation{Field: prefix + "dni", Rule: "invalid", Message: "dni must be 6 to 20 digits"})
	}
	if r.Email.Valid {
		if err := validate.Var(r.Email.String, "email"); err != nil {
			vs = append(vs, apperr.Violation{Field: prefix + "email", Rule: "invalid", Message: "email is not a valid address"})
		}
	}
	if r.Phone.Valid {
		if err := validate.Var(r.Phone.String, "min=6,max=30"); err != nil {
			vs = append(vs, apperr.Violation{Field: prefix + "phone", Rule: "invalid", Message: "phone must be 6 to 30 characters"})
		}
	}
	return vs
}

// ValidateContact: 貸出と同時登録する場合は email か phone のどちらかが必須
func ValidateContact(r *Reader, prefix string) []apperr.Violation {
	if !r.Email.Valid && !r.Phone.Valid {
		return []apperr.Violation{{Field: prefix + "contact", Rule: "contact_required", Message: "email or phone is required"}}
	}
	return nil
}
