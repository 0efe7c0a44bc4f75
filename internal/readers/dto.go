package readers

import "time"

type CreateReaderRequest struct {
	Name    string  `json:"name"`
	Surname string  `json:"surname"`
	DNI     string  `json:"dni"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Active  *bool   `json:"active,omitempty"`
}

type UpdateReaderRequest struct {
	Name    *string `json:"name,omitempty"`
	Surname *string `json:"surname,omitempty"`
	DNI     *string `json:"dni,omitempty"`
	Email   *string `json:"email,omitempty"` // "" で削除
	Phone   *string `json:"phone,omitempty"` // "" で削除
	Active  *bool   `json:"active,omitempty"`
}

type ReaderResponse struct {
	ReaderID  int64     `json:"reader_id"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	DNI       string    `json:"dni"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

func toReaderResponse(r *Reader) ReaderResponse {
	resp := ReaderResponse{
		ReaderID:  r.ReaderID,
		Name:      r.Name,
		Surname:   r.Surname,
		DNI:       r.DNI,
		Active:    r.Active,
		Label:     r.Label(),
		CreatedAt: r.CreatedAt,
	}
	if r.Email.Valid {
		v := r.Email.String
		resp.Email = &v
	}
	if r.Phone.Valid {
		v := r.Phone.String
		resp.Phone = &v
	}
	return resp
}
