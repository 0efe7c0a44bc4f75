// Package seed はデモ用のカテゴリ・書籍・利用者・貸出を投入する。
// 貸出は全て loans.Service.ImportLoan を通すので在庫と検証ルールは本番と同じ。
package seed

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"michibiblio-backend/internal/catalog"
	"michibiblio-backend/internal/loans"
	"michibiblio-backend/internal/readers"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

const (
	seedActor      = "seed_user"
	seedComment    = "Préstamo generado para datos de prueba."
	maxLateReaders = 3
)

type Fixtures struct {
	Copies     int               `yaml:"copies"`
	DNIBase    int               `yaml:"dni_base"`
	Categories []CategoryFixture `yaml:"categories"`
	Readers    []ReaderFixture   `yaml:"readers"`
}

type CategoryFixture struct {
	Name  string        `yaml:"name"`
	Books []BookFixture `yaml:"books"`
}

type BookFixture struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
}

type ReaderFixture struct {
	Name    string `yaml:"name"`
	Surname string `yaml:"surname"`
}

// LoadFixtures: path が空なら埋め込みの fixtures.yaml
func LoadFixtures(path string) (*Fixtures, error) {
	raw := defaultFixtures
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read fixtures: %w", err)
		}
		raw = b
	}
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	if f.Copies <= 0 {
		f.Copies = 3
	}
	if f.DNIBase <= 0 {
		f.DNIBase = 20000000
	}
	// 特殊ケースに書籍3冊・利用者6人が必要
	n := 0
	for _, c := range f.Categories {
		n += len(c.Books)
	}
	if n < 3 || len(f.Readers) < 6 {
		return nil, fmt.Errorf("fixtures need at least 3 books and 6 readers (got %d, %d)", n, len(f.Readers))
	}
	return &f, nil
}

type Result struct {
	Categories int                 `json:"categories"`
	Books      int                 `json:"books"`
	Readers    int                 `json:"readers"`
	Loans      int                 `json:"loans"`
	ByState    map[loans.State]int `json:"by_state"`
}

type Seeder struct {
	conn    *sql.DB
	catalog *catalog.Service
	readers *readers.Service
	loans   *loans.Service
	rnd     *rand.Rand
}

func NewSeeder(conn *sql.DB, cs *catalog.Service, rs *readers.Service, ls *loans.Service, seed int64) *Seeder {
	return &Seeder{conn: conn, catalog: cs, readers: rs, loans: ls, rnd: rand.New(rand.NewSource(seed))}
}

// Wipe: 参照の逆順で全削除
func (s *Seeder) Wipe(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, t := range []string{"loans", "books", "readers", "categories"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return fmt.Errorf("wipe %s: %w", t, err)
		}
	}
	return tx.Commit()
}

type bookRef struct {
	id     int64
	total  int
	active int
}

// Run: 既存データを消してから投入する
func (s *Seeder) Run(ctx context.Context, f *Fixtures) (Result, error) {
	log := zerolog.Ctx(ctx)
	res := Result{ByState: map[loans.State]int{}}

	if err := s.Wipe(ctx); err != nil {
		return res, err
	}
	log.Info().Msg("previous library data wiped")

	// 1) カテゴリと書籍
	var books []*bookRef
	for _, cf := range f.Categories {
		c, err := s.catalog.CreateCategory(ctx, seedActor, catalog.CreateCategoryRequest{Name: cf.Name})
		if err != nil {
			return res, fmt.Errorf("category %q: %w", cf.Name, err)
		}
		res.Categories++
		for _, bf := range cf.Books {
			copies := f.Copies
			b, err := s.catalog.CreateBook(ctx, seedActor, catalog.CreateBookRequest{
				Title: bf.Title, Author: bf.Author, CategoryID: c.CategoryID, TotalCopies: &copies,
			})
			if err != nil {
				return res, fmt.Errorf("book %q: %w", bf.Title, err)
			}
			books = append(books, &bookRef{id: b.BookID, total: b.TotalCopies})
			res.Books++
		}
	}
	log.Info().Int("categories", res.Categories).Int("books", res.Books).Msg("catalog seeded")

	// 2) 利用者
	var rids []int64
	for i, rf := range f.Readers {
		r, err := s.readers.Create(ctx, seedActor, readers.CreateReaderRequest{
			Name: rf.Name, Surname: rf.Surname, DNI: strconv.Itoa(f.DNIBase + i),
		})
		if err != nil {
			return res, fmt.Errorf("reader %q: %w", rf.Name, err)
		}
		rids = append(rids, r.ReaderID)
		res.Readers++
	}

	today := s.loans.Today()
	late := map[int64]bool{}

	create := func(b *bookRef, readerID int64, st loans.State) error {
		in := s.loanDates(today, st)
		in.BookID, in.ReaderID, in.State, in.Comments = b.id, readerID, st, seedComment
		if _, err := s.loans.ImportLoan(ctx, seedActor, in); err != nil {
			return fmt.Errorf("loan book=%d reader=%d %s: %w", b.id, readerID, st, err)
		}
		if st.Active() {
			b.active++
		}
		if st == loans.StateLate {
			late[readerID] = true
		}
		res.Loans++
		res.ByState[st]++
		return nil
	}

	// 3) 特殊ケース
	// 3.1 貸出中2冊・残り1冊
	for _, r := range rids[0:2] {
		if err := create(books[0], r, loans.StateLent); err != nil {
			return res, err
		}
	}
	// 3.2 全冊貸出中
	for _, r := range rids[2:5] {
		if err := create(books[1], r, loans.StateLent); err != nil {
			return res, err
		}
	}
	// 3.3 LATE を持つ利用者（新規貸出不可）
	if err := create(books[2], rids[5], loans.StateLate); err != nil {
		return res, err
	}

	// 4) 残りの書籍に 0〜3 件ずつ
	for _, b := range books[3:] {
		n := s.rnd.Intn(4)
		for i := 0; i < n; i++ {
			st, reader := s.pick(b, rids, late)
			if err := create(b, reader, st); err != nil {
				return res, err
			}
		}
	}

	log.Info().Int("readers", res.Readers).Int("loans", res.Loans).Msg("demo data loaded")
	return res, nil
}

// pick: ランダムな状態を選び、ルールに反する場合は RETURNED に落とす
func (s *Seeder) pick(b *bookRef, rids []int64, late map[int64]bool) (loans.State, int64) {
	st := loans.States[s.rnd.Intn(len(loans.States))]

	if st == loans.StateLate && len(late) >= maxLateReaders {
		st = loans.StateReturned
	}
	if st.Active() && b.active >= b.total {
		st = loans.StateReturned
	}

	clean := make([]int64, 0, len(rids))
	for _, r := range rids {
		if !late[r] {
			clean = append(clean, r)
		}
	}

	switch st {
	case loans.StateLate:
		if len(clean) > 0 {
			return st, clean[s.rnd.Intn(len(clean))]
		}
		return st, rids[s.rnd.Intn(len(rids))]
	case loans.StateLent:
		if len(clean) == 0 {
			return loans.StateReturned, rids[s.rnd.Intn(len(rids))]
		}
		return st, clean[s.rnd.Intn(len(clean))]
	}
	return st, rids[s.rnd.Intn(len(rids))]
}

// loanDates: 状態に矛盾しない日付を作る
func (s *Seeder) loanDates(today civil.Date, st loans.State) loans.ImportLoanRequest {
	loanDate := today.AddDays(-(5 + s.rnd.Intn(86)))
	est := loanDate.AddDays(14)
	in := loans.ImportLoanRequest{}

	switch st {
	case loans.StateReturned:
		actual := est.AddDays(s.rnd.Intn(6))
		if actual.After(today) {
			actual = today
		}
		if actual.Before(loanDate) {
			actual = loanDate
		}
		in.ActualReturnDate = &actual
	case loans.StateLate:
		// 予定日は過去
		if !est.Before(today) {
			loanDate, est = today.AddDays(-30), today.AddDays(-7)
		}
	case loans.StateLent:
		// 予定日は未来
		if !est.After(today) {
			est = today.AddDays(3 + s.rnd.Intn(13))
		}
	}
	in.LoanDate, in.EstimatedReturnDate = loanDate, est
	return in
}
