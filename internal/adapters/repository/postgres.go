package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/pkg/logger"
	"github.com/okian/redflag/pkg/metrics"
)

//go:embed schema.sql
var schema embed.FS

// PostgresStore is a Store backed by PostgreSQL. Vote application locks
// both elements' rating rows inside one transaction.
type PostgresStore struct {
	pool    *pgxpool.Pool
	migrate bool
	logger  logger.Logger
}

// OpenPostgres connects to dsn and optionally applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	s.pool = pool

	if s.migrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	b, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, string(b)); err != nil {
		return classify("migrate", err)
	}
	s.logger.Info(ctx, "postgres schema applied")
	return nil
}

// classify wraps connection-level failures in ErrUnavailable. Server-side
// errors (constraint violations, bad SQL) are returned as is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

// uniqueViolation is the SQLSTATE for a unique or primary key conflict.
const uniqueViolation = "23505"

// isDuplicateVote reports a replayed vote id hitting the votes primary key.
func isDuplicateVote(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.TableName == "votes"
}

// UpsertElements inserts elements and any missing segment rows.
func (s *PostgresStore) UpsertElements(ctx context.Context, elements []model.Element) error {
	batch := &pgx.Batch{}
	for _, e := range elements {
		batch.Queue(`
			INSERT INTO elements (id, texte, category) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET texte = EXCLUDED.texte, category = EXCLUDED.category
		`, e.ID, e.Text, e.Category.String())
		for _, seg := range model.Segments() {
			r := e.Ratings[seg]
			batch.Queue(`
				INSERT INTO element_ratings (element_id, segment, elo, comparisons) VALUES ($1, $2, $3, $4)
				ON CONFLICT (element_id, segment) DO NOTHING
			`, e.ID, seg.String(), r.Elo, r.Comparisons)
		}
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return classify("upsert elements", err)
	}
	return nil
}

const selectElements = `
	SELECT e.id, e.texte, e.category, r.segment, r.elo, r.comparisons
	  FROM elements e
	  JOIN element_ratings r ON r.element_id = e.id
`

// scanElements folds (element, segment) rows into elements ordered by id.
func scanElements(rows pgx.Rows) ([]model.Element, error) {
	defer rows.Close()
	var (
		out   []model.Element
		index = make(map[int64]int)
	)
	for rows.Next() {
		var (
			id          int64
			text, cat   string
			seg         string
			elo         float64
			comparisons int
		)
		if err := rows.Scan(&id, &text, &cat, &seg, &elo, &comparisons); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok {
			c, err := model.ParseCategory(cat)
			if err != nil {
				return nil, err
			}
			out = append(out, model.Element{ID: id, Text: text, Category: c})
			i = len(out) - 1
			index[id] = i
		}
		segment, err := model.ParseSegment(seg)
		if err != nil {
			return nil, err
		}
		out[i].Ratings[segment] = model.Rating{Elo: elo, Comparisons: comparisons}
	}
	return out, rows.Err()
}

// Element returns one element by id.
func (s *PostgresStore) Element(ctx context.Context, id int64) (model.Element, error) {
	rows, err := s.pool.Query(ctx, selectElements+` WHERE e.id = $1`, id)
	if err != nil {
		return model.Element{}, classify("element", err)
	}
	els, err := scanElements(rows)
	if err != nil {
		return model.Element{}, classify("element", err)
	}
	if len(els) == 0 {
		return model.Element{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return els[0], nil
}

// Elements returns the elements of a category ordered by id.
func (s *PostgresStore) Elements(ctx context.Context, category model.Category) ([]model.Element, error) {
	rows, err := s.pool.Query(ctx, selectElements+`
		WHERE ($1 = '' OR e.category = $1)
		ORDER BY e.id, r.segment
	`, category.String())
	if err != nil {
		return nil, classify("elements", err)
	}
	els, err := scanElements(rows)
	if err != nil {
		return nil, classify("elements", err)
	}
	return els, nil
}

// ApplyVote locks both elements' rating rows, applies the vote and commits
// the ratings and the vote record in one transaction.
func (s *PostgresStore) ApplyVote(ctx context.Context, v model.Vote, apply ApplyFunc) (VoteResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("apply_vote", float64(time.Since(start).Milliseconds()))
	}()

	if err := v.Validate(); err != nil {
		return VoteResult{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return VoteResult{}, classify("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// ORDER BY fixes the lock order, so concurrent votes on the same pair
	// queue up instead of deadlocking.
	rows, err := tx.Query(ctx, selectElements+`
		WHERE e.id = ANY($1)
		ORDER BY e.id, r.segment
		FOR UPDATE OF r
	`, []int64{v.WinnerID, v.LoserID})
	if err != nil {
		return VoteResult{}, classify("lock ratings", err)
	}
	els, err := scanElements(rows)
	if err != nil {
		return VoteResult{}, classify("lock ratings", err)
	}

	var winner, loser *model.Element
	for i := range els {
		switch els[i].ID {
		case v.WinnerID:
			winner = &els[i]
		case v.LoserID:
			loser = &els[i]
		}
	}
	switch {
	case winner == nil:
		return VoteResult{}, fmt.Errorf("%w: %d", ErrNotFound, v.WinnerID)
	case loser == nil:
		return VoteResult{}, fmt.Errorf("%w: %d", ErrNotFound, v.LoserID)
	}

	if err := apply(winner, loser); err != nil {
		return VoteResult{}, err
	}

	batch := &pgx.Batch{}
	for _, seg := range v.Segments() {
		for _, e := range []*model.Element{winner, loser} {
			r := e.Ratings[seg]
			batch.Queue(`
				UPDATE element_ratings SET elo = $3, comparisons = $4
				 WHERE element_id = $1 AND segment = $2
			`, e.ID, seg.String(), r.Elo, r.Comparisons)
		}
	}
	batch.Queue(`
		INSERT INTO votes (id, winner_id, loser_id, sex, age, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.WinnerID, v.LoserID, nullable(v.Sex.String()), nullable(v.Age.String()), v.At)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateVote(err) {
			return VoteResult{}, fmt.Errorf("%w: %s", ErrDuplicateVote, v.ID)
		}
		return VoteResult{}, classify("write vote", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return VoteResult{}, classify("commit vote", err)
	}
	return VoteResult{Winner: *winner, Loser: *loser}, nil
}

// Votes returns recorded votes within [from, to).
func (s *PostgresStore) Votes(ctx context.Context, from, to time.Time) ([]model.Vote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, winner_id, loser_id, COALESCE(sex, ''), COALESCE(age, ''), created_at
		  FROM votes
		 WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		   AND ($2::timestamptz IS NULL OR created_at < $2)
		 ORDER BY created_at
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, classify("votes", err)
	}
	defer rows.Close()

	var out []model.Vote
	for rows.Next() {
		var (
			v        model.Vote
			sex, age string
		)
		if err := rows.Scan(&v.ID, &v.WinnerID, &v.LoserID, &sex, &age, &v.At); err != nil {
			return nil, classify("votes", err)
		}
		// Rows written by older clients may carry values outside the
		// enumeration; they aggregate as unknown.
		v.Sex, _ = model.ParseSex(sex)
		v.Age, _ = model.ParseAgeBracket(age)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("votes", err)
	}
	return out, nil
}

// VoteTallies groups the votes within [from, to) by winner category and
// voter axes inside the database.
func (s *PostgresStore) VoteTallies(ctx context.Context, from, to time.Time) ([]model.VoteTally, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("vote_tallies", float64(time.Since(start).Milliseconds()))
	}()

	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(e.category, ''), COALESCE(v.sex, ''), COALESCE(v.age, ''), COUNT(*)
		  FROM votes v
		  LEFT JOIN elements e ON e.id = v.winner_id
		 WHERE ($1::timestamptz IS NULL OR v.created_at >= $1)
		   AND ($2::timestamptz IS NULL OR v.created_at < $2)
		 GROUP BY 1, 2, 3
	`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, classify("vote tallies", err)
	}
	defer rows.Close()

	var out []model.VoteTally
	for rows.Next() {
		var (
			t             model.VoteTally
			cat, sex, age string
		)
		if err := rows.Scan(&cat, &sex, &age, &t.Votes); err != nil {
			return nil, classify("vote tallies", err)
		}
		// Values outside the enumerations aggregate as unknown.
		t.Category, _ = model.ParseCategory(cat)
		t.Sex, _ = model.ParseSex(sex)
		t.Age, _ = model.ParseAgeBracket(age)
		out = append(out, t)
	}
	return out, classify("vote tallies", rows.Err())
}

// AppendVerdict records a verdict.
func (s *PostgresStore) AppendVerdict(ctx context.Context, v model.Verdict) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO verdicts (id, kind, created_at) VALUES ($1, $2, $3)`,
		v.ID, v.Kind.String(), v.At)
	return classify("append verdict", err)
}

// VerdictCounts counts red and green verdicts.
func (s *PostgresStore) VerdictCounts(ctx context.Context) (red, green int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE kind = 'red'),
		       COUNT(*) FILTER (WHERE kind = 'green')
		  FROM verdicts
	`).Scan(&red, &green)
	if err != nil {
		return 0, 0, classify("verdict counts", err)
	}
	return red, green, nil
}

// Ranking orders a category's elements by their rating in segment.
func (s *PostgresStore) Ranking(ctx context.Context, segment model.Segment, category model.Category, limit int) ([]Entry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if !segment.Valid() {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidSegment, segment)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.texte, e.category, r.elo, r.comparisons
		  FROM element_ratings r
		  JOIN elements e ON e.id = r.element_id
		 WHERE r.segment = $1 AND ($2 = '' OR e.category = $2)
		 ORDER BY r.elo DESC, e.id ASC
		 LIMIT $3
	`, segment.String(), category.String(), limit)
	if err != nil {
		return nil, classify("ranking", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e   Entry
			cat string
		)
		if err := rows.Scan(&e.ElementID, &e.Text, &cat, &e.Rating, &e.Comparisons); err != nil {
			return nil, classify("ranking", err)
		}
		e.Category, _ = model.ParseCategory(cat)
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, classify("ranking", rows.Err())
}

// Count returns the number of elements, or 0 when the store is unreachable.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM elements`).Scan(&n); err != nil {
		s.logger.Warn(ctx, "count elements failed", logger.Error(err))
		return 0
	}
	return n
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
