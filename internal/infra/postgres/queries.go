package postgres

import (
	"context"
	"errors"

	"klasquiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
)

// The snapshot projections run on the pgx pool. They are read on every
// broadcast, so they bypass bun and ship the time formatting into SQL.

const sqlTimeFormat = "YYYY-MM-DD HH24:MI:SS"

func (s *Store) AskedQuestionIDs(ctx context.Context, sessieID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT vraag_id FROM resultaten WHERE sessie_id = $1 ORDER BY vraag_id`, sessieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) RandomUnaskedQuestion(ctx context.Context, klasID, lijstID int64, asked []int64) (*domain.Question, error) {
	if asked == nil {
		asked = []int64{}
	}
	q := new(domain.Question)
	err := s.pool.QueryRow(ctx,
		`SELECT id, klas_id, vragenlijst_id, vraag, antwoord
		 FROM vragen
		 WHERE klas_id = $1 AND vragenlijst_id = $2 AND NOT (id = ANY($3))
		 ORDER BY random() LIMIT 1`,
		klasID, lijstID, asked,
	).Scan(&q.ID, &q.KlasID, &q.VragenlijstID, &q.Vraag, &q.Antwoord)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ScoreboardRows lists every student of the class, zero-scored when they
// have not answered yet, ordered by points then name.
func (s *Store) ScoreboardRows(ctx context.Context, sessieID, klasID int64) ([]domain.ScoreboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.id, l.naam,
		        COALESCE(SUM(r.points), 0) AS points,
		        COUNT(r.id) AS answers
		 FROM leerlingen l
		 LEFT JOIN resultaten r ON r.leerling_id = l.id AND r.sessie_id = $1
		 WHERE l.klas_id = $2
		 GROUP BY l.id, l.naam
		 ORDER BY points DESC, l.naam ASC`,
		sessieID, klasID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ScoreboardEntry
	for rows.Next() {
		var e domain.ScoreboardEntry
		if err := rows.Scan(&e.LeerlingID, &e.Naam, &e.Points, &e.Answers); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentAnswers surfaces ungraded rows first so the docent sees what
// still needs a manual verdict, then the rest newest-first.
func (s *Store) RecentAnswers(ctx context.Context, sessieID int64, limit int) ([]domain.RecentAnswer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.leerling_id, COALESCE(l.naam, ''), r.antwoord_given,
		        r.status, r.points, to_char(r.created_at, '`+sqlTimeFormat+`'),
		        COALESCE(v.vraag, '')
		 FROM resultaten r
		 LEFT JOIN leerlingen l ON l.id = r.leerling_id
		 LEFT JOIN vragen v ON v.id = r.vraag_id
		 WHERE r.sessie_id = $1
		 ORDER BY (r.status = '' OR r.status = $2) DESC, r.created_at DESC, r.id DESC
		 LIMIT $3`,
		sessieID, domain.StatusUnknown, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RecentAnswer
	for rows.Next() {
		var ra domain.RecentAnswer
		if err := rows.Scan(&ra.ID, &ra.LeerlingID, &ra.Leerling, &ra.Antwoord,
			&ra.Status, &ra.Points, &ra.CreatedAt, &ra.Vraag); err != nil {
			return nil, err
		}
		out = append(out, ra)
	}
	return out, rows.Err()
}

func (s *Store) PendingCount(ctx context.Context, sessieID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM resultaten WHERE sessie_id = $1 AND (status = '' OR status = $2)`,
		sessieID, domain.StatusUnknown).Scan(&n)
	return n, err
}

func (s *Store) AnswerCount(ctx context.Context, sessieID, vraagID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM resultaten WHERE sessie_id = $1 AND vraag_id = $2`,
		sessieID, vraagID).Scan(&n)
	return n, err
}

func (s *Store) AnsweredStudentCount(ctx context.Context, sessieID, vraagID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT leerling_id) FROM resultaten WHERE sessie_id = $1 AND vraag_id = $2`,
		sessieID, vraagID).Scan(&n)
	return n, err
}

func (s *Store) StudentScore(ctx context.Context, sessieID, leerlingID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM resultaten WHERE sessie_id = $1 AND leerling_id = $2`,
		sessieID, leerlingID).Scan(&n)
	return n, err
}

func (s *Store) StudentAnswerCount(ctx context.Context, sessieID, leerlingID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM resultaten WHERE sessie_id = $1 AND leerling_id = $2`,
		sessieID, leerlingID).Scan(&n)
	return n, err
}

func (s *Store) StudentRecentAnswers(ctx context.Context, sessieID, leerlingID int64, limit int) ([]domain.StudentAnswer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, COALESCE(v.vraag, ''), r.antwoord_given, r.status, r.points,
		        to_char(r.created_at, '`+sqlTimeFormat+`')
		 FROM resultaten r
		 LEFT JOIN vragen v ON v.id = r.vraag_id
		 WHERE r.sessie_id = $1 AND r.leerling_id = $2
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT $3`,
		sessieID, leerlingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.StudentAnswer
	for rows.Next() {
		var sa domain.StudentAnswer
		if err := rows.Scan(&sa.ID, &sa.Question, &sa.Answer, &sa.Status, &sa.Points, &sa.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}

func (s *Store) SessionResults(ctx context.Context, sessieID int64) ([]domain.ExportRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(l.naam, ''), COALESCE(v.vraag, ''), r.antwoord_given,
		        CASE WHEN r.status = '' THEN $2 ELSE r.status END,
		        to_char(r.created_at, '`+sqlTimeFormat+`')
		 FROM resultaten r
		 LEFT JOIN leerlingen l ON l.id = r.leerling_id
		 LEFT JOIN vragen v ON v.id = r.vraag_id
		 WHERE r.sessie_id = $1
		 ORDER BY r.created_at ASC, r.id ASC`,
		sessieID, domain.StatusUnknown)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ExportRow
	for rows.Next() {
		var row domain.ExportRow
		if err := rows.Scan(&row.Leerling, &row.Vraag, &row.Antwoord, &row.Status, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
