package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"klasquiz-service/internal/domain"
)

// timeLayout renders snapshot timestamps the way clients expect them.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// recentAnswersCap bounds the recent-answers feed in a snapshot.
const recentAnswersCap = 50

// BuildSnapshot assembles the full (teacher) view of a session from the
// store and the presence tracker: session row with derived asked-set,
// current question, roster with live presence, scoreboard, recent
// answers, and pending count.
func (s *SessionService) BuildSnapshot(ctx context.Context, sessieID int64) (*domain.Snapshot, error) {
	sess, klas, err := s.store.SessionWithClass(ctx, sessieID)
	if err != nil {
		return nil, err
	}

	asked, err := s.store.AskedQuestionIDs(ctx, sessieID)
	if err != nil {
		return nil, fmt.Errorf("asked set: %w", err)
	}

	info := domain.SessionInfo{
		ID:                sess.ID,
		KlasID:            sess.KlasID,
		DocentID:          sess.DocentID,
		VragenlijstID:     sess.VragenlijstID,
		Actief:            sess.Actief,
		StartedAt:         formatTime(sess.StartedAt),
		Klasnaam:          klas.Naam,
		Klascode:          klas.Klascode,
		RoundSeen:         asked,
		CurrentQuestionID: sess.CurrentQuestionID,
	}
	if sess.QuestionStartTime != nil {
		qs := formatTime(*sess.QuestionStartTime)
		info.QuestionStartTime = &qs
	}

	snap := &domain.Snapshot{Session: info}

	if sess.CurrentQuestionID != nil {
		q, err := s.store.QuestionByID(ctx, *sess.CurrentQuestionID)
		switch {
		case err == nil:
			snap.CurrentQuestion = &domain.QuestionView{ID: q.ID, Vraag: q.Vraag, Antwoord: q.Antwoord}
			if snap.AnswerCount, err = s.store.AnswerCount(ctx, sessieID, q.ID); err != nil {
				return nil, fmt.Errorf("answer count: %w", err)
			}
		case errors.Is(err, domain.ErrNotFound):
			// question deleted mid-session; render as no current question
		default:
			return nil, fmt.Errorf("current question: %w", err)
		}
	}

	leerlingen, err := s.store.StudentsByClass(ctx, sess.KlasID)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	snap.TotalStudents = len(leerlingen)
	snap.Leerlingen = make([]domain.RosterEntry, 0, len(leerlingen))
	for _, l := range leerlingen {
		entry := domain.RosterEntry{ID: l.ID, Naam: l.Naam}
		if p, ok := s.presence.Get(l.ID); ok {
			ls := p.LastSeen.UTC().Format(time.RFC3339)
			entry.LastSeen = &ls
			entry.Online = p.Status == statusFocused
			entry.Focused = p.Focused
		}
		snap.Leerlingen = append(snap.Leerlingen, entry)
	}

	if snap.Scoreboard, err = s.store.ScoreboardRows(ctx, sessieID, sess.KlasID); err != nil {
		return nil, fmt.Errorf("scoreboard: %w", err)
	}
	if snap.RecentAnswers, err = s.store.RecentAnswers(ctx, sessieID, recentAnswersCap); err != nil {
		return nil, fmt.Errorf("recent answers: %w", err)
	}
	if snap.PendingCount, err = s.store.PendingCount(ctx, sessieID); err != nil {
		return nil, fmt.Errorf("pending count: %w", err)
	}
	return snap, nil
}

// RedactForStudent produces the restricted view pushed to student
// subscribers: no correct answer, no roster names, and no student
// identity inside recent-answer entries.
func RedactForStudent(in *domain.Snapshot) *domain.Snapshot {
	out := *in

	if in.CurrentQuestion != nil {
		cq := *in.CurrentQuestion
		cq.Antwoord = ""
		out.CurrentQuestion = &cq
	}

	out.Leerlingen = make([]domain.RosterEntry, len(in.Leerlingen))
	for i, l := range in.Leerlingen {
		out.Leerlingen[i] = domain.RosterEntry{
			ID:       l.ID,
			Online:   l.Online,
			Focused:  l.Focused,
			LastSeen: l.LastSeen,
		}
	}

	out.Scoreboard = make([]domain.ScoreboardEntry, len(in.Scoreboard))
	for i, r := range in.Scoreboard {
		out.Scoreboard[i] = domain.ScoreboardEntry{
			LeerlingID: r.LeerlingID,
			Points:     r.Points,
			Answers:    r.Answers,
		}
	}

	out.RecentAnswers = make([]domain.RecentAnswer, len(in.RecentAnswers))
	for i, r := range in.RecentAnswers {
		out.RecentAnswers[i] = domain.RecentAnswer{
			Antwoord:  r.Antwoord,
			Status:    r.Status,
			Points:    r.Points,
			CreatedAt: r.CreatedAt,
			Vraag:     r.Vraag,
		}
	}
	return &out
}
