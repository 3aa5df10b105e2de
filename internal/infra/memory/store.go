package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"klasquiz-service/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// Store is an in-memory implementation of app.Store backed by
// mutex-guarded maps. It runs the server without a database configured
// and backs the unit and transport tests.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	rnd *rand.Rand
	seq int64

	teachers  map[int64]*domain.Teacher
	classes   map[int64]*domain.Class
	students  map[int64]*domain.Student
	lists     map[int64]*domain.QuestionList
	questions map[int64]*domain.Question
	sessions  map[int64]*domain.Session
	results   map[int64]*domain.Result
}

func NewStore() *Store {
	return &Store{
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		teachers:  make(map[int64]*domain.Teacher),
		classes:   make(map[int64]*domain.Class),
		students:  make(map[int64]*domain.Student),
		lists:     make(map[int64]*domain.QuestionList),
		questions: make(map[int64]*domain.Question),
		sessions:  make(map[int64]*domain.Session),
		results:   make(map[int64]*domain.Result),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// --- teachers ---

func (s *Store) CreateTeacher(_ context.Context, naam, email, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.teachers {
		if t.Email == email {
			return 0, domain.ErrEmailTaken
		}
	}
	id := s.nextID()
	s.teachers[id] = &domain.Teacher{ID: id, Naam: naam, Email: email, PasswordHash: passwordHash}
	return id, nil
}

func (s *Store) TeacherByEmail(_ context.Context, email string) (*domain.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.teachers {
		if t.Email == email {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// --- classes & students ---

func (s *Store) CreateClass(_ context.Context, docentID int64, naam, klascode, vak string) (*domain.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	k := &domain.Class{ID: id, DocentID: docentID, Naam: naam, Klascode: klascode, Vak: vak, CreatedAt: s.now()}
	s.classes[id] = k
	cp := *k
	return &cp, nil
}

func (s *Store) ClassOwnedBy(_ context.Context, klasID, docentID int64) (*domain.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.classes[klasID]
	if !ok || k.DocentID != docentID {
		return nil, domain.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (s *Store) ClassByCode(_ context.Context, klascode string) (*domain.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.classes {
		if k.Klascode == klascode {
			cp := *k
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) DeleteClassCascade(_ context.Context, klasID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.KlasID == klasID {
			for rid, r := range s.results {
				if r.SessieID == id {
					delete(s.results, rid)
				}
			}
			delete(s.sessions, id)
		}
	}
	for id, q := range s.questions {
		if q.KlasID == klasID {
			delete(s.questions, id)
		}
	}
	for id, l := range s.students {
		if l.KlasID == klasID {
			delete(s.students, id)
		}
	}
	for id, vl := range s.lists {
		if vl.KlasID == klasID {
			delete(s.lists, id)
		}
	}
	delete(s.classes, klasID)
	return nil
}

func (s *Store) CreateStudent(_ context.Context, klasID int64, naam string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	s.students[id] = &domain.Student{ID: id, KlasID: klasID, Naam: naam, CreatedAt: s.now()}
	return id, nil
}

func (s *Store) StudentInClass(_ context.Context, leerlingID, klasID int64) (*domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.students[leerlingID]
	if !ok || l.KlasID != klasID {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) StudentsByClass(_ context.Context, klasID int64) ([]domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Student
	for _, l := range s.students {
		if l.KlasID == klasID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Naam < out[j].Naam })
	return out, nil
}

func (s *Store) DeleteStudent(_ context.Context, leerlingID, klasID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.students[leerlingID]; ok && l.KlasID == klasID {
		delete(s.students, leerlingID)
	}
	return nil
}

func (s *Store) DeleteStudentsByClass(_ context.Context, klasID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.students {
		if l.KlasID == klasID {
			delete(s.students, id)
		}
	}
	return nil
}

// --- question lists & questions ---

func (s *Store) CreateQuestionList(_ context.Context, klasID int64, naam string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	s.lists[id] = &domain.QuestionList{ID: id, KlasID: klasID, Naam: naam, CreatedAt: s.now()}
	return id, nil
}

func (s *Store) QuestionListByID(_ context.Context, lijstID int64) (*domain.QuestionList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vl, ok := s.lists[lijstID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *vl
	if k, ok := s.classes[vl.KlasID]; ok {
		cp.DocentID = k.DocentID
		cp.Klasnaam = k.Naam
	}
	return &cp, nil
}

func (s *Store) QuestionListInClass(_ context.Context, lijstID, klasID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vl, ok := s.lists[lijstID]
	return ok && vl.KlasID == klasID, nil
}

func (s *Store) QuestionListsByClass(_ context.Context, klasID int64) ([]domain.QuestionList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QuestionList
	for _, vl := range s.lists {
		if vl.KlasID == klasID {
			out = append(out, *vl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UpdateQuestionList(_ context.Context, lijstID int64, naam string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vl, ok := s.lists[lijstID]
	if !ok {
		return domain.ErrNotFound
	}
	vl.Naam = naam
	return nil
}

func (s *Store) DeleteQuestionListCascade(_ context.Context, lijstID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for qid, q := range s.questions {
		if q.VragenlijstID == lijstID {
			for rid, r := range s.results {
				if r.VraagID == qid {
					delete(s.results, rid)
				}
			}
			delete(s.questions, qid)
		}
	}
	delete(s.lists, lijstID)
	return nil
}

func (s *Store) AddQuestion(_ context.Context, q *domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextID()
	q.CreatedAt = s.now()
	cp := *q
	s.questions[q.ID] = &cp
	return nil
}

func (s *Store) QuestionByID(_ context.Context, vraagID int64) (*domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[vraagID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *Store) QuestionsByList(_ context.Context, lijstID int64) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, q := range s.questions {
		if q.VragenlijstID == lijstID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UpdateQuestion(_ context.Context, vraagID int64, vraag, antwoord string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[vraagID]
	if !ok {
		return domain.ErrNotFound
	}
	q.Vraag = vraag
	q.Antwoord = antwoord
	return nil
}

func (s *Store) DeleteQuestionCascade(_ context.Context, vraagID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for rid, r := range s.results {
		if r.VraagID == vraagID {
			delete(s.results, rid)
		}
	}
	delete(s.questions, vraagID)
	return nil
}

func (s *Store) RandomUnaskedQuestion(_ context.Context, klasID, lijstID int64, asked []int64) (*domain.Question, error) {
	seen := make(map[int64]struct{}, len(asked))
	for _, id := range asked {
		seen[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var eligible []*domain.Question
	for _, q := range s.questions {
		if q.KlasID != klasID || q.VragenlijstID != lijstID {
			continue
		}
		if _, ok := seen[q.ID]; ok {
			continue
		}
		eligible = append(eligible, q)
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	cp := *eligible[s.rnd.Intn(len(eligible))]
	return &cp, nil
}

// --- sessions ---

func (s *Store) StartSession(_ context.Context, klasID, docentID, lijstID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.KlasID == klasID {
			sess.Actief = false
		}
	}
	id := s.nextID()
	s.sessions[id] = &domain.Session{
		ID:            id,
		KlasID:        klasID,
		DocentID:      docentID,
		VragenlijstID: lijstID,
		Actief:        true,
		StartedAt:     s.now(),
	}
	return id, nil
}

func (s *Store) SessionByID(_ context.Context, sessieID int64) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionLocked(sessieID)
}

func (s *Store) sessionLocked(sessieID int64) (*domain.Session, error) {
	sess, ok := s.sessions[sessieID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *sess
	if sess.CurrentQuestionID != nil {
		qid := *sess.CurrentQuestionID
		cp.CurrentQuestionID = &qid
	}
	if sess.QuestionStartTime != nil {
		qt := *sess.QuestionStartTime
		cp.QuestionStartTime = &qt
	}
	return &cp, nil
}

func (s *Store) SessionWithClass(_ context.Context, sessieID int64) (*domain.Session, *domain.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, err := s.sessionLocked(sessieID)
	if err != nil {
		return nil, nil, err
	}
	k, ok := s.classes[sess.KlasID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	kcp := *k
	return sess, &kcp, nil
}

func (s *Store) ActiveSessionForClass(_ context.Context, klasID int64) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, sess := range s.sessions {
		if sess.KlasID == klasID && sess.Actief {
			return s.sessionLocked(id)
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) SetCurrentQuestion(_ context.Context, sessieID, vraagID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessieID]
	if !ok {
		return domain.ErrNotFound
	}
	now := s.now()
	sess.CurrentQuestionID = &vraagID
	sess.QuestionStartTime = &now
	return nil
}

func (s *Store) ClearCurrentQuestion(_ context.Context, sessieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessieID]
	if !ok {
		return domain.ErrNotFound
	}
	sess.CurrentQuestionID = nil
	sess.QuestionStartTime = nil
	return nil
}

func (s *Store) StopSession(_ context.Context, sessieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessieID]
	if !ok {
		return domain.ErrNotFound
	}
	sess.Actief = false
	sess.CurrentQuestionID = nil
	sess.QuestionStartTime = nil
	return nil
}

func (s *Store) AskedQuestionIDs(_ context.Context, sessieID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	var out []int64
	for _, r := range s.results {
		if r.SessieID != sessieID {
			continue
		}
		if _, ok := seen[r.VraagID]; ok {
			continue
		}
		seen[r.VraagID] = struct{}{}
		out = append(out, r.VraagID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// --- results ---

func (s *Store) InsertResult(_ context.Context, r *domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.results {
		if existing.SessieID == r.SessieID && existing.VraagID == r.VraagID && existing.LeerlingID == r.LeerlingID {
			return domain.ErrDuplicateResult
		}
	}
	r.ID = s.nextID()
	r.CreatedAt = s.now()
	cp := *r
	s.results[r.ID] = &cp
	return nil
}

func (s *Store) ResultByID(_ context.Context, resultaatID int64) (*domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[resultaatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ResultFor(_ context.Context, sessieID, vraagID, leerlingID int64) (*domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.results {
		if r.SessieID == sessieID && r.VraagID == vraagID && r.LeerlingID == leerlingID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GradeResult(_ context.Context, resultaatID int64, status string, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[resultaatID]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	r.Points = points
	return nil
}

func (s *Store) DeleteResultsForQuestion(_ context.Context, sessieID, vraagID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.results {
		if r.SessieID == sessieID && r.VraagID == vraagID {
			delete(s.results, id)
		}
	}
	return nil
}

func (s *Store) DeleteStudentResults(_ context.Context, sessieID, leerlingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.results {
		if r.SessieID == sessieID && r.LeerlingID == leerlingID {
			delete(s.results, id)
		}
	}
	return nil
}

func (s *Store) ScoreboardRows(_ context.Context, sessieID, klasID int64) ([]domain.ScoreboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ScoreboardEntry
	for _, l := range s.students {
		if l.KlasID != klasID {
			continue
		}
		entry := domain.ScoreboardEntry{LeerlingID: l.ID, Naam: l.Naam}
		for _, r := range s.results {
			if r.SessieID == sessieID && r.LeerlingID == l.ID {
				entry.Points += r.Points
				entry.Answers++
			}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Naam < out[j].Naam
	})
	return out, nil
}

func (s *Store) RecentAnswers(_ context.Context, sessieID int64, limit int) ([]domain.RecentAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type row struct {
		r       *domain.Result
		pending bool
	}
	var rows []row
	for _, r := range s.results {
		if r.SessieID == sessieID {
			rows = append(rows, row{r: r, pending: r.Status == "" || r.Status == domain.StatusUnknown})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].pending != rows[j].pending {
			return rows[i].pending
		}
		if !rows[i].r.CreatedAt.Equal(rows[j].r.CreatedAt) {
			return rows[i].r.CreatedAt.After(rows[j].r.CreatedAt)
		}
		return rows[i].r.ID > rows[j].r.ID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.RecentAnswer, 0, len(rows))
	for _, rw := range rows {
		ra := domain.RecentAnswer{
			ID:         rw.r.ID,
			LeerlingID: rw.r.LeerlingID,
			Antwoord:   rw.r.AntwoordGiven,
			Status:     rw.r.Status,
			Points:     rw.r.Points,
			CreatedAt:  rw.r.CreatedAt.UTC().Format(timeLayout),
		}
		if l, ok := s.students[rw.r.LeerlingID]; ok {
			ra.Leerling = l.Naam
		}
		if q, ok := s.questions[rw.r.VraagID]; ok {
			ra.Vraag = q.Vraag
		}
		out = append(out, ra)
	}
	return out, nil
}

func (s *Store) PendingCount(_ context.Context, sessieID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r.SessieID == sessieID && (r.Status == "" || r.Status == domain.StatusUnknown) {
			n++
		}
	}
	return n, nil
}

func (s *Store) AnswerCount(_ context.Context, sessieID, vraagID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r.SessieID == sessieID && r.VraagID == vraagID {
			n++
		}
	}
	return n, nil
}

func (s *Store) AnsweredStudentCount(_ context.Context, sessieID, vraagID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	for _, r := range s.results {
		if r.SessieID == sessieID && r.VraagID == vraagID {
			seen[r.LeerlingID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (s *Store) StudentScore(_ context.Context, sessieID, leerlingID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, r := range s.results {
		if r.SessieID == sessieID && r.LeerlingID == leerlingID {
			total += r.Points
		}
	}
	return total, nil
}

func (s *Store) StudentAnswerCount(_ context.Context, sessieID, leerlingID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if r.SessieID == sessieID && r.LeerlingID == leerlingID {
			n++
		}
	}
	return n, nil
}

func (s *Store) StudentRecentAnswers(_ context.Context, sessieID, leerlingID int64, limit int) ([]domain.StudentAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []*domain.Result
	for _, r := range s.results {
		if r.SessieID == sessieID && r.LeerlingID == leerlingID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]domain.StudentAnswer, 0, len(rows))
	for _, r := range rows {
		sa := domain.StudentAnswer{
			ID:        r.ID,
			Answer:    r.AntwoordGiven,
			Status:    r.Status,
			Points:    r.Points,
			CreatedAt: r.CreatedAt.UTC().Format(timeLayout),
		}
		if q, ok := s.questions[r.VraagID]; ok {
			sa.Question = q.Vraag
		}
		out = append(out, sa)
	}
	return out, nil
}

func (s *Store) SessionResults(_ context.Context, sessieID int64) ([]domain.ExportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rows []*domain.Result
	for _, r := range s.results {
		if r.SessieID == sessieID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	out := make([]domain.ExportRow, 0, len(rows))
	for _, r := range rows {
		row := domain.ExportRow{
			Antwoord:  r.AntwoordGiven,
			Status:    r.Status,
			CreatedAt: r.CreatedAt.UTC().Format(timeLayout),
		}
		if row.Status == "" {
			row.Status = domain.StatusUnknown
		}
		if l, ok := s.students[r.LeerlingID]; ok {
			row.Leerling = l.Naam
		}
		if q, ok := s.questions[r.VraagID]; ok {
			row.Vraag = q.Vraag
		}
		out = append(out, row)
	}
	return out, nil
}
