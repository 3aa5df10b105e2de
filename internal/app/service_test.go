package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"klasquiz-service/internal/app"
	"klasquiz-service/internal/domain"
	"klasquiz-service/internal/infra/memory"
)

type fixture struct {
	store    *memory.Store
	answers  *memory.AnswerCache
	service  *app.SessionService
	docentID int64
	klasID   int64
	lijstID  int64
	fleur    int64
	daan     int64
	vragen   []int64
}

// newFixture seeds one docent with a class of two students and a
// question list.
func newFixture(t *testing.T, questions ...[2]string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	docentID, err := store.CreateTeacher(ctx, "Jansen", "jansen@school.nl", "hash")
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	klas, err := store.CreateClass(ctx, docentID, "3A", "AB12CD", "aardrijkskunde")
	if err != nil {
		t.Fatalf("create class: %v", err)
	}
	fleur, err := store.CreateStudent(ctx, klas.ID, "Fleur")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	daan, err := store.CreateStudent(ctx, klas.ID, "Daan")
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	lijstID, err := store.CreateQuestionList(ctx, klas.ID, "Hoofdsteden")
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	var vragen []int64
	for _, qa := range questions {
		q := &domain.Question{KlasID: klas.ID, VragenlijstID: lijstID, Vraag: qa[0], Antwoord: qa[1]}
		if err := store.AddQuestion(ctx, q); err != nil {
			t.Fatalf("add question: %v", err)
		}
		vragen = append(vragen, q.ID)
	}

	answers := memory.NewAnswerCache(store, time.Minute)
	service := app.NewSessionService(
		store,
		answers,
		app.NewHub(),
		app.NewPresenceTracker(time.Minute),
	)
	return &fixture{
		store:    store,
		answers:  answers,
		service:  service,
		docentID: docentID,
		klasID:   klas.ID,
		lijstID:  lijstID,
		fleur:    fleur,
		daan:     daan,
		vragen:   vragen,
	}
}

func (f *fixture) startSession(t *testing.T) int64 {
	t.Helper()
	id, err := f.service.StartSession(context.Background(), f.docentID, f.klasID, f.lijstID)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	return id
}

func TestStartSessionDeactivatesPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})

	first := f.startSession(t)
	second := f.startSession(t)

	old, err := f.store.SessionByID(ctx, first)
	if err != nil {
		t.Fatalf("load first session: %v", err)
	}
	if old.Actief {
		t.Fatalf("first session still active after starting second")
	}
	active, err := f.store.ActiveSessionForClass(ctx, f.klasID)
	if err != nil {
		t.Fatalf("active session: %v", err)
	}
	if active.ID != second {
		t.Fatalf("active session = %d, want %d", active.ID, second)
	}
}

func TestStartSessionChecksOwnershipAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})

	if _, err := f.service.StartSession(ctx, f.docentID+1, f.klasID, f.lijstID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign docent: err = %v, want ErrUnauthorized", err)
	}

	otherDocent, _ := f.store.CreateTeacher(ctx, "Bakker", "bakker@school.nl", "hash")
	otherKlas, _ := f.store.CreateClass(ctx, otherDocent, "4B", "ZZ99XX", "")
	otherLijst, _ := f.store.CreateQuestionList(ctx, otherKlas.ID, "Andere lijst")

	if _, err := f.service.StartSession(ctx, f.docentID, f.klasID, otherLijst); !errors.Is(err, domain.ErrInvalidReference) {
		t.Fatalf("foreign list: err = %v, want ErrInvalidReference", err)
	}
}

// A question only counts as asked once a result references it, so the
// dispatch loop is: send, collect at least one answer, send the next.
func TestQuestionRoundsUntilExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		[2]string{"Hoofdstad van Nederland?", "Amsterdam"},
		[2]string{"Hoofdstad van Frankrijk?", "Parijs"},
	)
	sessieID := f.startSession(t)

	seen := make(map[int64]bool)
	for round := 0; round < 2; round++ {
		vraagID, noMore, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if noMore {
			t.Fatalf("round %d: exhausted too early", round)
		}
		if seen[vraagID] {
			t.Fatalf("round %d: question %d repeated", round, vraagID)
		}
		seen[vraagID] = true

		if _, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "antwoord"); err != nil {
			t.Fatalf("round %d submit: %v", round, err)
		}
	}

	_, noMore, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if err != nil {
		t.Fatalf("final round: %v", err)
	}
	if !noMore {
		t.Fatalf("expected exhaustion after all questions asked")
	}

	// exhaustion leaves the session untouched
	sess, _ := f.store.SessionByID(ctx, sessieID)
	if !sess.Actief || sess.CurrentQuestionID == nil {
		t.Fatalf("exhaustion changed session state: %+v", sess)
	}
}

func TestSendNextQuestionResetsStaleResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)

	vraagID, _, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "amsterdam"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// the single question is asked, so the next dispatch reports no_more
	// and keeps Fleur's result
	_, noMore, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if err != nil || !noMore {
		t.Fatalf("expected no_more, got noMore=%v err=%v", noMore, err)
	}
	if _, err := f.store.ResultFor(ctx, sessieID, vraagID, f.fleur); err != nil {
		t.Fatalf("result vanished on exhausted dispatch: %v", err)
	}
}

func TestSubmitAnswerAutoGrading(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)
	vraagID, _, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	out, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "  AMSTERDAM ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.Success || !out.AutoGraded || out.Status != domain.StatusCorrect {
		t.Fatalf("correct answer outcome = %+v", out)
	}
	res, err := f.store.ResultFor(ctx, sessieID, vraagID, f.fleur)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if res.Points != 10 || res.Status != domain.StatusCorrect {
		t.Fatalf("stored result = %+v", res)
	}

	out, err = f.service.SubmitAnswer(ctx, sessieID, f.daan, vraagID, "Rotterdam")
	if err != nil {
		t.Fatalf("submit mismatch: %v", err)
	}
	if !out.Success || out.AutoGraded || out.Status != domain.StatusUnknown {
		t.Fatalf("mismatch outcome = %+v", out)
	}
}

func TestSubmitAnswerDuplicateIsNonFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)
	vraagID, _, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "Amsterdam"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	out, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "iets anders")
	if err != nil {
		t.Fatalf("duplicate submit: %v", err)
	}
	if out.Success {
		t.Fatalf("duplicate submission succeeded: %+v", out)
	}

	// first answer stays untouched
	res, _ := f.store.ResultFor(ctx, sessieID, vraagID, f.fleur)
	if res.AntwoordGiven != "Amsterdam" {
		t.Fatalf("duplicate overwrote the stored answer: %+v", res)
	}
}

func TestSubmitAnswerRejectsBlank(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)
	vraagID, _, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	for _, antwoord := range []string{"", "   ", "\t\n"} {
		if _, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, antwoord); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("blank answer %q: err = %v, want ErrInvalidInput", antwoord, err)
		}
	}
	if _, err := f.store.ResultFor(ctx, sessieID, vraagID, f.fleur); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("blank answer was persisted: err = %v", err)
	}

	// the rejected attempts must not consume the one answer slot
	out, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "  Amsterdam ")
	if err != nil {
		t.Fatalf("submit after blanks: %v", err)
	}
	if !out.Success {
		t.Fatalf("real answer blocked after blank attempts: %+v", out)
	}
	res, err := f.store.ResultFor(ctx, sessieID, vraagID, f.fleur)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if res.AntwoordGiven != "Amsterdam" {
		t.Fatalf("stored answer not trimmed: %q", res.AntwoordGiven)
	}
}

func TestSubmitAnswerRequiresActiveSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)
	vraagID, _, _ := f.service.SendNextQuestion(ctx, f.docentID, sessieID)

	if err := f.service.StopSession(ctx, f.docentID, sessieID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "Amsterdam"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("submit after stop: err = %v, want ErrNotFound", err)
	}
}

func TestQuestionEditInvalidatesAnswerCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Grootste stad van Zuid-Holland?", "Den Haag"})
	catalog := app.NewCatalogService(f.store, f.answers)
	sessieID := f.startSession(t)
	vraagID, _, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// first submission fills the answer cache
	out, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "Den Haag")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Status != domain.StatusCorrect {
		t.Fatalf("first outcome = %+v", out)
	}

	// the docent corrects the answer mid-session
	if err := catalog.UpdateQuestion(ctx, f.docentID, vraagID, "Grootste stad van Zuid-Holland?", "Rotterdam"); err != nil {
		t.Fatalf("update question: %v", err)
	}

	out, err = f.service.SubmitAnswer(ctx, sessieID, f.daan, vraagID, "rotterdam")
	if err != nil {
		t.Fatalf("submit after edit: %v", err)
	}
	if out.Status != domain.StatusCorrect {
		t.Fatalf("graded against the stale key: %+v", out)
	}
}

func TestGradeAnswerOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)
	vraagID, _, _ := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if _, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "Amsterdm"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res, _ := f.store.ResultFor(ctx, sessieID, vraagID, f.fleur)

	if err := f.service.GradeAnswer(ctx, f.docentID, res.ID, "perfect"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("invalid status: err = %v, want ErrInvalidInput", err)
	}
	if err := f.service.GradeAnswer(ctx, f.docentID+1, res.ID, domain.StatusTypo); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign docent: err = %v, want ErrUnauthorized", err)
	}

	if err := f.service.GradeAnswer(ctx, f.docentID, res.ID, domain.StatusTypo); err != nil {
		t.Fatalf("grade: %v", err)
	}
	graded, _ := f.store.ResultByID(ctx, res.ID)
	if graded.Status != domain.StatusTypo || graded.Points != 5 {
		t.Fatalf("graded result = %+v", graded)
	}

	// the override wins even against an auto-graded correct answer
	if err := f.service.GradeAnswer(ctx, f.docentID, res.ID, domain.StatusWrong); err != nil {
		t.Fatalf("regrade: %v", err)
	}
	graded, _ = f.store.ResultByID(ctx, res.ID)
	if graded.Status != domain.StatusWrong || graded.Points != 0 {
		t.Fatalf("regraded result = %+v", graded)
	}
}

type failingQuestionStore struct {
	app.Store
	err error
}

func (s *failingQuestionStore) QuestionByID(ctx context.Context, vraagID int64) (*domain.Question, error) {
	return nil, s.err
}

func TestBuildSnapshotSurfacesQuestionLoadFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)
	if _, _, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID); err != nil {
		t.Fatalf("send: %v", err)
	}

	storeErr := errors.New("store down")
	broken := app.NewSessionService(
		&failingQuestionStore{Store: f.store, err: storeErr},
		f.answers,
		app.NewHub(),
		app.NewPresenceTracker(time.Minute),
	)
	if _, err := broken.BuildSnapshot(ctx, sessieID); !errors.Is(err, storeErr) {
		t.Fatalf("snapshot err = %v, want the store failure", err)
	}

	// a deleted current question is not a failure, just absent
	missing := app.NewSessionService(
		&failingQuestionStore{Store: f.store, err: domain.ErrNotFound},
		f.answers,
		app.NewHub(),
		app.NewPresenceTracker(time.Minute),
	)
	snap, err := missing.BuildSnapshot(ctx, sessieID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.CurrentQuestion != nil {
		t.Fatalf("expected no current question, got %+v", snap.CurrentQuestion)
	}
}

func TestStopSessionIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)

	if err := f.service.StopSession(ctx, f.docentID, sessieID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	sess, _ := f.store.SessionByID(ctx, sessieID)
	if sess.Actief || sess.CurrentQuestionID != nil {
		t.Fatalf("stopped session = %+v", sess)
	}

	if _, _, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("dispatch after stop: err = %v, want ErrNotFound", err)
	}

	// stopping an already stopped session stays fine
	if err := f.service.StopSession(ctx, f.docentID, sessieID); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestMutationsBroadcastToSubscribers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)

	events, cancel := f.service.Hub().Subscribe(sessieID, app.RoleTeacher)
	defer cancel()

	vraagID, _, err := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	ev := <-events
	if ev.Name != "session" || ev.Snapshot.CurrentQuestion == nil || ev.Snapshot.CurrentQuestion.ID != vraagID {
		t.Fatalf("dispatch event = %+v", ev)
	}

	if _, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "Amsterdam"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ev = <-events
	if ev.Snapshot.AnswerCount != 1 {
		t.Fatalf("answer count after submit = %d, want 1", ev.Snapshot.AnswerCount)
	}
}

func TestStudentState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})

	state, err := f.service.StudentState(ctx, f.fleur, f.klasID)
	if err != nil {
		t.Fatalf("state without session: %v", err)
	}
	if !state.SessionEnded {
		t.Fatalf("expected session_ended without an active session, got %+v", state)
	}

	sessieID := f.startSession(t)
	vraagID, _, _ := f.service.SendNextQuestion(ctx, f.docentID, sessieID)

	if _, err := f.service.SubmitAnswer(ctx, sessieID, f.fleur, vraagID, "Amsterdam"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	state, err = f.service.StudentState(ctx, f.fleur, f.klasID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.AlreadyAnswered || state.Score != 10 || state.AnswerCount != 1 {
		t.Fatalf("state after own answer = %+v", state)
	}
	if state.AllAnswered || state.CorrectAnswer != nil {
		t.Fatalf("correct answer leaked before the class finished: %+v", state)
	}

	if _, err := f.service.SubmitAnswer(ctx, sessieID, f.daan, vraagID, "Rotterdam"); err != nil {
		t.Fatalf("submit daan: %v", err)
	}
	state, err = f.service.StudentState(ctx, f.fleur, f.klasID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.AllAnswered || state.CorrectAnswer == nil || *state.CorrectAnswer != "Amsterdam" {
		t.Fatalf("state after full round = %+v", state)
	}

	if _, err := f.service.StudentState(ctx, f.fleur, f.klasID+1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("state for wrong class: err = %v, want ErrNotFound", err)
	}
}

func TestRemoveStudentFromSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)
	vraagID, _, _ := f.service.SendNextQuestion(ctx, f.docentID, sessieID)
	if _, err := f.service.SubmitAnswer(ctx, sessieID, f.daan, vraagID, "Amsterdam"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := f.service.RemoveStudentFromSession(ctx, f.docentID, sessieID, f.daan); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.store.StudentInClass(ctx, f.daan, f.klasID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("student survived removal: %v", err)
	}
	if _, err := f.store.ResultFor(ctx, sessieID, vraagID, f.daan); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("result survived removal: %v", err)
	}

	rows, err := f.service.Scoreboard(ctx, f.docentID, sessieID)
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}
	if len(rows) != 1 || rows[0].LeerlingID != f.fleur {
		t.Fatalf("scoreboard after removal = %+v", rows)
	}
}

func TestPresenceHeartbeatBroadcasts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, [2]string{"Hoofdstad van Nederland?", "Amsterdam"})
	sessieID := f.startSession(t)

	events, cancel := f.service.Hub().Subscribe(sessieID, app.RoleTeacher)
	defer cancel()

	f.service.UpdatePresence(ctx, f.fleur, f.klasID, "actief")

	ev := <-events
	var fleur *domain.RosterEntry
	for i := range ev.Snapshot.Leerlingen {
		if ev.Snapshot.Leerlingen[i].ID == f.fleur {
			fleur = &ev.Snapshot.Leerlingen[i]
		}
	}
	if fleur == nil || !fleur.Online || !fleur.Focused {
		t.Fatalf("roster entry after heartbeat = %+v", fleur)
	}
}
