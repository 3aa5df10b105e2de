package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// Grading statuses stored on a Result. Auto-grading only ever produces
// StatusCorrect or StatusUnknown; StatusTypo and StatusWrong require a
// teacher override.
const (
	StatusCorrect = "goed"
	StatusTypo    = "typfout"
	StatusWrong   = "fout"
	StatusUnknown = "onbekend"
)

// Teacher is a registered docent account.
type Teacher struct {
	bun.BaseModel `bun:"table:docenten,alias:d"`

	ID           int64  `bun:"id,pk,autoincrement" json:"id"`
	Naam         string `bun:"naam" json:"naam"`
	Email        string `bun:"email" json:"email"`
	PasswordHash string `bun:"wachtwoord" json:"-"`
}

// Class is a teacher-owned group of students sharing a join code.
type Class struct {
	bun.BaseModel `bun:"table:klassen,alias:k"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	DocentID  int64     `bun:"docent_id" json:"docent_id"`
	Naam      string    `bun:"naam" json:"naam"`
	Klascode  string    `bun:"klascode" json:"klascode"`
	Vak       string    `bun:"vak,nullzero" json:"vak,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Student is an anonymous per-class identity created when a join code is
// redeemed. There is no credential; the numeric id is the trust boundary.
type Student struct {
	bun.BaseModel `bun:"table:leerlingen,alias:l"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	KlasID    int64     `bun:"klas_id" json:"klas_id"`
	Naam      string    `bun:"naam" json:"naam"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"-"`
}

// QuestionList groups questions within a class.
type QuestionList struct {
	bun.BaseModel `bun:"table:vragenlijsten,alias:vl"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	KlasID    int64     `bun:"klas_id" json:"klas_id"`
	Naam      string    `bun:"naam" json:"naam"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"-"`

	// Joined from klassen when loaded with ownership context.
	DocentID int64  `bun:"docent_id,scanonly" json:"docent_id,omitempty"`
	Klasnaam string `bun:"klasnaam,scanonly" json:"klasnaam,omitempty"`
}

// Question holds a prompt and its correct answer.
type Question struct {
	bun.BaseModel `bun:"table:vragen,alias:v"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	KlasID        int64     `bun:"klas_id" json:"klas_id"`
	VragenlijstID int64     `bun:"vragenlijst_id" json:"vragenlijst_id"`
	Vraag         string    `bun:"vraag" json:"vraag"`
	Antwoord      string    `bun:"antwoord" json:"antwoord"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"-"`
}

// Session is one live quiz run against a class and a question list. At
// most one session per class is active at any time; the asked-set is
// derived from distinct question ids in resultaten, not stored here.
type Session struct {
	bun.BaseModel `bun:"table:sessies,alias:s"`

	ID                int64      `bun:"id,pk,autoincrement" json:"id"`
	KlasID            int64      `bun:"klas_id" json:"klas_id"`
	DocentID          int64      `bun:"docent_id" json:"docent_id"`
	VragenlijstID     int64      `bun:"vragenlijst_id" json:"vragenlijst_id"`
	Actief            bool       `bun:"actief" json:"actief"`
	StartedAt         time.Time  `bun:"started_at,nullzero,default:current_timestamp" json:"started_at"`
	CurrentQuestionID *int64     `bun:"current_question_id" json:"current_question_id"`
	QuestionStartTime *time.Time `bun:"question_start_time" json:"question_start_time"`
}

// Result records one student's answer to one question in one session.
// At most one result exists per (sessie, vraag, leerling) tuple.
type Result struct {
	bun.BaseModel `bun:"table:resultaten,alias:r"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	SessieID      int64     `bun:"sessie_id" json:"sessie_id"`
	LeerlingID    int64     `bun:"leerling_id" json:"leerling_id"`
	VraagID       int64     `bun:"vraag_id" json:"vraag_id"`
	AntwoordGiven string    `bun:"antwoord_given" json:"antwoord_given"`
	Status        string    `bun:"status" json:"status"`
	Points        int       `bun:"points" json:"points"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Presence is the ephemeral liveness state of a student. It is never
// persisted and is lost on restart.
type Presence struct {
	Status   string    `json:"status"`
	Focused  bool      `json:"focused"`
	LastSeen time.Time `json:"last_seen"`
}
