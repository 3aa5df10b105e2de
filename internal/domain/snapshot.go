package domain

// SessionInfo is the session row as shipped to live viewers: joined class
// info, the derived asked-set, and timestamps rendered as strings.
type SessionInfo struct {
	ID                int64   `json:"id"`
	KlasID            int64   `json:"klas_id"`
	DocentID          int64   `json:"docent_id"`
	VragenlijstID     int64   `json:"vragenlijst_id"`
	Actief            bool    `json:"actief"`
	StartedAt         string  `json:"started_at"`
	Klasnaam          string  `json:"klasnaam"`
	Klascode          string  `json:"klascode"`
	RoundSeen         []int64 `json:"round_seen"`
	CurrentQuestionID *int64  `json:"current_question_id"`
	QuestionStartTime *string `json:"question_start_time"`
}

// QuestionView is the current question inside a snapshot. Antwoord is
// emptied by student redaction.
type QuestionView struct {
	ID       int64  `json:"id"`
	Vraag    string `json:"vraag"`
	Antwoord string `json:"antwoord,omitempty"`
}

// RosterEntry is one student in the class roster, annotated with live
// presence. Naam is dropped by student redaction.
type RosterEntry struct {
	ID       int64   `json:"id"`
	Naam     string  `json:"naam,omitempty"`
	Online   bool    `json:"online"`
	Focused  bool    `json:"focused"`
	LastSeen *string `json:"last_seen"`
}

// ScoreboardEntry sums a student's points and answers across a session.
type ScoreboardEntry struct {
	LeerlingID int64  `json:"leerling_id"`
	Naam       string `json:"naam,omitempty"`
	Points     int    `json:"points"`
	Answers    int    `json:"answers"`
}

// RecentAnswer is one row of the recent-answers feed. Student redaction
// strips the identity fields (ID, LeerlingID, Leerling).
type RecentAnswer struct {
	ID         int64  `json:"id,omitempty"`
	LeerlingID int64  `json:"leerling_id,omitempty"`
	Leerling   string `json:"leerling,omitempty"`
	Antwoord   string `json:"antwoord"`
	Status     string `json:"status"`
	Points     int    `json:"points"`
	CreatedAt  string `json:"created_at"`
	Vraag      string `json:"vraag"`
}

// Snapshot is the assembled view of a session's current state pushed to
// live viewers on every mutation.
type Snapshot struct {
	Session         SessionInfo       `json:"sess"`
	CurrentQuestion *QuestionView     `json:"currentQuestion"`
	AnswerCount     int               `json:"answerCount"`
	TotalStudents   int               `json:"total_students"`
	Leerlingen      []RosterEntry     `json:"leerlingen"`
	Scoreboard      []ScoreboardEntry `json:"scoreboard"`
	RecentAnswers   []RecentAnswer    `json:"recentAnswers"`
	PendingCount    int               `json:"pending_count"`
}

// ExportRow is one line of the CSV results export for a session.
type ExportRow struct {
	Leerling  string
	Vraag     string
	Antwoord  string
	Status    string
	CreatedAt string
}

// StudentAnswer is one of a student's own answers in the student state view.
type StudentAnswer struct {
	ID        int64  `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Status    string `json:"status"`
	Points    int    `json:"points"`
	CreatedAt string `json:"created_at"`
}

// StudentState is the polling view for a single student: the active
// session, the current question (without the correct answer unless the
// whole class has answered), and the student's own progress.
type StudentState struct {
	SessionEnded      bool            `json:"session_ended,omitempty"`
	SessionID         int64           `json:"session_id,omitempty"`
	CurrentQuestionID *int64          `json:"current_question_id"`
	QuestionText      *string         `json:"question_text"`
	AlreadyAnswered   bool            `json:"already_answered"`
	Score             int             `json:"score"`
	AnswerCount       int             `json:"answer_count"`
	RecentAnswers     []StudentAnswer `json:"recent_answers"`
	AllAnswered       bool            `json:"all_answered"`
	CorrectAnswer     *string         `json:"correct_answer"`
}
