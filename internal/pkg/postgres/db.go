package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxexam/voxexam/internal/pkg/persistence"
)

// DB provides operations with postgresql
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates DB instance
func NewDB(pool *pgxpool.Pool) (*DB, error) {
	res := &DB{pool: pool}
	return res, nil
}

// InsertExam inserts a new active exam
func (db *DB) InsertExam(ctx context.Context, ex *persistence.Exam) error {
	slots, err := json.Marshal(ex.Slots)
	if err != nil {
		return fmt.Errorf("can't marshal slots: %w", err)
	}
	rows, err := db.pool.Query(ctx, `INSERT INTO exams(id, user_id, template_id, slots, current_slot, started, expires, version)
	VALUES($1, $2, $3, $4, $5, $6, $7, 0)`, ex.ID, ex.UserID, ex.TemplateID, slots,
		ex.CurrentSlot, ex.Started, ex.Expires)
	if err != nil {
		return fmt.Errorf("can't insert exam: %w", err)
	}
	defer rows.Close()
	return nil
}

// LoadActiveExam loads the exam from the active store only.
// Returns nil, nil when absent.
func (db *DB) LoadActiveExam(ctx context.Context, id string) (*persistence.Exam, error) {
	return db.loadExam(ctx, `SELECT id, user_id, template_id, slots, current_slot, score, started, expires, version
	FROM exams WHERE id = $1`, id)
}

// LoadExam loads the exam by ID, active store first, then history
func (db *DB) LoadExam(ctx context.Context, id string) (*persistence.Exam, error) {
	res, err := db.LoadActiveExam(ctx, id)
	if err != nil || res != nil {
		return res, err
	}
	return db.loadExam(ctx, `SELECT id, user_id, template_id, slots, current_slot, score, started, expires, version
	FROM exams_history WHERE id = $1`, id)
}

func (db *DB) loadExam(ctx context.Context, sql, id string) (*persistence.Exam, error) {
	var res persistence.Exam
	var slots, score []byte
	err := db.pool.QueryRow(ctx, sql, id).Scan(&res.ID, &res.UserID, &res.TemplateID,
		&slots, &res.CurrentSlot, &score, &res.Started, &res.Expires, &res.Version)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load exam: %w", err)
	}
	if err := json.Unmarshal(slots, &res.Slots); err != nil {
		return nil, fmt.Errorf("can't unmarshal slots: %w", err)
	}
	if len(score) > 0 {
		res.Score = &persistence.ScoreInfo{}
		if err := json.Unmarshal(score, res.Score); err != nil {
			return nil, fmt.Errorf("can't unmarshal score: %w", err)
		}
	}
	return &res, nil
}

// UpdateExam writes mutable exam fields back, guarded by version
func (db *DB) UpdateExam(ctx context.Context, ex *persistence.Exam) error {
	slots, err := json.Marshal(ex.Slots)
	if err != nil {
		return fmt.Errorf("can't marshal slots: %w", err)
	}
	var score []byte
	if ex.Score != nil {
		if score, err = json.Marshal(ex.Score); err != nil {
			return fmt.Errorf("can't marshal score: %w", err)
		}
	}
	rows, err := db.pool.Exec(ctx, `UPDATE exams SET
	slots = $3,
	current_slot = $4,
	score = $5,
	updated = $6,
	version = $2 + 1
	WHERE id = $1 and version = $2`, ex.ID, ex.Version, slots, ex.CurrentSlot, score, time.Now())
	if err != nil {
		return fmt.Errorf("can't update exam: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("can't update exam, no records found")
	}
	ex.Version++
	return nil
}

// MoveExamToHistory copies the exam into the history store and drops the
// active row. A no-op when the exam was moved already.
func (db *DB) MoveExamToHistory(ctx context.Context, id string) error {
	cmd, err := db.pool.Exec(ctx, `INSERT INTO exams_history(id, user_id, template_id, slots, current_slot, score, started, expires, version, moved)
	SELECT id, user_id, template_id, slots, current_slot, score, started, expires, version, $2 FROM exams WHERE id = $1
	ON CONFLICT (id) DO NOTHING`, id, time.Now())
	if err != nil {
		return fmt.Errorf("can't copy exam to history: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return nil
	}
	if _, err := db.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id); err != nil {
		return fmt.Errorf("can't drop active exam: %w", err)
	}
	return nil
}

// LoadUserExams returns the candidate's resolved exams from history
func (db *DB) LoadUserExams(ctx context.Context, userID string) ([]*persistence.Exam, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, user_id, template_id, slots, current_slot, score, started, expires, version
	FROM exams_history WHERE user_id = $1 ORDER BY started DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("can't load exams: %w", err)
	}
	defer rows.Close()
	res := []*persistence.Exam{}
	for rows.Next() {
		var ex persistence.Exam
		var slots, score []byte
		if err := rows.Scan(&ex.ID, &ex.UserID, &ex.TemplateID, &slots, &ex.CurrentSlot,
			&score, &ex.Started, &ex.Expires, &ex.Version); err != nil {
			return nil, fmt.Errorf("can't retrieve exams: %w", err)
		}
		if err := json.Unmarshal(slots, &ex.Slots); err != nil {
			return nil, fmt.Errorf("can't unmarshal slots: %w", err)
		}
		if len(score) > 0 {
			ex.Score = &persistence.ScoreInfo{}
			if err := json.Unmarshal(score, ex.Score); err != nil {
				return nil, fmt.Errorf("can't unmarshal score: %w", err)
			}
		}
		res = append(res, &ex)
	}
	return res, nil
}

// InsertTemplate inserts a paper template
func (db *DB) InsertTemplate(ctx context.Context, t *persistence.Template) error {
	qs, err := json.Marshal(t.Questions)
	if err != nil {
		return fmt.Errorf("can't marshal questions: %w", err)
	}
	rows, err := db.pool.Query(ctx, `INSERT INTO templates(id, name, duration, questions, deprecated, created)
	VALUES($1, $2, $3, $4, $5, $6)`, t.ID, t.Name, t.Duration, qs, t.Deprecated, t.Created)
	if err != nil {
		return fmt.Errorf("can't insert template: %w", err)
	}
	defer rows.Close()
	return nil
}

// LoadTemplate loads template from DB, nil if absent
func (db *DB) LoadTemplate(ctx context.Context, id string) (*persistence.Template, error) {
	var res persistence.Template
	var qs []byte
	err := db.pool.QueryRow(ctx, `SELECT id, name, duration, questions, deprecated, created FROM templates
		WHERE id = $1`, id).Scan(&res.ID, &res.Name, &res.Duration, &qs, &res.Deprecated, &res.Created)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load template: %w", err)
	}
	if err := json.Unmarshal(qs, &res.Questions); err != nil {
		return nil, fmt.Errorf("can't unmarshal questions: %w", err)
	}
	return &res, nil
}

// UpdateTemplate writes template fields back
func (db *DB) UpdateTemplate(ctx context.Context, t *persistence.Template) error {
	qs, err := json.Marshal(t.Questions)
	if err != nil {
		return fmt.Errorf("can't marshal questions: %w", err)
	}
	rows, err := db.pool.Exec(ctx, `UPDATE templates SET
	name = $2,
	duration = $3,
	questions = $4,
	deprecated = $5
	WHERE id = $1`, t.ID, t.Name, t.Duration, qs, t.Deprecated)
	if err != nil {
		return fmt.Errorf("can't update template: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("can't update template, no records found")
	}
	return nil
}

// LoadQuestion loads one pool entry, nil if absent
func (db *DB) LoadQuestion(ctx context.Context, id string) (*persistence.Question, error) {
	var res persistence.Question
	err := db.pool.QueryRow(ctx, `SELECT id, q_type, q_index, text, used_times, created FROM questions
		WHERE id = $1`, id).Scan(&res.ID, &res.Type, &res.Index, &res.Text, &res.UsedTimes, &res.Created)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load question: %w", err)
	}
	return &res, nil
}

// LoadQuestions returns pool entries of the type with index <= maxIndex,
// least used first
func (db *DB) LoadQuestions(ctx context.Context, qType, maxIndex int) ([]*persistence.Question, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, q_type, q_index, text, used_times, created FROM questions
		WHERE q_type = $1 AND q_index <= $2 ORDER BY used_times ASC`, qType, maxIndex)
	if err != nil {
		return nil, fmt.Errorf("can't load questions: %w", err)
	}
	defer rows.Close()
	res := []*persistence.Question{}
	for rows.Next() {
		var q persistence.Question
		if err := rows.Scan(&q.ID, &q.Type, &q.Index, &q.Text, &q.UsedTimes, &q.Created); err != nil {
			return nil, fmt.Errorf("can't retrieve questions: %w", err)
		}
		res = append(res, &q)
	}
	return res, nil
}

// AddQuestionUsage bumps the usage counter of one pool entry
func (db *DB) AddQuestionUsage(ctx context.Context, id string) error {
	rows, err := db.pool.Exec(ctx, `UPDATE questions SET used_times = used_times + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("can't update question usage: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("can't update question usage, no records found")
	}
	return nil
}

// InsertPretest inserts the audio pretest record
func (db *DB) InsertPretest(ctx context.Context, p *persistence.Pretest) error {
	rows, err := db.pool.Query(ctx, `INSERT INTO pretests(id, user_id, text, upload_path, status, recognized_text, created)
	VALUES($1, $2, $3, $4, $5, $6, $7)`, p.ID, p.UserID, p.Text, p.UploadPath, p.Status, p.RecognizedText, p.Created)
	if err != nil {
		return fmt.Errorf("can't insert pretest: %w", err)
	}
	defer rows.Close()
	return nil
}

// LoadPretest loads the pretest record, nil if absent
func (db *DB) LoadPretest(ctx context.Context, id string) (*persistence.Pretest, error) {
	var res persistence.Pretest
	err := db.pool.QueryRow(ctx, `SELECT id, user_id, text, upload_path, status, recognized_text, created FROM pretests
		WHERE id = $1`, id).Scan(&res.ID, &res.UserID, &res.Text, &res.UploadPath, &res.Status,
		&res.RecognizedText, &res.Created)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("can't load pretest: %w", err)
	}
	return &res, nil
}

// UpdatePretest writes the recognition result back
func (db *DB) UpdatePretest(ctx context.Context, p *persistence.Pretest) error {
	rows, err := db.pool.Exec(ctx, `UPDATE pretests SET
	status = $2,
	recognized_text = $3
	WHERE id = $1`, p.ID, p.Status, p.RecognizedText)
	if err != nil {
		return fmt.Errorf("can't update pretest: %w", err)
	}
	if rows.RowsAffected() != 1 {
		return fmt.Errorf("can't update pretest, no records found")
	}
	return nil
}

// LockEmailTable marks the inform event taken, fails if taken already
func (db *DB) LockEmailTable(ctx context.Context, id, msgType string) error {
	cmd, err := db.pool.Exec(ctx, `INSERT INTO email_lock(id, msg_type, status) VALUES($1, $2, 0)
	ON CONFLICT (id, msg_type) DO NOTHING`, id, msgType)
	if err != nil {
		return fmt.Errorf("can't lock email table: %w", err)
	}
	if cmd.RowsAffected() != 1 {
		return fmt.Errorf("email event already taken")
	}
	return nil
}

// UnLockEmailTable stores the inform event outcome
func (db *DB) UnLockEmailTable(ctx context.Context, id, msgType string, value *int) error {
	_, err := db.pool.Exec(ctx, `UPDATE email_lock SET status = $3 WHERE id = $1 AND msg_type = $2`,
		id, msgType, *value)
	if err != nil {
		return fmt.Errorf("can't unlock email table: %w", err)
	}
	return nil
}

// Live returns no error if db is reachable and initialized
func (db *DB) Live(ctx context.Context) error {
	var exists bool
	if err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM pg_tables WHERE tablename = 'gue_jobs')`).Scan(&exists); err != nil {
		return fmt.Errorf("can't check table: %w", err)
	}
	if !exists {
		return fmt.Errorf("no migration done")
	}
	return nil
}
