package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/dojo-management/internal/domain/attendance"
	"github.com/dojo-hub/dojo-management/internal/domain/grade"
	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MemberRepository implements member.Repository for PostgreSQL.
type MemberRepository struct {
	conn *Connection
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(conn *Connection) *MemberRepository {
	return &MemberRepository{conn: conn}
}

var _ member.Repository = (*MemberRepository)(nil)

const memberColumns = `id, name, category, current_grade, join_date, last_exam_date, active`

// ─────────────────────────────────────────────────────────────────────────────
// Members
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a member together with any history it already carries.
func (r *MemberRepository) Create(ctx context.Context, m *member.Member) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO members (`+memberColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.ID, m.Name, string(m.Category), string(m.CurrentGrade), m.JoinDate, m.LastExamDate, m.Active,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrMemberAlreadyExists
			}
			return fmt.Errorf("failed to create member: %w", err)
		}

		for _, rec := range m.Attendance {
			rec.MemberID = m.ID
			if err := insertAttendance(ctx, tx, rec); err != nil {
				return err
			}
		}
		for _, rec := range m.Exams {
			rec.MemberID = m.ID
			if err := insertExam(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns a member with their full history.
func (r *MemberRepository) Get(ctx context.Context, id string) (*member.Member, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	m, err := scanMember(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member %s: %w", id, err)
	}

	if err := r.loadHistory(ctx, map[string]*member.Member{m.ID: m}); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns members matching the filter ordered by ID.
func (r *MemberRepository) List(ctx context.Context, filter member.ListFilter) ([]*member.Member, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "active")
	}

	query := `SELECT ` + memberColumns + ` FROM members`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var (
		out   []*member.Member
		index = make(map[string]*member.Member)
	)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, m)
		index[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	if err := r.loadHistory(ctx, index); err != nil {
		return nil, err
	}
	return out, nil
}

// SetActive toggles the active flag.
func (r *MemberRepository) SetActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	tag, err := r.conn.Exec(ctx, `UPDATE members SET active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update member %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMemberNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

// AppendAttendance adds a record to the member's attendance ledger.
func (r *MemberRepository) AppendAttendance(ctx context.Context, rec attendance.Record) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()
	return insertAttendance(ctx, r.conn, rec)
}

// RecordExam stores an exam outcome and, when promote is set, moves the
// member to rec.ToGrade inside the same transaction. The member row is
// locked so concurrent registrations for one member are serialised.
func (r *MemberRepository) RecordExam(ctx context.Context, rec member.ExamRecord, promote bool) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT current_grade FROM members WHERE id = $1 FOR UPDATE`, rec.MemberID).Scan(&current)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrMemberNotFound
			}
			return fmt.Errorf("failed to lock member %s: %w", rec.MemberID, err)
		}
		if grade.ID(current) != rec.FromGrade {
			return shared.ErrExamGradeMismatch
		}

		if err := insertExam(ctx, tx, rec); err != nil {
			return err
		}
		if !promote {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE members SET current_grade = $1, last_exam_date = $2, updated_at = NOW()
			WHERE id = $3`,
			string(rec.ToGrade), rec.Date, rec.MemberID,
		)
		if err != nil {
			return fmt.Errorf("failed to update grade of %s: %w", rec.MemberID, err)
		}
		return nil
	})
}

func insertAttendance(ctx context.Context, q Querier, rec attendance.Record) error {
	_, err := q.Exec(ctx, `
		INSERT INTO attendance_records (id, member_id, session_date, present, session_kind)
		VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.MemberID, rec.Date, rec.Present, string(rec.SessionKind),
	)
	switch {
	case err == nil:
		return nil
	case IsForeignKeyViolation(err):
		return shared.ErrMemberNotFound
	case IsUniqueViolation(err):
		return shared.Errorf("attendance", "Append", shared.ErrAlreadyExists, "record %s already exists", rec.ID)
	default:
		return fmt.Errorf("failed to append attendance: %w", err)
	}
}

func insertExam(ctx context.Context, q Querier, rec member.ExamRecord) error {
	_, err := q.Exec(ctx, `
		INSERT INTO exam_records (id, member_id, exam_date, from_grade, to_grade, result, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.MemberID, rec.Date, string(rec.FromGrade), string(rec.ToGrade), string(rec.Result), rec.Notes,
	)
	switch {
	case err == nil:
		return nil
	case IsForeignKeyViolation(err):
		return shared.ErrMemberNotFound
	case IsUniqueViolation(err):
		return shared.Errorf("exam", "Append", shared.ErrAlreadyExists, "exam %s already exists", rec.ID)
	default:
		return fmt.Errorf("failed to append exam: %w", err)
	}
}

// loadHistory fills attendance and exams for every member in index with two
// queries.
func (r *MemberRepository) loadHistory(ctx context.Context, index map[string]*member.Member) error {
	if len(index) == 0 {
		return nil
	}
	ids := make([]string, 0, len(index))
	for id := range index {
		ids = append(ids, id)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, member_id, session_date, present, session_kind
		FROM attendance_records
		WHERE member_id = ANY($1)
		ORDER BY session_date, id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load attendance: %w", err)
	}
	for rows.Next() {
		var (
			rec  attendance.Record
			kind string
		)
		if err := rows.Scan(&rec.ID, &rec.MemberID, &rec.Date, &rec.Present, &kind); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan attendance: %w", err)
		}
		rec.SessionKind = attendance.SessionKind(kind)
		rec.Date = rec.Date.UTC()
		index[rec.MemberID].Attendance = append(index[rec.MemberID].Attendance, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load attendance: %w", err)
	}

	rows, err = r.conn.Query(ctx, `
		SELECT id, member_id, exam_date, from_grade, to_grade, result, notes
		FROM exam_records
		WHERE member_id = ANY($1)
		ORDER BY exam_date, id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load exams: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec              member.ExamRecord
			from, to, result string
		)
		if err := rows.Scan(&rec.ID, &rec.MemberID, &rec.Date, &from, &to, &result, &rec.Notes); err != nil {
			return fmt.Errorf("failed to scan exam: %w", err)
		}
		rec.FromGrade, rec.ToGrade = grade.ID(from), grade.ID(to)
		rec.Result = member.ExamResult(result)
		rec.Date = rec.Date.UTC()
		index[rec.MemberID].Exams = append(index[rec.MemberID].Exams, rec)
	}
	return rows.Err()
}

func scanMember(row pgx.Row) (*member.Member, error) {
	var (
		m                      member.Member
		category, currentGrade string
		lastExam               *time.Time
	)
	err := row.Scan(&m.ID, &m.Name, &category, &currentGrade, &m.JoinDate, &lastExam, &m.Active)
	if err != nil {
		return nil, err
	}

	m.Category = grade.Category(category)
	m.CurrentGrade = grade.ID(currentGrade)
	m.JoinDate = m.JoinDate.UTC()
	if lastExam != nil {
		d := lastExam.UTC()
		m.LastExamDate = &d
	}
	return &m, nil
}
