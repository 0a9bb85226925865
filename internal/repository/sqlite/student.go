package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/repository"
)

// compile-time check that *DB implements repository.StudentRepository
var _ repository.StudentRepository = (*DB)(nil)

// InsertStudent inserts one students row. When CreatedAt is nil the row
// store assigns it and the value is written back into student.
//
// A duplicate ID yields apperror.ErrConflict carrying the same message the
// hosted row store reports.
func (db *DB) InsertStudent(ctx context.Context, student *model.Student) error {
	createdAt := time.Now().UTC()
	if student.CreatedAt != nil {
		createdAt = *student.CreatedAt
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO students (id, full_name, email, phone, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		student.ID,
		student.FullName,
		student.Email,
		student.Phone,
		createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(`duplicate key value violates unique constraint "students_pkey"`)
		}
		return fmt.Errorf("sqlite: inserting student %s: %w", student.ID, err)
	}

	student.CreatedAt = &createdAt
	return nil
}

// GetStudentByID fetches the single students row with the given id.
func (db *DB) GetStudentByID(ctx context.Context, id string) (*model.Student, error) {
	var (
		s         model.Student
		createdAt sql.NullTime
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, full_name, email, phone, created_at
		 FROM students WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.FullName, &s.Email, &s.Phone, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("student", id)
		}
		return nil, fmt.Errorf("sqlite: getting student %s: %w", id, err)
	}

	if createdAt.Valid {
		t := createdAt.Time
		s.CreatedAt = &t
	}
	return &s, nil
}
