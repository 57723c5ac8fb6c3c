package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-roster/internal/model"
)

var classColumns = []string{"id", "name", "teacher_id"}

// ClassRepository handles school class and enrollment data access.
type ClassRepository struct {
	db DB
	sb squirrel.StatementBuilderType
}

// NewClassRepository creates a new ClassRepository.
func NewClassRepository(db DB) *ClassRepository {
	return &ClassRepository{db: db, sb: newStatementBuilder()}
}

// GetByID retrieves a class by its ID.
func (r *ClassRepository) GetByID(ctx context.Context, id int64) (*model.SchoolClass, error) {
	query, args, err := r.sb.Select(classColumns...).
		From("school_classes").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get class query: %w", err)
	}

	c := &model.SchoolClass{}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Name, &c.TeacherID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%d", ErrClassNotFound, id)
		}
		return nil, storeFault("class.get_by_id", err)
	}
	return c, nil
}

// ListByTeacher retrieves the classes taught by a teacher.
func (r *ClassRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]model.SchoolClass, error) {
	const op = "class.list_by_teacher"

	query, args, err := r.sb.Select(classColumns...).
		From("school_classes").
		Where(squirrel.Eq{"teacher_id": teacherID}).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list classes query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeFault(op, err)
	}
	defer rows.Close()

	classes := make([]model.SchoolClass, 0)
	for rows.Next() {
		var c model.SchoolClass
		if err := rows.Scan(&c.ID, &c.Name, &c.TeacherID); err != nil {
			return nil, storeFault(op, err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFault(op, err)
	}
	return classes, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, c *model.SchoolClass) error {
	query, args, err := r.sb.Insert("school_classes").
		Columns("name", "teacher_id").
		Values(c.Name, c.TeacherID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create class query: %w", err)
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&c.ID); err != nil {
		return storeFault("class.create", err)
	}
	return nil
}

// Enroll adds a student to a class. Enrolling twice is a no-op.
func (r *ClassRepository) Enroll(ctx context.Context, classID, studentID int64) error {
	query, args, err := r.sb.Insert("school_class_students").
		Columns("student_id", "school_class_id").
		Values(studentID, classID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build enroll query: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: class=%d student=%d", ErrEnrollmentReference, classID, studentID)
		}
		return storeFault("class.enroll", err)
	}
	return nil
}

// Unenroll removes a student from a class.
func (r *ClassRepository) Unenroll(ctx context.Context, classID, studentID int64) error {
	query, args, err := r.sb.Delete("school_class_students").
		Where(squirrel.Eq{"student_id": studentID, "school_class_id": classID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build unenroll query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return storeFault("class.unenroll", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: class=%d student=%d", ErrEnrollmentNotFound, classID, studentID)
	}
	return nil
}

// CountEnrollments returns how many classes a student is enrolled in.
func (r *ClassRepository) CountEnrollments(ctx context.Context, studentID int64) (int64, error) {
	query, args, err := r.sb.Select("COUNT(*)").
		From("school_class_students").
		Where(squirrel.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count enrollments query: %w", err)
	}

	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: enrollment count returned no row", ErrInconsistentState)
		}
		return 0, storeFault("class.count_enrollments", err)
	}
	return n, nil
}

// ListEnrollments returns the enrollments of a class ordered by student.
func (r *ClassRepository) ListEnrollments(ctx context.Context, classID int64) ([]model.Enrollment, error) {
	const op = "class.list_enrollments"

	query, args, err := r.sb.Select("student_id", "school_class_id").
		From("school_class_students").
		Where(squirrel.Eq{"school_class_id": classID}).
		OrderBy("student_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list enrollments query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeFault(op, err)
	}
	defer rows.Close()

	enrollments := make([]model.Enrollment, 0)
	for rows.Next() {
		var e model.Enrollment
		if err := rows.Scan(&e.StudentID, &e.SchoolClassID); err != nil {
			return nil, storeFault(op, err)
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFault(op, err)
	}
	return enrollments, nil
}
