package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-roster/internal/logger"
	"github.com/stemsi/exstem-roster/internal/model"
	"github.com/stemsi/exstem-roster/internal/validator"
)

var studentColumns = []string{
	"students.id",
	"students.first_name",
	"students.last_name",
	"students.birthdate",
}

// likeEscaper makes LIKE metacharacters in user input match literally.
// Postgres uses backslash as the default LIKE escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// StudentRepository handles student data access.
//
// Reads run as single statements with the store's default transaction
// behaviour. Create, Update, Delete and Anonymize each run in their own
// transaction and commit only when their row-count post-condition holds.
type StudentRepository struct {
	db  DB
	sb  squirrel.StatementBuilderType
	log zerolog.Logger
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(db DB, log zerolog.Logger) *StudentRepository {
	return &StudentRepository{
		db:  db,
		sb:  newStatementBuilder(),
		log: logger.Component(log, "student_repository"),
	}
}

// FindAll returns every student. An empty table yields an empty slice.
func (r *StudentRepository) FindAll(ctx context.Context) ([]model.Student, error) {
	const op = "student.find_all"

	query, args, err := r.sb.Select(studentColumns...).From("students").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find all students query: %w", err)
	}

	return r.queryStudents(ctx, op, query, args)
}

// Count returns the number of students.
func (r *StudentRepository) Count(ctx context.Context) (int64, error) {
	const op = "student.count"

	query, args, err := r.sb.Select("COUNT(*)").From("students").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count students query: %w", err)
	}

	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Str("op", op).Msg("COUNT(*) returned no row")
			return 0, fmt.Errorf("%w: count query returned no row", ErrInconsistentState)
		}
		r.log.Error().Err(err).Str("op", op).Msg("Error counting students")
		return 0, storeFault(op, err)
	}

	return n, nil
}

// FindByID retrieves a student by ID. The boolean is false when no student
// has that ID; that case is not an error.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (model.Student, bool, error) {
	const op = "student.find_by_id"

	query, args, err := r.sb.Select(studentColumns...).
		From("students").
		Where(squirrel.Eq{"students.id": id}).
		ToSql()
	if err != nil {
		return model.Student{}, false, fmt.Errorf("build find student by id query: %w", err)
	}

	s, err := scanStudent(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Student{}, false, nil
		}
		r.log.Error().Err(err).Str("op", op).Int64("student_id", id).Msg("Error retrieving student")
		return model.Student{}, false, storeFault(op, err)
	}

	return s, true, nil
}

// FindByName returns students whose first or last name starts with prefix.
// Matching is case-sensitive and wildcard characters in prefix match
// literally. An empty prefix matches nothing.
func (r *StudentRepository) FindByName(ctx context.Context, prefix string) ([]model.Student, error) {
	const op = "student.find_by_name"

	if prefix == "" {
		return []model.Student{}, nil
	}

	pattern := likeEscaper.Replace(prefix) + "%"
	query, args, err := r.sb.Select(studentColumns...).
		From("students").
		Where(squirrel.Or{
			squirrel.Like{"students.first_name": pattern},
			squirrel.Like{"students.last_name": pattern},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find students by name query: %w", err)
	}

	return r.queryStudents(ctx, op, query, args)
}

// FindByTeacherID returns the students enrolled in any class taught by
// teacherID. A student enrolled in several of the teacher's classes appears
// once per enrollment.
func (r *StudentRepository) FindByTeacherID(ctx context.Context, teacherID int64) ([]model.Student, error) {
	const op = "student.find_by_teacher_id"

	query, args, err := r.sb.Select(studentColumns...).
		From("students").
		Join("school_class_students ON school_class_students.student_id = students.id").
		Join("school_classes ON school_classes.id = school_class_students.school_class_id").
		Where(squirrel.Eq{"school_classes.teacher_id": teacherID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find students by teacher query: %w", err)
	}

	return r.queryStudents(ctx, op, query, args)
}

// AverageAge returns the mean of the students' ages in whole years on asOf.
// The boolean is false when there are no students.
func (r *StudentRepository) AverageAge(ctx context.Context, asOf time.Time) (float64, bool, error) {
	const op = "student.average_age"

	query, args, err := r.sb.Select().
		Column(squirrel.Expr("AVG(EXTRACT(YEAR FROM AGE(?::date, students.birthdate)))::float8", model.DateOf(asOf))).
		From("students").
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build average age query: %w", err)
	}

	var avg *float64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&avg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.log.Error().Str("op", op).Msg("AVG returned no row")
			return 0, false, fmt.Errorf("%w: average query returned no row", ErrInconsistentState)
		}
		r.log.Error().Err(err).Str("op", op).Msg("Error computing average age")
		return 0, false, storeFault(op, err)
	}

	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

// Create inserts a new student and returns it with the store-generated ID.
// Any ID on the input is ignored.
func (r *StudentRepository) Create(ctx context.Context, s model.Student) (model.Student, error) {
	const op = "student.create"

	if err := validator.Struct(s); err != nil {
		return model.Student{}, fmt.Errorf("%w: %w", ErrInvalidStudent, err)
	}

	birthdate := model.DateOf(s.Birthdate)
	query, args, err := r.sb.Insert("students").
		Columns("first_name", "last_name", "birthdate").
		Values(s.FirstName, s.LastName, birthdate).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return model.Student{}, fmt.Errorf("build create student query: %w", err)
	}

	var id int64
	err = inTx(ctx, r.db, op, r.opLogger(op), func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: insert returned no generated id", ErrInconsistentState)
			}
			return storeFault(op, err)
		}
		return nil
	})
	if err != nil {
		return model.Student{}, err
	}

	created := s
	created.ID = id
	created.Birthdate = birthdate
	return created, nil
}

// Update overwrites the attributes of the student with s.ID. It commits only
// if exactly one row changed; an unknown ID yields ErrStudentNotFound.
func (r *StudentRepository) Update(ctx context.Context, s model.Student) (model.Student, error) {
	const op = "student.update"

	if err := validator.Struct(s); err != nil {
		return model.Student{}, fmt.Errorf("%w: %w", ErrInvalidStudent, err)
	}

	birthdate := model.DateOf(s.Birthdate)
	query, args, err := r.sb.Update("students").
		Set("first_name", s.FirstName).
		Set("last_name", s.LastName).
		Set("birthdate", birthdate).
		Where(squirrel.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return model.Student{}, fmt.Errorf("build update student query: %w", err)
	}

	err = inTx(ctx, r.db, op, r.opLogger(op).With().Int64("student_id", s.ID).Logger(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return storeFault(op, err)
		}
		return expectSingleRow(tag, s.ID, "update")
	})
	if err != nil {
		return model.Student{}, err
	}

	updated := s
	updated.Birthdate = birthdate
	return updated, nil
}

// Delete removes the student's enrollments and then the student, in one
// transaction. An unknown ID rolls back both statements and yields
// ErrStudentNotFound.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	const op = "student.delete"

	enrollmentsQuery, enrollmentsArgs, err := r.sb.Delete("school_class_students").
		Where(squirrel.Eq{"student_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete enrollments query: %w", err)
	}
	studentQuery, studentArgs, err := r.sb.Delete("students").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete student query: %w", err)
	}

	log := r.opLogger(op).With().Int64("student_id", id).Logger()
	return inTx(ctx, r.db, op, log, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, enrollmentsQuery, enrollmentsArgs...)
		if err != nil {
			return storeFault(op+": enrollments", err)
		}
		log.Debug().Int64("enrollments", tag.RowsAffected()).Msg("Enrollments removed")

		tag, err = tx.Exec(ctx, studentQuery, studentArgs...)
		if err != nil {
			return storeFault(op, err)
		}
		return expectSingleRow(tag, id, "delete")
	})
}

// Anonymize shortens the last name of every listed student to its first
// character followed by a period. All IDs are handled by one set-oriented
// statement in one transaction; unknown IDs are skipped. An empty list is a
// no-op.
func (r *StudentRepository) Anonymize(ctx context.Context, ids []int64) error {
	const op = "student.anonymize"

	if len(ids) == 0 {
		return nil
	}

	query, args, err := r.sb.Update("students").
		Set("last_name", squirrel.Expr("LEFT(last_name, 1) || '.'")).
		Where(squirrel.Expr("id = ANY(?)", ids)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build anonymize students query: %w", err)
	}

	log := r.opLogger(op).With().Int("requested", len(ids)).Logger()
	return inTx(ctx, r.db, op, log, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return storeFault(op, err)
		}
		if n := tag.RowsAffected(); n > int64(len(ids)) {
			return fmt.Errorf("%w: anonymize of %d ids affected %d rows", ErrInconsistentState, len(ids), n)
		}
		log.Debug().Int64("anonymized", tag.RowsAffected()).Msg("Last names anonymized")
		return nil
	})
}

func (r *StudentRepository) opLogger(op string) zerolog.Logger {
	return r.log.With().Str("op", op).Str("op_id", uuid.NewString()).Logger()
}

func (r *StudentRepository) queryStudents(ctx context.Context, op, query string, args []any) ([]model.Student, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error().Err(err).Str("op", op).Msg("Error querying students")
		return nil, storeFault(op, err)
	}
	defer rows.Close()

	students := make([]model.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, storeFault(op, err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		r.log.Error().Err(err).Str("op", op).Msg("Error iterating students")
		return nil, storeFault(op, err)
	}
	return students, nil
}

func scanStudent(row pgx.Row) (model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Birthdate)
	return s, err
}

// expectSingleRow is the commit condition for statements filtered on the
// student identity: exactly one row must have been affected.
func expectSingleRow(tag pgconn.CommandTag, id int64, verb string) error {
	switch n := tag.RowsAffected(); {
	case n == 1:
		return nil
	case n == 0:
		return fmt.Errorf("%w: id=%d, nothing to %s", ErrStudentNotFound, id, verb)
	default:
		return fmt.Errorf("%w: %s of id=%d affected %d rows", ErrInconsistentState, verb, id, n)
	}
}
