package model

// SchoolClass is a class group taught by a single teacher. Students join
// classes through the school_class_students association.
type SchoolClass struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	TeacherID int64  `json:"teacher_id"`
}

// Enrollment links a student to a class.
type Enrollment struct {
	StudentID     int64 `json:"student_id"`
	SchoolClassID int64 `json:"school_class_id"`
}
