package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stemsi/exstem-roster/internal/model"
)

func TestStructAcceptsCompleteStudent(t *testing.T) {
	s := model.Student{FirstName: "Anna", LastName: "Kowalska", Birthdate: model.Date(2000, time.January, 1)}

	if err := Struct(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructReportsMissingFields(t *testing.T) {
	err := Struct(model.Student{FirstName: "Anna"})

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if _, ok := ve.Fields["last_name"]; !ok {
		t.Errorf("missing last_name entry: %v", ve.Fields)
	}
	if _, ok := ve.Fields["birthdate"]; !ok {
		t.Errorf("missing birthdate entry: %v", ve.Fields)
	}
	if _, ok := ve.Fields["first_name"]; ok {
		t.Errorf("unexpected first_name entry: %v", ve.Fields)
	}
	if !strings.HasPrefix(err.Error(), "validation failed: ") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStructRejectsLongNames(t *testing.T) {
	s := model.Student{
		FirstName: strings.Repeat("a", 101),
		LastName:  "Nowak",
		Birthdate: model.Date(2001, time.June, 1),
	}

	var ve *ValidationError
	if err := Struct(s); !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if msg := ve.Fields["first_name"]; !strings.Contains(msg, "first_name") {
		t.Errorf("first_name message = %q", msg)
	}
}

func TestTranslateErrorsPlainError(t *testing.T) {
	fields := TranslateErrors(errors.New("boom"))

	if fields["detail"] != "boom" {
		t.Errorf("fields = %v", fields)
	}
}
