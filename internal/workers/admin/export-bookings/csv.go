package exportbookings

import (
	"bytes"
	"encoding/csv"
	"strings"

	"mockexam-workers/internal/common/hubspot"
)

// HubSpot booking properties read for an export.
const (
	propBookingName = "booking_id"
	propStudentName = "name"
	propEmail       = "email"
	propStudentID   = "student_id"
	propExamType    = "mock_type"
	propExamDate    = "exam_date"
	propStatus      = "is_active"
	propCreatedAt   = "hs_createdate"
	propMockExamID  = "mock_exam_id"

	statusCancelled = "cancelled"
)

var bookingProperties = []string{
	propBookingName, propStudentName, propEmail, propStudentID,
	propExamType, propExamDate, propStatus, propCreatedAt,
}

var Columns = []string{
	"booking_id", "booking_name", "student_name", "student_email",
	"student_id", "exam_type", "exam_date", "status", "created_at",
}

type BookingRow struct {
	BookingID    string
	BookingName  string
	StudentName  string
	StudentEmail string
	StudentID    string
	ExamType     string
	ExamDate     string
	Status       string
	CreatedAt    string
}

// NormalizeStatus lower-cases and trims a booking status so "Cancelled" and
// " cancelled" compare equal.
func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func rowFromObject(obj hubspot.Object) BookingRow {
	p := obj.Properties
	createdAt := p[propCreatedAt]
	if createdAt == "" {
		createdAt = obj.CreatedAt
	}
	return BookingRow{
		BookingID:    obj.ID,
		BookingName:  p[propBookingName],
		StudentName:  p[propStudentName],
		StudentEmail: p[propEmail],
		StudentID:    p[propStudentID],
		ExamType:     p[propExamType],
		ExamDate:     p[propExamDate],
		Status:       NormalizeStatus(p[propStatus]),
		CreatedAt:    createdAt,
	}
}

func (r BookingRow) record() []string {
	fields := []string{
		r.BookingID, r.BookingName, r.StudentName, r.StudentEmail,
		r.StudentID, r.ExamType, r.ExamDate, r.Status, r.CreatedAt,
	}
	for i, f := range fields {
		fields[i] = EscapeCell(f)
	}
	return fields
}

// EscapeCell prefixes a quote to values a spreadsheet would evaluate as a
// formula. CRM fields are free text entered by students.
func EscapeCell(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + v
	}
	return v
}

// RenderCSV writes the header followed by one line per row.
func RenderCSV(rows []BookingRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Columns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row.record()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
