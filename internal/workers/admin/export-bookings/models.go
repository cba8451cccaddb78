package exportbookings

import (
	"context"

	"mockexam-workers/internal/common/aws"
	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/logger"
)

type Input struct {
	BookingIDs       []string `json:"bookingIds,omitempty"`
	MockExamID       string   `json:"mockExamId,omitempty"`
	ExcludeCancelled bool     `json:"excludeCancelled"`
	RecipientEmail   string   `json:"recipientEmail,omitempty"`
}

type Output struct {
	ExportID  string `json:"exportId"`
	RowCount  int    `json:"rowCount"`
	CSV       string `json:"csv"`
	FileName  string `json:"fileName"`
	Delivered bool   `json:"delivered"`
}

type BookingReader interface {
	BatchReadObjects(ctx context.Context, objectType string, ids []string, properties []string) ([]hubspot.Object, error)
	SearchObjects(ctx context.Context, objectType string, req hubspot.SearchRequest) (*hubspot.SearchResponse, error)
}

type Mailer interface {
	SendWithAttachments(ctx context.Context, msg aws.RawEmail) (string, error)
}

type ServiceDependencies struct {
	Logger   logger.Logger
	Bookings BookingReader
	Mailer   Mailer
}
