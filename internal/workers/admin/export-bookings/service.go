package exportbookings

import (
	"context"
	"fmt"
	"strings"

	"mockexam-workers/internal/common/aws"
	"mockexam-workers/internal/common/errors"
	"mockexam-workers/internal/common/hubspot"
	"mockexam-workers/internal/common/logger"
	"mockexam-workers/internal/common/metrics"
	"mockexam-workers/internal/common/validation"

	"github.com/google/uuid"
)

type Service struct {
	config   *Config
	logger   logger.Logger
	bookings BookingReader
	mailer   Mailer
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:   config,
		logger:   deps.Logger,
		bookings: deps.Bookings,
		mailer:   deps.Mailer,
	}
}

func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	ids := DedupeIDs(input.BookingIDs)
	mockExamID := strings.TrimSpace(input.MockExamID)

	if len(ids) == 0 && mockExamID == "" {
		return nil, errors.NewValidationFailedError("bookingIds or mockExamId is required")
	}
	if input.RecipientEmail != "" && !validation.ValidateEmail(input.RecipientEmail) {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("recipientEmail %q is not a valid address", input.RecipientEmail))
	}
	if s.bookings == nil {
		return nil, errors.NewCRMNotConfiguredError()
	}

	var (
		objects []hubspot.Object
		err     error
	)
	if len(ids) > 0 {
		objects, err = s.readSelection(ctx, ids)
	} else {
		objects, err = s.readExamBookings(ctx, mockExamID)
	}
	if err != nil {
		return nil, err
	}

	rows := make([]BookingRow, 0, len(objects))
	for _, obj := range objects {
		row := rowFromObject(obj)
		if input.ExcludeCancelled && row.Status == statusCancelled {
			continue
		}
		rows = append(rows, row)
	}

	data, err := RenderCSV(rows)
	if err != nil {
		return nil, errors.NewExportRenderFailedError(err)
	}

	exportID := uuid.New().String()
	output := &Output{
		ExportID: exportID,
		RowCount: len(rows),
		CSV:      string(data),
		FileName: FileName(exportID),
	}
	metrics.BookingsExported.Add(float64(len(rows)))

	if input.RecipientEmail != "" {
		delivered, err := s.deliver(ctx, input.RecipientEmail, output, data)
		if err != nil {
			return nil, err
		}
		output.Delivered = delivered
	}

	s.logger.Info("Bookings exported", map[string]interface{}{
		"exportId":  output.ExportID,
		"rowCount":  output.RowCount,
		"selected":  len(ids),
		"mockExam":  mockExamID,
		"delivered": output.Delivered,
	})

	return output, nil
}

// readSelection batch-reads the selected ids and returns them in selection
// order. Ids HubSpot no longer knows are skipped.
func (s *Service) readSelection(ctx context.Context, ids []string) ([]hubspot.Object, error) {
	found, err := s.bookings.BatchReadObjects(ctx, hubspot.ObjectBookings, ids, bookingProperties)
	if err != nil {
		return nil, hubspot.ToStandardError("batch read bookings", err)
	}

	byID := make(map[string]hubspot.Object, len(found))
	for _, obj := range found {
		byID[obj.ID] = obj
	}

	ordered := make([]hubspot.Object, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if obj, ok := byID[id]; ok {
			ordered = append(ordered, obj)
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		s.logger.Warn("Selected bookings not found in HubSpot", map[string]interface{}{
			"missing": missing,
		})
	}
	return ordered, nil
}

func (s *Service) readExamBookings(ctx context.Context, mockExamID string) ([]hubspot.Object, error) {
	req := hubspot.SearchRequest{
		FilterGroups: []hubspot.FilterGroup{{Filters: []hubspot.Filter{
			{PropertyName: propMockExamID, Operator: "EQ", Value: mockExamID},
		}}},
		Properties: bookingProperties,
		Sorts:      []hubspot.Sort{{PropertyName: propCreatedAt, Direction: "ASCENDING"}},
		Limit:      hubspot.MaxPageSize,
	}

	var objects []hubspot.Object
	for page := 0; page < s.config.MaxPages; page++ {
		resp, err := s.bookings.SearchObjects(ctx, hubspot.ObjectBookings, req)
		if err != nil {
			return nil, hubspot.ToStandardError("search bookings", err)
		}
		objects = append(objects, resp.Results...)

		next := resp.NextAfter()
		if next == "" {
			return objects, nil
		}
		req.After = next
	}

	s.logger.Warn("Export truncated at page limit", map[string]interface{}{
		"mockExamId": mockExamID,
		"maxPages":   s.config.MaxPages,
		"rows":       len(objects),
	})
	return objects, nil
}

func (s *Service) deliver(ctx context.Context, recipient string, output *Output, data []byte) (bool, error) {
	if s.mailer == nil || s.config.FromEmail == "" {
		s.logger.Warn("Export delivery requested but SES is not configured", map[string]interface{}{
			"exportId": output.ExportID,
		})
		return false, nil
	}

	messageID, err := s.mailer.SendWithAttachments(ctx, aws.RawEmail{
		From:     s.config.FromEmail,
		To:       []string{recipient},
		Subject:  fmt.Sprintf("Bookings export %s", output.ExportID),
		TextBody: fmt.Sprintf("Attached are %d bookings.", output.RowCount),
		Attachments: []aws.Attachment{{
			FileName:    output.FileName,
			ContentType: "text/csv",
			Data:        data,
		}},
	})
	if err != nil {
		return false, errors.NewExportDeliveryFailedError(recipient, err)
	}

	s.logger.Info("Export delivered", map[string]interface{}{
		"exportId":  output.ExportID,
		"messageId": messageID,
	})
	return true, nil
}

// DedupeIDs trims ids, drops blanks and repeats, and keeps first-seen order.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func FileName(exportID string) string {
	return "bookings-export-" + exportID + ".csv"
}
