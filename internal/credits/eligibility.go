// Package credits derives per-category booking eligibility from the credit
// balances carried in a student login response.
package credits

import (
	"fmt"
	"sort"
)

// Category is an exam category as displayed to students.
type Category string

const (
	SituationalJudgment Category = "Situational Judgment"
	ClinicalSkills      Category = "Clinical Skills"
)

// Categories returns the exam categories in display order.
func Categories() []Category {
	return []Category{SituationalJudgment, ClinicalSkills}
}

// CreditSnapshot holds the raw balances from a login response.
// SJMiniCredits and MockDiscussionTokens are carried but not mapped to a category.
type CreditSnapshot struct {
	SJCredits            int `json:"sj_credits"`
	CSCredits            int `json:"cs_credits"`
	SJMiniCredits        int `json:"sjmini_credits"`
	MockDiscussionTokens int `json:"mock_discussion_token"`
	SharedMockCredits    int `json:"shared_mock_credits"`
}

// specific returns the category-specific balance.
func (s CreditSnapshot) specific(c Category) int {
	switch c {
	case SituationalJudgment:
		return s.SJCredits
	case ClinicalSkills:
		return s.CSCredits
	}
	return 0
}

// IdentitySnapshot is the student identity copied into every record.
type IdentitySnapshot struct {
	StudentName string  `json:"name"`
	ContactID   *string `json:"contact_id"`
}

// LoginResponse is the subset of the authentication response the transformer reads.
// A nil Credits means the response carried no credit data.
type LoginResponse struct {
	Identity IdentitySnapshot
	Credits  *CreditSnapshot
}

type CreditBreakdown struct {
	SpecificCredits int `json:"specificCredits"`
	SharedCredits   int `json:"sharedCredits"`
	TotalCredits    int `json:"totalCredits"`
}

// EligibilityRecord describes whether, and with how many credits, a student
// may book exams of one category.
type EligibilityRecord struct {
	Eligible         bool            `json:"eligible"`
	AvailableCredits int             `json:"availableCredits"`
	CreditBreakdown  CreditBreakdown `json:"creditBreakdown"`
	StudentName      string          `json:"studentName"`
	ContactID        *string         `json:"contactId"`
	EnrollmentID     *string         `json:"enrollmentId"`
	ErrorMessage     *string         `json:"errorMessage"`
}

// Eligibility maps each offered category to its record. An empty mapping means
// no credit data was available, which is not the same as zero credits.
type Eligibility map[Category]EligibilityRecord

// Available reports whether the mapping carries credit data.
func (e Eligibility) Available() bool {
	return len(e) > 0
}

// EligibleCategories returns the eligible category names sorted.
func (e Eligibility) EligibleCategories() []string {
	out := make([]string, 0, len(e))
	for c, rec := range e {
		if rec.Eligible {
			out = append(out, string(c))
		}
	}
	sort.Strings(out)
	return out
}

// IneligibleMessage is the error text shown for a category with no credits.
func IneligibleMessage(c Category) string {
	return fmt.Sprintf("You have 0 credits available for %s exams.", c)
}

// Transform builds one independent record per category. It never fails and
// never mutates its input.
func Transform(resp *LoginResponse) Eligibility {
	out := Eligibility{}
	if resp == nil || resp.Credits == nil {
		return out
	}

	shared := resp.Credits.SharedMockCredits
	for _, c := range Categories() {
		out[c] = newRecord(c, resp.Credits.specific(c), shared, resp.Identity)
	}
	return out
}

func newRecord(c Category, specific, shared int, id IdentitySnapshot) EligibilityRecord {
	breakdown := CreditBreakdown{
		SpecificCredits: specific,
		SharedCredits:   shared,
		TotalCredits:    specific + shared,
	}

	rec := EligibilityRecord{
		Eligible:         breakdown.TotalCredits > 0,
		AvailableCredits: breakdown.TotalCredits,
		CreditBreakdown:  breakdown,
		StudentName:      id.StudentName,
		ContactID:        copyString(id.ContactID),
	}
	if !rec.Eligible {
		msg := IneligibleMessage(c)
		rec.ErrorMessage = &msg
	}
	return rec
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
