package model

import (
	"fmt"
	"time"
)

type CampaignStatus string

const (
	CampaignDraft               CampaignStatus = "draft"
	CampaignScheduled           CampaignStatus = "scheduled"
	CampaignSending             CampaignStatus = "sending"
	CampaignCompleted           CampaignStatus = "completed"
	CampaignCompletedWithErrors CampaignStatus = "completed_with_errors"
	CampaignFailed              CampaignStatus = "failed"
)

// campaignTransitions is the total transition table. Anything not listed
// here is an invalid transition; terminal states have no outgoing edges.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignScheduled, CampaignSending, CampaignFailed},
	CampaignScheduled: {CampaignDraft, CampaignSending, CampaignFailed},
	CampaignSending:   {CampaignCompleted, CampaignCompletedWithErrors, CampaignFailed},
}

// ParseCampaignStatus rejects unknown status strings at the boundary.
func ParseCampaignStatus(raw string) (CampaignStatus, error) {
	switch CampaignStatus(raw) {
	case CampaignDraft, CampaignScheduled, CampaignSending,
		CampaignCompleted, CampaignCompletedWithErrors, CampaignFailed:
		return CampaignStatus(raw), nil
	}
	return "", fmt.Errorf("unknown campaign status %q", raw)
}

// CanTransition reports whether the edge s -> to exists in the table.
func (s CampaignStatus) CanTransition(to CampaignStatus) bool {
	for _, next := range campaignTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further automatic transition occurs.
func (s CampaignStatus) Terminal() bool {
	switch s {
	case CampaignCompleted, CampaignCompletedWithErrors, CampaignFailed:
		return true
	}
	return false
}

// Campaign is one named bulk-send operation against a set of contact
// groups using one template. TotalRecipients is snapshotted when a send
// is initiated and not recomputed mid-run, even if groups change.
type Campaign struct {
	ID          int64
	Name        string
	Status      CampaignStatus
	TemplateID  *int64
	GroupIDs    []int64
	ScheduledAt *time.Time

	TotalRecipients int
	SentCount       int
	FailedCount     int

	// Errors accumulates one human-readable string per recorded failure.
	Errors []string

	CreatedAt time.Time
	UpdatedAt time.Time
}
