// Package campaign owns the campaign lifecycle: the state machine with
// its aggregate counters, and the service that resolves recipients,
// renders bodies and drives a send run to a terminal status.
package campaign

import (
	"fmt"

	"github.com/LeventeLantos/campaign-manager/internal/model"
)

// StateMachine wraps one campaign and enforces the transition table and
// the counter invariant sent + failed <= total while a run mutates it.
// It is driven by a single goroutine per run and is not safe for
// concurrent use.
type StateMachine struct {
	c *model.Campaign
}

func NewStateMachine(c *model.Campaign) *StateMachine {
	return &StateMachine{c: c}
}

func (m *StateMachine) Campaign() *model.Campaign {
	return m.c
}

func (m *StateMachine) Status() model.CampaignStatus {
	return m.c.Status
}

// BeginSend enters sending and snapshots the recipient total. The
// counters and error list reset for the new run. Called synchronously
// before any message is dispatched, so a crash mid-send leaves the
// campaign observably stuck in sending rather than reverted to draft.
func (m *StateMachine) BeginSend(totalRecipients int) error {
	if !m.c.Status.CanTransition(model.CampaignSending) {
		return fmt.Errorf("invalid campaign transition %s -> %s", m.c.Status, model.CampaignSending)
	}
	m.c.Status = model.CampaignSending
	m.c.TotalRecipients = totalRecipients
	m.c.SentCount = 0
	m.c.FailedCount = 0
	m.c.Errors = nil
	return nil
}

func (m *StateMachine) RecordSent() error {
	return m.record(func() { m.c.SentCount++ })
}

// RecordFailed counts one failure and appends its human-readable reason
// to the campaign's error list.
func (m *StateMachine) RecordFailed(reason string) error {
	return m.record(func() {
		m.c.FailedCount++
		m.c.Errors = append(m.c.Errors, reason)
	})
}

func (m *StateMachine) record(apply func()) error {
	if m.c.Status != model.CampaignSending {
		return fmt.Errorf("campaign is %s, not sending", m.c.Status)
	}
	if m.c.SentCount+m.c.FailedCount >= m.c.TotalRecipients {
		return fmt.Errorf("attempt count would exceed %d recipients", m.c.TotalRecipients)
	}
	apply()
	return nil
}

// Finish resolves the terminal status for the run: completed only when
// every recipient was attempted and nothing failed, otherwise
// completed_with_errors. A cancelled run leaves unattempted recipients,
// which by the same rule lands in completed_with_errors.
func (m *StateMachine) Finish() (model.CampaignStatus, error) {
	if m.c.Status != model.CampaignSending {
		return "", fmt.Errorf("campaign is %s, not sending", m.c.Status)
	}
	status := model.CampaignCompletedWithErrors
	if m.c.FailedCount == 0 && m.c.SentCount == m.c.TotalRecipients {
		status = model.CampaignCompleted
	}
	m.c.Status = status
	return status, nil
}

// Fail marks the campaign failed before any per-message attempt, with
// the configuration problem recorded in the error list.
func (m *StateMachine) Fail(reason string) error {
	if !m.c.Status.CanTransition(model.CampaignFailed) {
		return fmt.Errorf("invalid campaign transition %s -> %s", m.c.Status, model.CampaignFailed)
	}
	m.c.Status = model.CampaignFailed
	m.c.Errors = append(m.c.Errors, reason)
	return nil
}

// Analytics are the derived per-campaign numbers.
type Analytics struct {
	Status          model.CampaignStatus `json:"status"`
	TotalRecipients int                  `json:"totalRecipients"`
	SentCount       int                  `json:"sentCount"`
	FailedCount     int                  `json:"failedCount"`
	PendingCount    int                  `json:"pendingCount"`
	SuccessRate     float64              `json:"successRate"`
}

func (m *StateMachine) Analytics() Analytics {
	c := m.c
	a := Analytics{
		Status:          c.Status,
		TotalRecipients: c.TotalRecipients,
		SentCount:       c.SentCount,
		FailedCount:     c.FailedCount,
		PendingCount:    c.TotalRecipients - c.SentCount - c.FailedCount,
	}
	if c.TotalRecipients > 0 {
		a.SuccessRate = float64(c.SentCount) / float64(c.TotalRecipients) * 100
	}
	return a
}
