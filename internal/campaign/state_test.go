package campaign

import (
	"testing"

	"github.com/LeventeLantos/campaign-manager/internal/model"
)

func TestStateMachine_BeginSendSnapshotsTotal(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(&model.Campaign{Status: model.CampaignDraft, SentCount: 3, FailedCount: 1})

	if err := sm.BeginSend(10); err != nil {
		t.Fatalf("BeginSend() error: %v", err)
	}

	c := sm.Campaign()
	if c.Status != model.CampaignSending {
		t.Fatalf("expected sending, got %s", c.Status)
	}
	if c.TotalRecipients != 10 || c.SentCount != 0 || c.FailedCount != 0 {
		t.Fatalf("counters not reset: %+v", c)
	}
}

func TestStateMachine_BeginSendRejectsTerminal(t *testing.T) {
	t.Parallel()

	for _, status := range []model.CampaignStatus{
		model.CampaignCompleted,
		model.CampaignCompletedWithErrors,
		model.CampaignFailed,
		model.CampaignSending,
	} {
		sm := NewStateMachine(&model.Campaign{Status: status})
		if err := sm.BeginSend(1); err == nil {
			t.Fatalf("BeginSend() from %s must fail", status)
		}
	}
}

func TestStateMachine_CounterInvariant(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(&model.Campaign{Status: model.CampaignDraft})
	if err := sm.BeginSend(2); err != nil {
		t.Fatal(err)
	}

	if err := sm.RecordSent(); err != nil {
		t.Fatal(err)
	}
	if err := sm.RecordFailed("message to +361 failed: declined"); err != nil {
		t.Fatal(err)
	}
	// Third attempt on a total of two must be rejected.
	if err := sm.RecordSent(); err == nil {
		t.Fatalf("expected attempt beyond totalRecipients to fail")
	}

	c := sm.Campaign()
	if c.SentCount+c.FailedCount != 2 {
		t.Fatalf("invariant broken: %+v", c)
	}
	if len(c.Errors) != 1 {
		t.Fatalf("expected one recorded error, got %v", c.Errors)
	}
}

func TestStateMachine_FinishStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		total        int
		sent, failed int
		want         model.CampaignStatus
	}{
		{"all sent", 4, 4, 0, model.CampaignCompleted},
		{"one failed", 4, 3, 1, model.CampaignCompletedWithErrors},
		{"all failed", 4, 0, 4, model.CampaignCompletedWithErrors},
		{"cancelled early", 4, 2, 0, model.CampaignCompletedWithErrors},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sm := NewStateMachine(&model.Campaign{Status: model.CampaignDraft})
			if err := sm.BeginSend(tc.total); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < tc.sent; i++ {
				if err := sm.RecordSent(); err != nil {
					t.Fatal(err)
				}
			}
			for i := 0; i < tc.failed; i++ {
				if err := sm.RecordFailed("boom"); err != nil {
					t.Fatal(err)
				}
			}

			got, err := sm.Finish()
			if err != nil {
				t.Fatalf("Finish() error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Finish() = %s, want %s", got, tc.want)
			}
			// Terminal states never go back to sending.
			if err := sm.BeginSend(1); err == nil {
				t.Fatalf("terminal state must not re-enter sending")
			}
		})
	}
}

func TestStateMachine_FinishRequiresSending(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(&model.Campaign{Status: model.CampaignDraft})
	if _, err := sm.Finish(); err == nil {
		t.Fatalf("Finish() on a draft must fail")
	}
}

func TestStateMachine_Analytics(t *testing.T) {
	t.Parallel()

	sm := NewStateMachine(&model.Campaign{
		Status:          model.CampaignCompletedWithErrors,
		TotalRecipients: 4,
		SentCount:       3,
		FailedCount:     1,
	})

	a := sm.Analytics()
	if a.PendingCount != 0 {
		t.Fatalf("expected pending=0, got %d", a.PendingCount)
	}
	if a.SuccessRate != 75.0 {
		t.Fatalf("expected successRate=75.0, got %v", a.SuccessRate)
	}
}

func TestStateMachine_AnalyticsZeroRecipients(t *testing.T) {
	t.Parallel()

	a := NewStateMachine(&model.Campaign{Status: model.CampaignFailed}).Analytics()
	if a.SuccessRate != 0 {
		t.Fatalf("expected successRate=0 with no recipients, got %v", a.SuccessRate)
	}
}
