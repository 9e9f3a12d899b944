package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/cache"
	"github.com/LeventeLantos/campaign-manager/internal/model"
	"github.com/LeventeLantos/campaign-manager/internal/render"
	"github.com/LeventeLantos/campaign-manager/internal/send"
	"github.com/LeventeLantos/campaign-manager/internal/store"
)

// Service drives campaign sends: it resolves the recipient set, renders
// the bodies, runs the orchestrator off the caller's goroutine and
// persists every outcome. At most one run per campaign is in flight.
type Service struct {
	store     *store.Store
	orch      *send.Orchestrator
	transport send.Transport
	cache     cache.ProgressCache
	log       *slog.Logger

	mu      sync.Mutex
	running map[int64]*send.Run
}

func NewService(st *store.Store, tr send.Transport, pc cache.ProgressCache, opts send.Options, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if pc == nil {
		pc = cache.Noop{}
	}

	orch, err := send.NewOrchestrator(tr, opts, log)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:     st,
		orch:      orch,
		transport: tr,
		cache:     pc,
		log:       log,
		running:   map[int64]*send.Run{},
	}, nil
}

// StartSend initiates one campaign run. Configuration problems (no
// template, no sendable recipients, transport down) fail the call
// before any message is dispatched and leave the campaign failed. On
// success the returned run handle is already sending in the background.
func (s *Service) StartSend(ctx context.Context, campaignID int64) (*send.Run, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	run := send.NewRun(campaignID, cancel)

	s.mu.Lock()
	if _, busy := s.running[campaignID]; busy {
		s.mu.Unlock()
		cancel()
		return nil, ErrSendInProgress
	}
	s.running[campaignID] = run
	s.mu.Unlock()

	msgs, sm, tmplID, err := s.prepare(ctx, campaignID)
	if err != nil {
		s.release(campaignID)
		cancel()
		return nil, err
	}

	// Seed the handle so a progress query before the first batch
	// snapshot already carries the totals.
	run.Publish(send.Progress{
		Total:        len(msgs),
		TotalBatches: s.orch.TotalBatches(len(msgs)),
	})

	go s.runSend(runCtx, run, sm, tmplID, msgs)

	return run, nil
}

// prepare checks every send precondition and snapshots the run: status
// flipped to sending, totalRecipients fixed, one pending message row per
// recipient with the body rendered now.
func (s *Service) prepare(ctx context.Context, campaignID int64) ([]model.Message, *StateMachine, int64, error) {
	c, err := s.store.CampaignByID(ctx, campaignID)
	if err != nil {
		return nil, nil, 0, err
	}
	sm := NewStateMachine(c)

	if !c.Status.CanTransition(model.CampaignSending) {
		return nil, nil, 0, fmt.Errorf("campaign %d is %s and cannot start sending", c.ID, c.Status)
	}

	if c.TemplateID == nil {
		return nil, nil, 0, s.failBeforeSend(ctx, sm, ErrNoTemplate)
	}
	tmpl, err := s.store.TemplateByID(ctx, *c.TemplateID)
	if err != nil {
		return nil, nil, 0, err
	}

	// Union of the target groups, deduplicated by contact identity,
	// phoneless contacts excluded, ordered by contact id.
	recipients, err := s.store.ContactsInGroups(ctx, c.GroupIDs)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(recipients) == 0 {
		return nil, nil, 0, s.failBeforeSend(ctx, sm, ErrNoRecipients)
	}

	if !s.transport.Available() {
		return nil, nil, 0, s.failBeforeSend(ctx, sm, ErrTransportUnavailable)
	}

	if err := sm.BeginSend(len(recipients)); err != nil {
		return nil, nil, 0, err
	}

	msgs := make([]model.Message, len(recipients))
	for i := range recipients {
		r := &recipients[i]
		msgs[i] = model.Message{
			CampaignID: c.ID,
			ContactID:  r.ID,
			Phone:      r.Phone,
			Content:    render.Render(tmpl.Body, r),
		}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.BeginCampaignSend(ctx, c.ID, len(recipients)); err != nil {
		return nil, nil, 0, err
	}
	if err := tx.InsertMessages(ctx, msgs); err != nil {
		return nil, nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, 0, err
	}

	s.log.Info("campaign send initiated",
		"campaign", c.ID,
		"template", tmpl.ID,
		"recipients", len(recipients),
	)
	return msgs, sm, tmpl.ID, nil
}

// failBeforeSend records a configuration failure: campaign goes to
// failed with the reason on its error list, and the reason is returned
// to the caller.
func (s *Service) failBeforeSend(ctx context.Context, sm *StateMachine, cause error) error {
	if err := sm.Fail(cause.Error()); err != nil {
		return err
	}
	c := sm.Campaign()
	if err := s.store.FinishCampaign(ctx, c.ID, model.CampaignFailed, c.SentCount, c.FailedCount, c.Errors); err != nil {
		s.log.Error("persist failed campaign status", "campaign", c.ID, "err", err)
	}
	s.log.Warn("campaign send rejected", "campaign", c.ID, "reason", cause.Error())
	return cause
}

func (s *Service) runSend(ctx context.Context, run *send.Run, sm *StateMachine, tmplID int64, msgs []model.Message) {
	defer s.release(run.CampaignID)

	// Persistence must not stop when the run is cancelled; bookkeeping
	// of what was attempted always lands.
	dbCtx := context.WithoutCancel(ctx)

	out := make([]send.OutboundMessage, len(msgs))
	for i, m := range msgs {
		out[i] = send.OutboundMessage{Phone: m.Phone, Body: m.Content}
	}

	hooks := send.Hooks{
		OnOutcome: func(i int, verdict error) {
			m := &msgs[i]
			if verdict != nil {
				reason := fmt.Sprintf("message to %s failed: %v", m.Phone, verdict)
				if err := sm.RecordFailed(reason); err != nil {
					s.log.Error("record failure", "campaign", run.CampaignID, "err", err)
				}
				if err := s.store.MarkMessageFailed(dbCtx, m.ID, verdict.Error()); err != nil {
					s.log.Error("persist message failure", "message", m.ID, "err", err)
				}
				return
			}

			now := time.Now().UTC()
			if err := sm.RecordSent(); err != nil {
				s.log.Error("record success", "campaign", run.CampaignID, "err", err)
			}
			if err := s.store.MarkMessageSent(dbCtx, m.ID, now); err != nil {
				s.log.Error("persist message success", "message", m.ID, "err", err)
			}
			if err := s.cache.StoreSent(dbCtx, m.ID, now); err != nil {
				s.log.Warn("cache sent receipt", "message", m.ID, "err", err)
			}
		},
		OnProgress: func(p send.Progress) {
			run.Publish(p)
			if err := s.store.UpdateCampaignProgress(dbCtx, run.CampaignID, p.Sent, p.Failed); err != nil {
				s.log.Error("persist campaign progress", "campaign", run.CampaignID, "err", err)
			}
			if err := s.cache.StoreProgress(dbCtx, run.CampaignID, p); err != nil {
				s.log.Warn("cache campaign progress", "campaign", run.CampaignID, "err", err)
			}
		},
	}

	res, err := s.orch.Run(ctx, out, hooks)
	if err != nil {
		// Request-level transport failure before any attempt.
		if ferr := sm.Fail(err.Error()); ferr != nil {
			s.log.Error("mark campaign failed", "campaign", run.CampaignID, "err", ferr)
		}
		c := sm.Campaign()
		if perr := s.store.FinishCampaign(dbCtx, c.ID, model.CampaignFailed, c.SentCount, c.FailedCount, c.Errors); perr != nil {
			s.log.Error("persist failed campaign status", "campaign", c.ID, "err", perr)
		}
		run.Finish(send.Result{}, err)
		return
	}

	status, err := sm.Finish()
	if err != nil {
		s.log.Error("resolve terminal status", "campaign", run.CampaignID, "err", err)
		run.Finish(res, err)
		return
	}

	c := sm.Campaign()
	if perr := s.persistCompletion(dbCtx, c, status, tmplID); perr != nil {
		s.log.Error("persist terminal campaign state", "campaign", c.ID, "err", perr)
		run.Finish(res, &PersistError{Op: "campaign completion", Err: perr})
		return
	}

	s.log.Info("campaign send finished",
		"campaign", c.ID,
		"status", string(status),
		"sent", res.Sent,
		"failed", res.Failed,
		"cancelled", res.Cancelled,
	)
	run.Finish(res, nil)
}

// persistCompletion writes the terminal status and bumps the template
// usage counter in one transaction, so the counter moves exactly once
// per run that reached a terminal state.
func (s *Service) persistCompletion(ctx context.Context, c *model.Campaign, status model.CampaignStatus, tmplID int64) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.FinishCampaign(ctx, c.ID, status, c.SentCount, c.FailedCount, c.Errors); err != nil {
		return err
	}
	if err := tx.IncrementTemplateUseCount(ctx, tmplID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Service) release(campaignID int64) {
	s.mu.Lock()
	delete(s.running, campaignID)
	s.mu.Unlock()
}

// ActiveRun returns the in-flight run for a campaign, if any.
func (s *Service) ActiveRun(campaignID int64) (*send.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.running[campaignID]
	return run, ok
}

// Cancel requests the in-flight run to stop at the next batch boundary.
func (s *Service) Cancel(campaignID int64) bool {
	run, ok := s.ActiveRun(campaignID)
	if !ok {
		return false
	}
	run.Cancel()
	return true
}

// Progress answers a progress query from the best source available: the
// live run, then the cache, then the persisted counters.
func (s *Service) Progress(ctx context.Context, campaignID int64) (send.Progress, error) {
	if run, ok := s.ActiveRun(campaignID); ok {
		return run.Latest(), nil
	}

	if p, ok, err := s.cache.Progress(ctx, campaignID); err == nil && ok {
		return p, nil
	}

	c, err := s.store.CampaignByID(ctx, campaignID)
	if err != nil {
		return send.Progress{}, err
	}
	return send.Progress{
		Total:  c.TotalRecipients,
		Sent:   c.SentCount,
		Failed: c.FailedCount,
		Done:   c.Status.Terminal(),
		Errors: c.Errors,
	}, nil
}

// Analytics computes the derived numbers from the persisted campaign.
func (s *Service) Analytics(ctx context.Context, campaignID int64) (Analytics, error) {
	c, err := s.store.CampaignByID(ctx, campaignID)
	if err != nil {
		return Analytics{}, err
	}
	return NewStateMachine(c).Analytics(), nil
}

// StartDue kicks off every scheduled campaign whose send time passed.
// Used by the interval scheduler.
func (s *Service) StartDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.DueScheduled(ctx, now)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, c := range due {
		if _, err := s.StartSend(ctx, c.ID); err != nil {
			if errors.Is(err, ErrSendInProgress) {
				continue
			}
			s.log.Warn("scheduled campaign did not start", "campaign", c.ID, "err", err)
			continue
		}
		started++
	}
	return started, nil
}
