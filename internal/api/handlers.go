package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/LeventeLantos/campaign-manager/internal/campaign"
	"github.com/LeventeLantos/campaign-manager/internal/model"
	"github.com/LeventeLantos/campaign-manager/internal/reconcile"
	"github.com/LeventeLantos/campaign-manager/internal/render"
	"github.com/LeventeLantos/campaign-manager/internal/scheduler"
	"github.com/LeventeLantos/campaign-manager/internal/store"
)

type Handler struct {
	store *store.Store
	svc   *campaign.Service
	rec   *reconcile.Reconciler
	sched *scheduler.Scheduler
}

func NewHandler(st *store.Store, svc *campaign.Service, rec *reconcile.Reconciler, sched *scheduler.Scheduler) *Handler {
	return &Handler{store: st, svc: svc, rec: rec, sched: sched}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- contacts ---

type contactRequest struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     string  `json:"phone"`
	Email     string  `json:"email"`
	Notes     string  `json:"notes"`
	GroupIDs  []int64 `json:"groupIds"`
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListContacts(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if !decode(w, r, &req) {
		return
	}

	c := &model.Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		Notes:     req.Notes,
	}
	if _, err := h.store.InsertContact(r.Context(), c); err != nil {
		writeErr(w, err)
		return
	}
	for _, gid := range req.GroupIDs {
		if err := h.store.AddContactToGroup(r.Context(), c.ID, gid); err != nil {
			writeErr(w, err)
			return
		}
	}
	c.GroupIDs = req.GroupIDs
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.store.ContactByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req contactRequest
	if !decode(w, r, &req) {
		return
	}

	c, err := h.store.ContactByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	c.FirstName = req.FirstName
	c.LastName = req.LastName
	c.Phone = req.Phone
	c.Email = req.Email
	c.Notes = req.Notes
	if err := h.store.UpdateContact(r.Context(), c); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteContact(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importRequest struct {
	Contacts []reconcile.ExternalContact `json:"contacts"`
}

func (h *Handler) ImportContacts(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.rec.Reconcile(r.Context(), req.Contacts)
	if err != nil {
		// Partial results still went in; report both.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- groups ---

type groupRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListGroups(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !decode(w, r, &req) {
		return
	}
	g := &model.ContactGroup{Name: req.Name, Color: req.Color}
	if _, err := h.store.InsertGroup(r.Context(), g); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	g, err := h.store.GroupByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteGroup(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathID(w, r)
	if !ok {
		return
	}
	cid, ok := pathInt64(w, r, "contactID")
	if !ok {
		return
	}
	if err := h.store.AddContactToGroup(r.Context(), cid, gid); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	gid, ok := pathID(w, r)
	if !ok {
		return
	}
	cid, ok := pathInt64(w, r, "contactID")
	if !ok {
		return
	}
	if err := h.store.RemoveContactFromGroup(r.Context(), cid, gid); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- templates ---

type templateRequest struct {
	Name     string `json:"name"`
	Body     string `json:"body"`
	Favorite bool   `json:"favorite"`
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListTemplates(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decode(w, r, &req) {
		return
	}
	t := &model.MessageTemplate{Name: req.Name, Body: req.Body, Favorite: req.Favorite}
	if _, err := h.store.InsertTemplate(r.Context(), t); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.store.TemplateByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req templateRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.store.TemplateByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	t.Name = req.Name
	t.Body = req.Body
	t.Favorite = req.Favorite
	if err := h.store.UpdateTemplate(r.Context(), t); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteTemplate(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewTemplate renders the stored body against a caller-provided
// contact without touching any persisted contact.
func (h *Handler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req contactRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.store.TemplateByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	c := &model.Contact{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
	}
	writeJSON(w, http.StatusOK, map[string]any{"preview": render.Render(t.Body, c)})
}

// --- campaigns ---

type campaignRequest struct {
	Name        string  `json:"name"`
	TemplateID  *int64  `json:"templateId"`
	GroupIDs    []int64 `json:"groupIds"`
	ScheduledAt string  `json:"scheduledAt"`
}

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListCampaigns(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !decode(w, r, &req) {
		return
	}

	c := &model.Campaign{
		Name:       req.Name,
		Status:     model.CampaignDraft,
		TemplateID: req.TemplateID,
		GroupIDs:   req.GroupIDs,
	}
	if req.ScheduledAt != "" {
		at, ok := parseFutureTime(w, req.ScheduledAt)
		if !ok {
			return
		}
		c.Status = model.CampaignScheduled
		c.ScheduledAt = &at
	}
	if _, err := h.store.InsertCampaign(r.Context(), c); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.store.CampaignByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, running := h.svc.ActiveRun(id); running {
		http.Error(w, "campaign send in progress", http.StatusConflict)
		return
	}
	if err := h.store.DeleteCampaign(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scheduleRequest struct {
	ScheduledAt string `json:"scheduledAt"`
}

func (h *Handler) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decode(w, r, &req) {
		return
	}
	at, ok := parseFutureTime(w, req.ScheduledAt)
	if !ok {
		return
	}
	if err := h.store.ScheduleCampaign(r.Context(), id, at); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UnscheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.UnscheduleCampaign(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	run, err := h.svc.StartSend(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"runId":      run.ID.String(),
		"campaignId": run.CampaignID,
	})
}

func (h *Handler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.svc.Cancel(id) {
		http.Error(w, "no active send for campaign", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (h *Handler) CampaignProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Progress(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Analytics(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) CampaignMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := h.store.MessagesByCampaign(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// --- scheduler ---

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// parseFutureTime parses an RFC3339 send time; only future instants are
// accepted, since a campaign is scheduled only for a future send.
func parseFutureTime(w http.ResponseWriter, raw string) (time.Time, bool) {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		http.Error(w, "invalid scheduledAt: "+err.Error(), http.StatusBadRequest)
		return time.Time{}, false
	}
	if !at.After(time.Now()) {
		http.Error(w, "scheduledAt must be in the future", http.StatusBadRequest)
		return time.Time{}, false
	}
	return at, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return pathInt64(w, r, "id")
}

func pathInt64(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(key), 10, 64)
	if err != nil {
		http.Error(w, "invalid "+key, http.StatusBadRequest)
		return 0, false
	}
	return v, true
}

func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, campaign.ErrSendInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, campaign.ErrNoTemplate),
		errors.Is(err, campaign.ErrNoRecipients),
		errors.Is(err, campaign.ErrTransportUnavailable):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
