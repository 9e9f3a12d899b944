package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/contacts", h.ListContacts)
	mux.HandleFunc("POST /v1/contacts", h.CreateContact)
	mux.HandleFunc("POST /v1/contacts/import", h.ImportContacts)
	mux.HandleFunc("GET /v1/contacts/{id}", h.GetContact)
	mux.HandleFunc("PUT /v1/contacts/{id}", h.UpdateContact)
	mux.HandleFunc("DELETE /v1/contacts/{id}", h.DeleteContact)

	mux.HandleFunc("GET /v1/groups", h.ListGroups)
	mux.HandleFunc("POST /v1/groups", h.CreateGroup)
	mux.HandleFunc("GET /v1/groups/{id}", h.GetGroup)
	mux.HandleFunc("DELETE /v1/groups/{id}", h.DeleteGroup)
	mux.HandleFunc("POST /v1/groups/{id}/contacts/{contactID}", h.AddGroupMember)
	mux.HandleFunc("DELETE /v1/groups/{id}/contacts/{contactID}", h.RemoveGroupMember)

	mux.HandleFunc("GET /v1/templates", h.ListTemplates)
	mux.HandleFunc("POST /v1/templates", h.CreateTemplate)
	mux.HandleFunc("GET /v1/templates/{id}", h.GetTemplate)
	mux.HandleFunc("PUT /v1/templates/{id}", h.UpdateTemplate)
	mux.HandleFunc("DELETE /v1/templates/{id}", h.DeleteTemplate)
	mux.HandleFunc("POST /v1/templates/{id}/preview", h.PreviewTemplate)

	mux.HandleFunc("GET /v1/campaigns", h.ListCampaigns)
	mux.HandleFunc("POST /v1/campaigns", h.CreateCampaign)
	mux.HandleFunc("GET /v1/campaigns/{id}", h.GetCampaign)
	mux.HandleFunc("DELETE /v1/campaigns/{id}", h.DeleteCampaign)
	mux.HandleFunc("POST /v1/campaigns/{id}/schedule", h.ScheduleCampaign)
	mux.HandleFunc("POST /v1/campaigns/{id}/unschedule", h.UnscheduleCampaign)
	mux.HandleFunc("POST /v1/campaigns/{id}/send", h.SendCampaign)
	mux.HandleFunc("POST /v1/campaigns/{id}/cancel", h.CancelCampaign)
	mux.HandleFunc("GET /v1/campaigns/{id}/progress", h.CampaignProgress)
	mux.HandleFunc("GET /v1/campaigns/{id}/analytics", h.CampaignAnalytics)
	mux.HandleFunc("GET /v1/campaigns/{id}/messages", h.CampaignMessages)

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("campaign-manager"))
	})

	return mux
}
