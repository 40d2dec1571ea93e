package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/messenjrali/msgr/internal/config"
	"github.com/messenjrali/msgr/internal/notify"
	"github.com/messenjrali/msgr/internal/outbox"
	"github.com/messenjrali/msgr/internal/realtime"
	"github.com/messenjrali/msgr/internal/rest"
	"github.com/messenjrali/msgr/internal/roster"
	"github.com/messenjrali/msgr/internal/session"
	"github.com/messenjrali/msgr/internal/status"
	"go.uber.org/zap"
)

// Handler serves the daemon's local control API over the profile socket.
type Handler struct {
	profile string
	machine *status.Machine
	creds   *session.Store
	rest    *rest.Client
	rt      *realtime.Manager
	roster  *roster.Reconciler
	notify  *notify.Store
	outbox  *outbox.Sender
	logger  *zap.Logger

	prefsMu sync.Mutex
	cfg     *config.Config
}

// Params carries the handler's dependencies.
type Params struct {
	Profile string
	Machine *status.Machine
	Creds   *session.Store
	Rest    *rest.Client
	Rt      *realtime.Manager
	Roster  *roster.Reconciler
	Notify  *notify.Store
	Outbox  *outbox.Sender
	Config  *config.Config
	Logger  *zap.Logger
}

// NewHandler creates the control API handler.
func NewHandler(p Params) *Handler {
	return &Handler{
		profile: p.Profile,
		machine: p.Machine,
		creds:   p.Creds,
		rest:    p.Rest,
		rt:      p.Rt,
		roster:  p.Roster,
		notify:  p.Notify,
		outbox:  p.Outbox,
		cfg:     p.Config,
		logger:  p.Logger,
	}
}

// Routes builds the route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/status", h.handleStatus)
	mux.HandleFunc("POST /v1/login", h.handleLogin)
	mux.HandleFunc("POST /v1/logout", h.handleLogout)

	mux.HandleFunc("GET /v1/conversations", h.handleListConversations)
	mux.HandleFunc("POST /v1/conversations", h.handleCreateConversation)
	mux.HandleFunc("POST /v1/conversations/refresh", h.handleRefreshConversations)
	mux.HandleFunc("POST /v1/conversations/{id}/select", h.handleSelectConversation)
	mux.HandleFunc("POST /v1/conversations/deselect", h.handleDeselect)
	mux.HandleFunc("POST /v1/conversations/{id}/messages", h.handleSendMessage)

	mux.HandleFunc("GET /v1/contacts", h.handleListContacts)
	mux.HandleFunc("DELETE /v1/contacts/{id}", h.handleDeleteContact)
	mux.HandleFunc("GET /v1/users/search", h.handleSearchUsers)

	mux.HandleFunc("GET /v1/notifications", h.handleListNotifications)
	mux.HandleFunc("POST /v1/notifications/{id}/read", h.handleMarkNotificationRead)
	mux.HandleFunc("POST /v1/notifications/read-all", h.handleMarkAllNotificationsRead)

	mux.HandleFunc("PATCH /v1/profile", h.handleUpdateProfile)

	mux.HandleFunc("GET /v1/prefs", h.handleGetPrefs)
	mux.HandleFunc("PATCH /v1/prefs", h.handleUpdatePrefs)

	return mux
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Profile:   h.profile,
		State:     string(h.machine.Current()),
		Connected: h.rt.IsConnected(),
	}
	if cur := h.creds.Current(); cur != nil {
		resp.User = userToView(&cur.User)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.rest.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeRESTError(w, err)
		return
	}

	if err := h.rt.Connect(); err != nil {
		h.logger.Warn("realtime connect after login failed", zap.Error(err))
	}
	if err := h.roster.Load(r.Context()); err != nil {
		h.logger.Warn("conversation load after login failed", zap.Error(err))
	}
	if err := h.roster.LoadContacts(r.Context()); err != nil {
		h.logger.Warn("contact load after login failed", zap.Error(err))
	}
	if err := h.notify.Load(r.Context()); err != nil {
		h.logger.Warn("notification load after login failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, userToView(user))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.rest.Logout(r.Context()); err != nil {
		h.logger.Warn("logout error", zap.Error(err))
	}
	h.rt.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListConversations(w http.ResponseWriter, r *http.Request) {
	selected := h.roster.Selected()
	convs := h.roster.Conversations()
	views := make([]conversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, conversationToView(c, selected))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.roster.CreateConversation(r.Context(), req.Kind, req.Name, req.ParticipantID)
	if err != nil {
		h.writeRESTError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversationToView(*c, h.roster.Selected()))
}

func (h *Handler) handleRefreshConversations(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.Load(r.Context()); err != nil {
		h.writeRESTError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSelectConversation(w http.ResponseWriter, r *http.Request) {
	h.roster.Select(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeselect(w http.ResponseWriter, r *http.Request) {
	h.roster.Deselect()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "message body is required")
		return
	}

	clientMsgID, err := h.outbox.Enqueue(r.PathValue("id"), req.Body)
	if err != nil {
		h.logger.Error("failed to queue message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to queue message")
		return
	}
	writeJSON(w, http.StatusAccepted, sendMessageResponse{ClientMsgID: clientMsgID})
}

func (h *Handler) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts := h.roster.Contacts()
	views := make([]contactView, 0, len(contacts))
	for _, c := range contacts {
		views = append(views, contactToView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteContact(r.Context(), r.PathValue("id")); err != nil {
		h.writeRESTError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	results, err := h.roster.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeRESTError(w, err)
		return
	}
	views := make([]searchResultView, 0, len(results))
	for _, res := range results {
		views = append(views, searchResultToView(res))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ns := h.notify.Snapshot()
	resp := notificationsResponse{
		Unread:        h.notify.Unread(),
		Notifications: make([]notificationView, 0, len(ns)),
	}
	for _, n := range ns {
		resp.Notifications = append(resp.Notifications, notificationToView(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	h.notify.MarkAsRead(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	h.notify.MarkAllAsRead()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.rest.UpdateProfile(r.Context(), rest.UserRecord{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		Status:     req.Status,
		AvatarURL:  req.AvatarURL,
	})
	if err != nil {
		h.writeRESTError(w, err)
		return
	}

	if err := h.creds.UpdateUser(session.User{
		GivenName:  updated.GivenName,
		FamilyName: updated.FamilyName,
		Status:     updated.Status,
		AvatarURL:  updated.AvatarURL,
	}); err != nil {
		h.logger.Warn("failed to persist profile update", zap.Error(err))
	}

	if cur := h.creds.Current(); cur != nil {
		writeJSON(w, http.StatusOK, userToView(&cur.User))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	h.prefsMu.Lock()
	view := prefsView{
		Theme:          h.cfg.Display.Theme,
		ChatBackground: h.cfg.Display.ChatBackground,
		BackgroundBlur: h.cfg.Display.BackgroundBlur,
	}
	h.prefsMu.Unlock()
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUpdatePrefs(w http.ResponseWriter, r *http.Request) {
	var req prefsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.prefsMu.Lock()
	if req.Theme != nil {
		h.cfg.Display.Theme = *req.Theme
	}
	if req.ChatBackground != nil {
		h.cfg.Display.ChatBackground = *req.ChatBackground
	}
	if req.BackgroundBlur != nil {
		h.cfg.Display.BackgroundBlur = *req.BackgroundBlur
	}
	view := prefsView{
		Theme:          h.cfg.Display.Theme,
		ChatBackground: h.cfg.Display.ChatBackground,
		BackgroundBlur: h.cfg.Display.BackgroundBlur,
	}
	err := config.Save(session.ConfigPath(), h.cfg)
	h.prefsMu.Unlock()

	if err != nil {
		h.logger.Error("failed to save display preferences", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeRESTError(w http.ResponseWriter, err error) {
	var statusErr *rest.StatusError
	switch {
	case errors.Is(err, rest.ErrNotLoggedIn), errors.Is(err, rest.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &statusErr):
		writeError(w, statusErr.Code, err.Error())
	default:
		h.logger.Error("backend request failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
