// Package handler exposes the Link chat over HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"bondedlink/internal/common"
	"bondedlink/internal/link/service"
)

const maxBodyBytes = 64 << 10

type LinkHandler struct {
	chats  service.Opener
	logger *zap.Logger
}

func NewLinkHandler(chats service.Opener, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{chats: chats, logger: logger}
}

type sendRequest struct {
	Content string `json:"content"`
}

type consentRequest struct {
	RunID           string `json:"run_id"`
	SuggestedUserID string `json:"suggested_user_id"`
	Approved        bool   `json:"approved"`
}

const routePrefix = "/v1/link"

// RegisterRoutes mounts the chat under r. auth must put a common.Identity in
// the request context; limit guards the routes that reach the AI backend.
// Routes sit on r itself rather than a subrouter so a wrong method gets 405.
func (h *LinkHandler) RegisterRoutes(r *mux.Router, auth, limit mux.MiddlewareFunc) {
	authed := func(fn http.HandlerFunc) http.Handler { return auth(fn) }
	limited := func(fn http.HandlerFunc) http.Handler { return auth(limit(fn)) }

	r.Handle(routePrefix+"/messages", authed(h.GetMessages)).Methods(http.MethodGet)
	r.Handle(routePrefix+"/messages", limited(h.SendMessage)).Methods(http.MethodPost)
	r.Handle(routePrefix+"/outreach/check", limited(h.CheckOutreach)).Methods(http.MethodPost)
	r.Handle(routePrefix+"/consent", authed(h.ResolveConsent)).Methods(http.MethodPost)
	r.Handle(routePrefix+"/reset", authed(h.Reset)).Methods(http.MethodPost)
}

func (h *LinkHandler) chat(w http.ResponseWriter, r *http.Request) (service.Chat, bool) {
	id, ok := common.IdentityFrom(r.Context())
	if !ok {
		common.WriteError(w, common.NewUnauthorizedError("authorization required"))
		return nil, false
	}
	c, err := h.chats.Chat(r.Context(), id)
	if err != nil {
		h.logger.Warn("failed to open link chat", zap.String("user_id", id.UserID), zap.Error(err))
		common.WriteError(w, err)
		return nil, false
	}
	return c, true
}

// GetMessages returns the transcript. ?more=true loads the next older page
// first; ?refresh=true refetches what is already loaded.
func (h *LinkHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := h.chat(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	more, _ := strconv.ParseBool(q.Get("more"))
	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	var (
		view service.View
		err  error
	)
	switch {
	case more:
		view, err = c.LoadMore(r.Context())
	case refresh:
		view, err = c.Refresh(r.Context())
	default:
		view = c.Transcript()
	}
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, view)
}

func (h *LinkHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	c, ok := h.chat(w, r)
	if !ok {
		return
	}

	result, err := c.Send(r.Context(), req.Content)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, result)
}

func (h *LinkHandler) CheckOutreach(w http.ResponseWriter, r *http.Request) {
	c, ok := h.chat(w, r)
	if !ok {
		return
	}
	result, err := c.CheckStatus(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, result)
}

func (h *LinkHandler) ResolveConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if !decode(w, r, &req) {
		return
	}
	c, ok := h.chat(w, r)
	if !ok {
		return
	}

	result, err := c.ResolveConsent(r.Context(), req.RunID, req.SuggestedUserID, req.Approved)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, result)
}

func (h *LinkHandler) Reset(w http.ResponseWriter, r *http.Request) {
	c, ok := h.chat(w, r)
	if !ok {
		return
	}
	common.WriteJSON(w, http.StatusOK, c.Reset())
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.WriteError(w, common.NewInvalidInputError("invalid JSON body"))
		return false
	}
	return true
}
