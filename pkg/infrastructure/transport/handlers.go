package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/model"
	"github.com/Haimaimon/arrival-confirmation-system/pkg/domain/service"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type Handler struct {
	notifications service.NotificationService
	dispatch      service.DispatchService
	recipients    service.RecipientService
}

func Router(notifications service.NotificationService, dispatch service.DispatchService, recipients service.RecipientService) http.Handler {
	h := &Handler{notifications: notifications, dispatch: dispatch, recipients: recipients}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)

	s := r.PathPrefix("/api/v1").Subrouter()
	s.HandleFunc("/events/{eventID}/recipients/{recipientID}/notifications", h.sendNotification).Methods(http.MethodPost)
	s.HandleFunc("/events/{eventID}/notifications/bulk", h.dispatchBulk).Methods(http.MethodPost)
	s.HandleFunc("/events/{eventID}/notifications", h.eventNotifications).Methods(http.MethodGet)
	s.HandleFunc("/events/{eventID}/stats", h.eventStats).Methods(http.MethodGet)
	s.HandleFunc("/recipients/{recipientID}/notifications", h.recipientNotifications).Methods(http.MethodGet)
	s.HandleFunc("/recipients/{recipientID}/contact-summary", h.contactSummary).Methods(http.MethodGet)
	s.HandleFunc("/recipients/{recipientID}/confirm", h.confirm).Methods(http.MethodPost)
	s.HandleFunc("/recipients/{recipientID}/decline", h.decline).Methods(http.MethodPost)
	s.HandleFunc("/batches/{batchID}", h.getBatch).Methods(http.MethodGet)
	s.HandleFunc("/batches/{batchID}/notifications", h.batchNotifications).Methods(http.MethodGet)

	return logMiddleware(r)
}

func (h *Handler) sendNotification(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	recipientID, ok := pathID(w, r, "recipientID")
	if !ok {
		return
	}
	var req sendRequest
	if !decode(w, r, &req) {
		return
	}
	channel, err := model.ParseChannel(req.Channel)
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := h.notifications.Send(r.Context(), service.SendRequest{
		EventID: eventID, RecipientID: recipientID, Channel: channel, Message: req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newNotificationView(n))
}

func (h *Handler) dispatchBulk(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req bulkRequest
	if !decode(w, r, &req) {
		return
	}
	channel, err := model.ParseChannel(req.Channel)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.dispatch.Dispatch(r.Context(), service.DispatchRequest{
		EventID: eventID, Channel: channel, Message: req.Message, RecipientIDs: req.RecipientIDs, InitiatedBy: req.InitiatedBy,
	})
	if errors.Is(err, model.ErrBatchFinalization) && result != nil {
		// Messages were already sent, so the caller gets the outcomes to avoid a blind retry.
		log.WithError(err).Error("bulk dispatch could not be finalized")
		view := newBatchResultView(result)
		view.Error = model.ErrBatchFinalization.Error()
		writeJSON(w, http.StatusInternalServerError, view)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchResultView(result))
}

func (h *Handler) eventNotifications(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	ns, err := h.notifications.ListByEvent(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationViews(ns))
}

func (h *Handler) eventStats(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	stats, err := h.recipients.EventStats(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) recipientNotifications(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := pathID(w, r, "recipientID")
	if !ok {
		return
	}
	ns, err := h.notifications.ListByRecipient(r.Context(), recipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationViews(ns))
}

func (h *Handler) contactSummary(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := pathID(w, r, "recipientID")
	if !ok {
		return
	}
	summary, err := h.notifications.ContactSummary(r.Context(), recipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := pathID(w, r, "recipientID")
	if !ok {
		return
	}
	var req confirmRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	recipient, err := h.recipients.Confirm(r.Context(), service.ConfirmRequest{RecipientID: recipientID, PartySize: req.PartySize})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipientView(recipient))
}

func (h *Handler) decline(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := pathID(w, r, "recipientID")
	if !ok {
		return
	}
	recipient, err := h.recipients.Decline(r.Context(), recipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipientView(recipient))
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}
	batch, err := h.dispatch.GetBatch(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBatchView(batch))
}

func (h *Handler) batchNotifications(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathID(w, r, "batchID")
	if !ok {
		return
	}
	ns, err := h.dispatch.BatchNotifications(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationViews(ns))
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeError(w, errors.Wrapf(errBadRequest, "invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, errors.Wrap(errBadRequest, "invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(b); err != nil {
		log.WithField("err", err).Error("write response status")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorView{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrRecipientNotFound),
		errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, model.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, model.ErrRecipientMismatch),
		errors.Is(err, model.ErrUnsupportedChannel),
		errors.Is(err, model.ErrInvalidPartySize):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNoContactAddress),
		errors.Is(err, model.ErrNoRecipients),
		errors.Is(err, model.ErrEmptyTargetSet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrLimitExceeded),
		errors.Is(err, model.ErrAlreadyConfirmed),
		errors.Is(err, model.ErrAlreadyDeclined):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func logMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL,
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
		}).Info("got a new request")
		h.ServeHTTP(w, r)
	})
}
