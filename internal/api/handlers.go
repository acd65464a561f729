package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agrirent/internal/export"
	"agrirent/internal/models"
	"agrirent/internal/rental"
	"agrirent/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

type intervalRequest struct {
	EquipmentID int64  `json:"equipment_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

func (req intervalRequest) interval() (models.DateInterval, error) {
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		return models.DateInterval{}, err
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		return models.DateInterval{}, err
	}
	return models.NewDateInterval(start, end)
}

type checkoutRequest struct {
	intervalRequest
	models.PaymentRequest
}

type paymentResponse struct {
	Booking *models.Booking `json:"booking,omitempty"`
	Payment *models.Payment `json:"payment,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// equipmentUpdateRequest tells an omitted is_available apart from false.
type equipmentUpdateRequest struct {
	models.Equipment
	IsAvailable *bool `json:"is_available"`
}

type contactRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type calendarDay struct {
	Date    string `json:"date"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// requireParty writes 401 and returns false for anonymous callers.
func requireParty(w http.ResponseWriter, r *http.Request) (models.Party, bool) {
	party := PartyFromContext(r.Context())
	if party.IsZero() {
		writeError(w, http.StatusUnauthorized, "caller identity is required")
		return party, false
	}
	return party, true
}

// allowParty applies the per-party request budget to booking writes.
func (s *HTTPServer) allowParty(w http.ResponseWriter, r *http.Request, party models.Party) bool {
	if s.svc.Drafts == nil {
		return true
	}
	ok, err := s.svc.Drafts.CheckRateLimit(r.Context(), party)
	if err != nil {
		s.log.Warn().Err(err).Str("party_id", party.ID).Msg("party rate limit check")
		return true
	}
	if !ok {
		writeError(w, http.StatusTooManyRequests, service.ErrRateLimited.Error())
		return false
	}
	return true
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.EquipmentFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Location: q.Get("location"),
		OwnerID:  q.Get("owner_id"),
	}
	if raw := strings.TrimSpace(q.Get("max_price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			writeError(w, http.StatusBadRequest, "max_price must be a non-negative number")
			return
		}
		filter.MaxPricePerDay = price
	}
	if party := PartyFromContext(r.Context()); !party.IsZero() && filter.OwnerID == party.ID {
		filter.IncludeHidden = q.Get("include_hidden") == "true"
	}

	items, err := s.svc.Equipment.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipment": items})
}

func (s *HTTPServer) handleGetEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.Equipment.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleCreateEquipment(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	var item models.Equipment
	if err := decodeJSON(r, &item); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item.ID = 0
	if err := s.svc.Equipment.Create(r.Context(), party, &item); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &item)
}

func (s *HTTPServer) handleUpdateEquipment(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req equipmentUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item := req.Equipment
	item.ID = id
	if err := s.svc.Equipment.Update(r.Context(), party, &item, req.IsAvailable); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &item)
}

func (s *HTTPServer) handleDeactivateEquipment(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Equipment.Deactivate(r.Context(), party, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var from time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if from, err = models.ParseDate(raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
	}
	days := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
	}

	calendar, err := s.svc.Bookings.GetCalendar(r.Context(), id, from, days)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]calendarDay, 0, len(calendar))
	for _, d := range calendar {
		out = append(out, calendarDay{Date: d.Date.Format(models.DateLayout), Blocked: d.Blocked, Reason: d.Reason})
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipment_id": id, "days": out})
}

func (s *HTTPServer) handleBlocked(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := models.ParseDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	blocked, reason, err := s.svc.Bookings.IsDateBlocked(r.Context(), id, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"equipment_id": id,
		"date":         dateStr,
		"blocked":      blocked,
		"reason":       reason,
	})
}

func (s *HTTPServer) handleEquipmentBookings(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bookings, err := s.svc.Bookings.GetEquipmentBookings(r.Context(), party, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	iv, err := req.interval()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := s.svc.Bookings.Quote(r.Context(), req.EquipmentID, iv)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *HTTPServer) handleInstallments(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("principal"))
	principal, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "principal must be a number")
		return
	}

	plans, err := rental.InstallmentPlans(principal)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"principal": principal, "plans": plans})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok || !s.allowParty(w, r, party) {
		return
	}
	var req intervalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	iv, err := req.interval()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	booking, err := s.svc.Bookings.CreateBooking(r.Context(), party, req.EquipmentID, iv)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.clearDraft(r, party, req.EquipmentID)
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleCheckout(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok || !s.allowParty(w, r, party) {
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	iv, err := req.interval()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyHeader))
	}

	booking, pay, err := s.svc.Bookings.Checkout(r.Context(), party, req.EquipmentID, iv, req.PaymentRequest)
	if err != nil {
		if pay != nil {
			writeJSON(w, httpStatus(err), paymentResponse{Payment: pay, Error: err.Error()})
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.clearDraft(r, party, req.EquipmentID)
	writeJSON(w, http.StatusCreated, paymentResponse{Booking: booking, Payment: pay})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	booking, err := s.svc.Bookings.GetBooking(r.Context(), party, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handlePayBooking(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok || !s.allowParty(w, r, party) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req models.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(r.Header.Get(idempotencyHeader))
	}

	booking, pay, err := s.svc.Bookings.PayBooking(r.Context(), party, id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{Booking: booking, Payment: pay})
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	booking, err := s.svc.Bookings.CancelBooking(r.Context(), party, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	booking, err := s.svc.Bookings.CompleteBooking(r.Context(), party, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	user, err := s.svc.Users.GetUser(r.Context(), party.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.svc.Users.UpdateContact(r.Context(), party, req.Email, req.Phone)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	bookings, err := s.svc.Bookings.GetRenterBookings(r.Context(), party)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleMyRentals(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	bookings, err := s.svc.Bookings.GetOwnerBookings(r.Context(), party)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings, "earnings": export.Earnings(bookings)})
}

func (s *HTTPServer) handleExportRentals(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	bookings, err := s.svc.Bookings.GetOwnerBookings(r.Context(), party)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	now := s.svc.Clock.Now()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(party, now)))
	if err := export.WriteOwnerReport(w, party, bookings, now); err != nil {
		s.log.Error().Err(err).Str("party_id", party.ID).Msg("export rentals")
	}
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	draft, err := s.svc.Drafts.GetDraft(r.Context(), party)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if draft == nil {
		writeError(w, http.StatusNotFound, "no draft")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *HTTPServer) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	var draft models.DraftState
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.svc.Drafts.SaveDraft(r.Context(), party, &draft); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &draft)
}

func (s *HTTPServer) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	if err := s.svc.Drafts.ClearDraft(r.Context(), party); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clearDraft drops the selection once it turned into a booking.
func (s *HTTPServer) clearDraft(r *http.Request, party models.Party, equipmentID int64) {
	if s.svc.Drafts == nil {
		return
	}
	draft, err := s.svc.Drafts.GetDraft(r.Context(), party)
	if err != nil || draft == nil || draft.EquipmentID != equipmentID {
		return
	}
	if err := s.svc.Drafts.ClearDraft(r.Context(), party); err != nil {
		s.log.Warn().Err(err).Str("party_id", party.ID).Msg("clear draft")
	}
}

func (s *HTTPServer) handleOverlaps(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	overlaps, err := s.svc.Bookings.FindOverlaps(r.Context(), party)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overlaps": overlaps})
}

func (s *HTTPServer) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	party, ok := requireParty(w, r)
	if !ok {
		return
	}
	admins, err := s.svc.Users.GetAdmins(r.Context(), party)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"admins": admins})
}
