package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medicore/hospital-portal/app/downstream"
	"github.com/medicore/hospital-portal/app/dto"
	"github.com/medicore/hospital-portal/app/errors"
	"github.com/medicore/hospital-portal/app/listview"
	"github.com/medicore/hospital-portal/app/metrics"
	authmw "github.com/medicore/hospital-portal/app/middleware"
	"github.com/medicore/hospital-portal/app/models"
	"github.com/medicore/hospital-portal/app/notify"
	"github.com/medicore/hospital-portal/app/services"
)

// Clinical data lives in the records backend; these handlers fetch it with
// the caller's own bearer token, shape it for the list views, and proxy
// mutations back.

// bearerFromContext pulls the raw access token the JWT middleware stored.
func bearerFromContext(r *http.Request) (string, bool) {
	return authmw.AccessTokenFromContext(r.Context())
}

// writeDownstreamError maps records-backend failures onto the portal's error
// taxonomy. A 401 from the backend means the session is no longer honored
// anywhere, so the local session is torn down before the client is told to
// log in again.
func (app *application) writeDownstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case stderrors.Is(err, downstream.ErrUnauthorized):
		token, _ := bearerFromContext(r)
		var refreshToken string
		if c, cerr := r.Cookie("refresh_token"); cerr == nil {
			refreshToken = c.Value
		}
		if revokeErr := services.RevokeSession(r.Context(), app.redisClient, token, refreshToken); revokeErr != nil {
			log := authmw.GetLoggerFromContext(r.Context())
			log.Error().Err(revokeErr).Msg("failed to revoke session after downstream 401")
		}
		metrics.RecordSessionRevocation()
		clearRefreshCookie(w)
		writeErrorResponse(w, errors.NewUnauthorized("session expired, please login again"))
	case stderrors.Is(err, downstream.ErrNotFound):
		writeErrorResponse(w, errors.NewNotFound("record"))
	case stderrors.Is(err, downstream.ErrTimeout):
		writeErrorResponse(w, errors.NewUnavailable("records service timed out"))
	case stderrors.Is(err, downstream.ErrUnavailable):
		writeErrorResponse(w, errors.NewUnavailable("records service unavailable"))
	default:
		var se *downstream.StatusError
		if stderrors.As(err, &se) {
			writeErrorResponse(w, errors.Wrap(err, statusErrorCode(se.StatusCode), se.Message, se.StatusCode))
			return
		}
		writeErrorResponse(w, errors.NewInternal("failed to reach records service"))
	}
}

func statusErrorCode(status int) errors.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return errors.ErrCodeInvalidInput
	case http.StatusConflict:
		return errors.ErrCodeConflict
	case http.StatusForbidden:
		return errors.ErrCodeForbidden
	default:
		return errors.ErrCodeInternal
	}
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request) (int64, *errors.AppError) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.NewInvalidInput("invalid id")
	}
	return id, nil
}

// notifyUser fans a toast out to the acting user's connected clients. Publish
// failures are logged, never surfaced: the mutation already succeeded.
func (app *application) notifyUser(r *http.Request, severity, message string) {
	userID, ok := authmw.UserIDFromContext(r.Context())
	if !ok || app.notifyBus == nil {
		return
	}
	if err := app.notifyBus.Publish(r.Context(), userID, severity, message); err != nil {
		log := authmw.GetLoggerFromContext(r.Context())
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to publish notification")
	}
}

// dashboardHandler proxies the role's dashboard payload untouched.
func (app *application) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerFromContext(r)
	if !ok {
		writeErrorResponse(w, errors.NewUnauthorized("user not found in context"))
		return
	}
	role, _ := authmw.RoleFromContext(r.Context())

	dashboard, err := app.recordsClient.Dashboard(r.Context(), token, role)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(dashboard)
}

func (app *application) listDoctorsHandler(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerFromContext(r)

	doctors, err := app.recordsClient.ListDoctors(r.Context(), token)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	page := listview.Apply(doctors, listview.FromQuery(r.URL.Query()),
		func(d models.Doctor) []string { return []string{d.Name, d.Email, d.Specialization} },
		nil,
	)
	writeJSON(w, http.StatusOK, page)
}

func (app *application) createDoctorHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDoctorRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Name = sanitizeName(req.Name, 100)
	req.Email = sanitizeEmail(req.Email, 255)
	req.Specialization = sanitizeInput(req.Specialization, 100, false)
	req.Experience = sanitizeInput(req.Experience, 50, false)
	req.ConsultationFee = sanitizeInput(req.ConsultationFee, 20, false)
	req.Availability = sanitizeInput(req.Availability, 100, false)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	token, _ := bearerFromContext(r)
	doctor, err := app.recordsClient.CreateDoctor(r.Context(), token, req)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	app.notifyUser(r, notify.SeveritySuccess, "Doctor added successfully")
	writeJSON(w, http.StatusCreated, doctor)
}

func (app *application) updateDoctorHandler(w http.ResponseWriter, r *http.Request) {
	id, appErr := idParam(r)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	var req dto.UpdateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Name = sanitizeName(req.Name, 100)
	req.Email = sanitizeEmail(req.Email, 255)
	req.Specialization = sanitizeInput(req.Specialization, 100, false)
	req.Experience = sanitizeInput(req.Experience, 50, false)
	req.ConsultationFee = sanitizeInput(req.ConsultationFee, 20, false)
	req.Availability = sanitizeInput(req.Availability, 100, false)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	token, _ := bearerFromContext(r)
	doctor, err := app.recordsClient.UpdateDoctor(r.Context(), token, id, req)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	app.notifyUser(r, notify.SeveritySuccess, "Doctor updated successfully")
	writeJSON(w, http.StatusOK, doctor)
}

func (app *application) deleteDoctorHandler(w http.ResponseWriter, r *http.Request) {
	id, appErr := idParam(r)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	token, _ := bearerFromContext(r)
	if err := app.recordsClient.DeleteDoctor(r.Context(), token, id); err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	app.notifyUser(r, notify.SeveritySuccess, "Doctor removed successfully")
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: fmt.Sprintf("doctor %d deleted", id)})
}

func (app *application) listPatientsHandler(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerFromContext(r)

	patients, err := app.recordsClient.ListPatients(r.Context(), token)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	page := listview.Apply(patients, listview.FromQuery(r.URL.Query()),
		func(p models.Patient) []string { return []string{p.Name, p.Email, p.Phone} },
		func(p models.Patient) string { return p.Status },
	)
	writeJSON(w, http.StatusOK, page)
}

func (app *application) deletePatientHandler(w http.ResponseWriter, r *http.Request) {
	id, appErr := idParam(r)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	token, _ := bearerFromContext(r)
	if err := app.recordsClient.DeletePatient(r.Context(), token, id); err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	app.notifyUser(r, notify.SeveritySuccess, "Patient removed successfully")
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: fmt.Sprintf("patient %d deleted", id)})
}

func (app *application) listAppointmentsHandler(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerFromContext(r)

	appointments, err := app.recordsClient.ListAppointments(r.Context(), token)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	page := listview.Apply(appointments, listview.FromQuery(r.URL.Query()),
		func(a models.Appointment) []string { return []string{a.PatientName, a.DoctorName} },
		func(a models.Appointment) string { return a.Status },
	)
	writeJSON(w, http.StatusOK, page)
}

func (app *application) listBillingHandler(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerFromContext(r)

	bills, err := app.recordsClient.ListBilling(r.Context(), token)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	page := listview.Apply(bills, listview.FromQuery(r.URL.Query()),
		func(b models.BillingRecord) []string { return []string{b.InvoiceNo, b.PatientName} },
		func(b models.BillingRecord) string { return b.PaymentStatus },
	)
	writeJSON(w, http.StatusOK, page)
}

func (app *application) listPrescriptionsHandler(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerFromContext(r)

	prescriptions, err := app.recordsClient.ListPrescriptions(r.Context(), token)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	page := listview.Apply(prescriptions, listview.FromQuery(r.URL.Query()),
		func(p models.Prescription) []string { return []string{p.PatientName, p.DoctorName, p.Medication} },
		func(p models.Prescription) string { return p.Status },
	)
	writeJSON(w, http.StatusOK, page)
}

func (app *application) listReportsHandler(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerFromContext(r)

	reports, err := app.recordsClient.ListReports(r.Context(), token)
	if err != nil {
		app.writeDownstreamError(w, r, err)
		return
	}

	page := listview.Apply(reports, listview.FromQuery(r.URL.Query()),
		func(rep models.Report) []string { return []string{rep.Title, rep.Category} },
		nil,
	)
	writeJSON(w, http.StatusOK, page)
}
