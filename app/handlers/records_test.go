package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/medicore/hospital-portal/app/downstream"
	"github.com/medicore/hospital-portal/app/dto"
	"github.com/medicore/hospital-portal/app/listview"
	"github.com/medicore/hospital-portal/app/models"
	"github.com/medicore/hospital-portal/app/notify"
	"github.com/medicore/hospital-portal/app/services"
	"github.com/medicore/hospital-portal/app/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
Records Handler Test Cases:

1. TestListDoctorsHandler_Pagination
   - 8 doctors from the backend -> page 2 carries the remaining 2

2. TestListDoctorsHandler_Search
   - search filters by name before pagination

3. TestListDoctorsHandler_RoleMismatch
   - Patient token on an admin route -> 401, backend never called

4. TestCreateDoctorHandler_Success
   - Valid payload -> forwarded to backend, 201 with created row

5. TestCreateDoctorHandler_ValidationError
   - Missing name -> 400, backend never called

6. TestDeleteDoctorHandler_NotFound
   - Backend 404 -> 404 NOT_FOUND

7. TestDownstream401_RevokesSession
   - Backend 401 -> local session revoked, token rejected afterwards

8. TestDashboardHandler_PassThrough
   - Dashboard JSON proxied untouched for the caller's role

9. TestListPatientsHandler_StatusFilter
   - status query filters on the patient status field
*/

// newRecordsTestApp wires the app against a fake records backend.
func newRecordsTestApp(t *testing.T, backend http.Handler) (http.Handler, *httptest.Server) {
	t.Helper()
	t.Setenv("JWT_SECRET", "supersecret")

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	users := newStubUsersStore()
	storage := store.Storage{Users: users}

	app := &application{
		config:        config{addr: ":8080", recordsBaseURL: srv.URL},
		store:         storage,
		authService:   services.NewAuthService(storage, rdb, nil),
		recordsClient: downstream.NewRecordsClient(srv.URL, nil),
		notifyBus:     notify.NewBus(rdb),
		redisClient:   rdb,
	}
	return app.mount(), srv
}

func authedRequest(t *testing.T, method, path string, userID int64, role, name string) *http.Request {
	t.Helper()
	token, err := services.GenerateAccessToken(userID, role, name)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func doctorsBackend(t *testing.T, doctors []models.Doctor) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/records/v1/doctors", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": doctors})
	})
	return mux
}

func makeDoctors(n int) []models.Doctor {
	doctors := make([]models.Doctor, 0, n)
	for i := 1; i <= n; i++ {
		doctors = append(doctors, models.Doctor{
			ID:             int64(i),
			Name:           fmt.Sprintf("Dr. Person %d", i),
			Email:          fmt.Sprintf("doc%d@example.com", i),
			Specialization: "Cardiology",
		})
	}
	return doctors
}

func TestListDoctorsHandler_Pagination(t *testing.T) {
	handler, _ := newRecordsTestApp(t, doctorsBackend(t, makeDoctors(8)))

	req := authedRequest(t, http.MethodGet, "/admin/v1/doctors?page=2", 1, models.RoleAdmin, "Admin")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var page listview.Page[models.Doctor]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 8, page.TotalRecords)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestListDoctorsHandler_Search(t *testing.T) {
	handler, _ := newRecordsTestApp(t, doctorsBackend(t, makeDoctors(8)))

	req := authedRequest(t, http.MethodGet, "/admin/v1/doctors?search=person+3", 1, models.RoleAdmin, "Admin")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var page listview.Page[models.Doctor]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Dr. Person 3", page.Data[0].Name)
}

func TestListDoctorsHandler_RoleMismatch(t *testing.T) {
	backendHit := false
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		backendHit = true
	})
	handler, _ := newRecordsTestApp(t, mux)

	req := authedRequest(t, http.MethodGet, "/admin/v1/doctors", 2, models.RolePatient, "Jane")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// Mis-roled tokens get the same answer as no token at all.
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, backendHit)
}

func TestCreateDoctorHandler_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/records/v1/doctors", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body dto.CreateDoctorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dr.new@example.com", body.Email)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": models.Doctor{
			ID: 42, Name: body.Name, Email: body.Email, Specialization: body.Specialization,
		}})
	})
	handler, _ := newRecordsTestApp(t, mux)

	token, err := services.GenerateAccessToken(1, models.RoleAdmin, "Admin")
	require.NoError(t, err)

	rr := postJSON(t, withBearer(handler, token), "/admin/v1/doctors", dto.CreateDoctorRequest{
		Name:           "Dr. New",
		Email:          "Dr.New@Example.com",
		Specialization: "Oncology",
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	var created models.Doctor
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, int64(42), created.ID)
}

// withBearer wraps a handler so postJSON requests carry the token.
func withBearer(next http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
		next.ServeHTTP(w, r)
	})
}

func TestCreateDoctorHandler_ValidationError(t *testing.T) {
	backendHit := false
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		backendHit = true
	})
	handler, _ := newRecordsTestApp(t, mux)

	token, err := services.GenerateAccessToken(1, models.RoleAdmin, "Admin")
	require.NoError(t, err)

	rr := postJSON(t, withBearer(handler, token), "/admin/v1/doctors", dto.CreateDoctorRequest{
		Email:          "dr.new@example.com",
		Specialization: "Oncology",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Name is required")
	assert.False(t, backendHit)
}

func TestDeleteDoctorHandler_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "doctor not found"})
	})
	handler, _ := newRecordsTestApp(t, mux)

	req := authedRequest(t, http.MethodDelete, "/admin/v1/doctors/99", 1, models.RoleAdmin, "Admin")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "NOT_FOUND")
}

func TestDownstream401_RevokesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "token rejected"})
	})
	handler, _ := newRecordsTestApp(t, mux)

	token, err := services.GenerateAccessToken(1, models.RoleAdmin, "Admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/doctors", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "session expired")

	// The access token was blacklisted on the way out.
	req = httptest.NewRequest(http.MethodGet, "/admin/v1/doctors", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotContains(t, rr.Body.String(), "session expired")
}

func TestDashboardHandler_PassThrough(t *testing.T) {
	raw := `{"upcoming_appointments":3,"pending_bills":1}`
	mux := http.NewServeMux()
	mux.HandleFunc("/records/v1/dashboard/patient", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(raw))
	})
	handler, _ := newRecordsTestApp(t, mux)

	req := authedRequest(t, http.MethodGet, "/patient/v1/dashboard", 2, models.RolePatient, "Jane")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, raw, rr.Body.String())
}

func TestListPatientsHandler_StatusFilter(t *testing.T) {
	patients := []models.Patient{
		{ID: 1, Name: "Ann", Status: "Admitted"},
		{ID: 2, Name: "Bob", Status: "Discharged"},
		{ID: 3, Name: "Cal", Status: "admitted"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/records/v1/patients", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": patients})
	})
	handler, _ := newRecordsTestApp(t, mux)

	req := authedRequest(t, http.MethodGet, "/admin/v1/patients?status=admitted", 1, models.RoleAdmin, "Admin")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var page listview.Page[models.Patient]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Data, 2, "status match is case-insensitive")
}
