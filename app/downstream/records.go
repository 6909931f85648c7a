package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/medicore/hospital-portal/app/models"
)

// RecordsClient talks to the clinical records backend, which owns doctors,
// patients, appointments, billing, prescriptions, and reports. The caller's
// bearer token is forwarded untouched; a 401 from the backend surfaces as
// ErrUnauthorized so the portal can revoke the session.
type RecordsClient struct {
	BaseURL string
	client  *Client
}

func NewRecordsClient(baseURL string, client *Client) *RecordsClient {
	if client == nil {
		client = NewClient(DefaultClientConfig())
	}
	return &RecordsClient{BaseURL: baseURL, client: client}
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

func authHeaders(bearerToken string) map[string]string {
	h := map[string]string{"Accept": "application/json"}
	if bearerToken != "" {
		h["Authorization"] = "Bearer " + bearerToken
	}
	return h
}

func checkStatus(resp *http.Response, want ...int) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	for _, code := range want {
		if resp.StatusCode == code {
			return nil
		}
	}
	return decodeError(resp)
}

// getList fetches and unwraps a list endpoint.
func getList[T any](ctx context.Context, c *RecordsClient, path, bearerToken string) ([]T, error) {
	resp, err := c.client.Get(ctx, c.BaseURL+path, authHeaders(bearerToken))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var wrapper dataEnvelope[[]T]
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, err
	}
	if wrapper.Data == nil {
		wrapper.Data = make([]T, 0)
	}
	return wrapper.Data, nil
}

// send issues a mutation and unwraps the returned record, if any.
func send[T any](ctx context.Context, c *RecordsClient, method, path, bearerToken string, body interface{}) (*T, error) {
	var reader *bytes.Reader
	headers := authHeaders(bearerToken)
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonBody)
		headers["Content-Type"] = "application/json"
	} else {
		reader = bytes.NewReader(nil)
	}

	resp, err := c.client.DoWithBody(ctx, method, c.BaseURL+path, reader, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var wrapper dataEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Data, nil
}

func (c *RecordsClient) ListDoctors(ctx context.Context, bearerToken string) ([]models.Doctor, error) {
	return getList[models.Doctor](ctx, c, "/records/v1/doctors", bearerToken)
}

func (c *RecordsClient) CreateDoctor(ctx context.Context, bearerToken string, body interface{}) (*models.Doctor, error) {
	return send[models.Doctor](ctx, c, http.MethodPost, "/records/v1/doctors", bearerToken, body)
}

func (c *RecordsClient) UpdateDoctor(ctx context.Context, bearerToken string, id int64, body interface{}) (*models.Doctor, error) {
	return send[models.Doctor](ctx, c, http.MethodPut, fmt.Sprintf("/records/v1/doctors/%d", id), bearerToken, body)
}

func (c *RecordsClient) DeleteDoctor(ctx context.Context, bearerToken string, id int64) error {
	_, err := send[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/records/v1/doctors/%d", id), bearerToken, nil)
	return err
}

func (c *RecordsClient) ListPatients(ctx context.Context, bearerToken string) ([]models.Patient, error) {
	return getList[models.Patient](ctx, c, "/records/v1/patients", bearerToken)
}

func (c *RecordsClient) DeletePatient(ctx context.Context, bearerToken string, id int64) error {
	_, err := send[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/records/v1/patients/%d", id), bearerToken, nil)
	return err
}

func (c *RecordsClient) ListAppointments(ctx context.Context, bearerToken string) ([]models.Appointment, error) {
	return getList[models.Appointment](ctx, c, "/records/v1/appointments", bearerToken)
}

func (c *RecordsClient) ListBilling(ctx context.Context, bearerToken string) ([]models.BillingRecord, error) {
	return getList[models.BillingRecord](ctx, c, "/records/v1/billing", bearerToken)
}

func (c *RecordsClient) ListPrescriptions(ctx context.Context, bearerToken string) ([]models.Prescription, error) {
	return getList[models.Prescription](ctx, c, "/records/v1/prescriptions", bearerToken)
}

func (c *RecordsClient) ListReports(ctx context.Context, bearerToken string) ([]models.Report, error) {
	return getList[models.Report](ctx, c, "/records/v1/reports", bearerToken)
}

// Dashboard returns the role-specific dashboard payload untouched.
func (c *RecordsClient) Dashboard(ctx context.Context, bearerToken, role string) (models.Dashboard, error) {
	resp, err := c.client.Get(ctx, fmt.Sprintf("%s/records/v1/dashboard/%s", c.BaseURL, role), authHeaders(bearerToken))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var wrapper dataEnvelope[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, err
	}
	return models.Dashboard(wrapper.Data), nil
}
