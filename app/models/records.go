package models

import "encoding/json"

// Clinical record shapes as served by the records backend. The portal does not
// own these rows; it fetches them, shapes them for the list views, and proxies
// mutations back. Fields mirror what the web client renders.

type Doctor struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Specialization  string `json:"specialization"`
	Experience      string `json:"experience"`
	ConsultationFee string `json:"consultation_fee"`
	Availability    string `json:"availability"`
	CreatedAt       string `json:"created_at"`
}

type Patient struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Gender     string `json:"gender"`
	BloodGroup string `json:"blood_group"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

type Appointment struct {
	ID              int64  `json:"id"`
	PatientName     string `json:"patient_name"`
	DoctorName      string `json:"doctor_name"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

type BillingRecord struct {
	ID            int64   `json:"id"`
	InvoiceNo     string  `json:"invoice_no"`
	PatientName   string  `json:"patient_name"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentStatus string  `json:"payment_status"`
	CreatedAt     string  `json:"created_at"`
}

type Prescription struct {
	ID          int64  `json:"id"`
	PatientName string `json:"patient_name"`
	DoctorName  string `json:"doctor_name"`
	Medication  string `json:"medication"`
	Dosage      string `json:"dosage"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

type Report struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Period      string `json:"period"`
	GeneratedAt string `json:"generated_at"`
}

// Dashboard payloads differ per role; the portal passes them through untouched.
type Dashboard = json.RawMessage
