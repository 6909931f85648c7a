package dto

// CreateDoctorRequest is the admin payload for adding a doctor profile.
// The records backend owns the row; the portal only validates and forwards.
type CreateDoctorRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Specialization  string `json:"specialization" validate:"required,max=100"`
	Experience      string `json:"experience" validate:"max=50"`
	ConsultationFee string `json:"consultation_fee" validate:"max=20"`
	Availability    string `json:"availability" validate:"max=100"`
}

// UpdateDoctorRequest edits an existing doctor profile.
type UpdateDoctorRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Specialization  string `json:"specialization" validate:"required,max=100"`
	Experience      string `json:"experience" validate:"max=50"`
	ConsultationFee string `json:"consultation_fee" validate:"max=20"`
	Availability    string `json:"availability" validate:"max=100"`
}
