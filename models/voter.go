package models

// Voter is a registered voter. FaceDescriptor is the enrolled biometric
// reference vector; empty when the voter never enrolled one.
type Voter struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	FaceDescriptor []float64 `json:"-"`
}

// Credentials carries what a ballot request supplies to prove identity.
// Either field may be empty; at least one must be set.
type Credentials struct {
	FaceDescriptor []float64
	Password       string
}
