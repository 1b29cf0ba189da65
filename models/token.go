package models

// TokenServerResponse is a successful token exchange: short-lived storage
// credentials plus the storage node endpoint the account is assigned to.
type TokenServerResponse struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	UID      int64  `json:"uid"`
	Endpoint string `json:"api_endpoint"`
	Duration int64  `json:"duration"` // seconds the credentials stay valid
}

// TokenServerError is the error body returned by the token server for 4xx
// responses.
type TokenServerError struct {
	Status string             `json:"status"`
	Errors []TokenErrorDetail `json:"errors"`

	// ConditionURLs is set on 403 responses that require the user to accept
	// updated terms of service before tokens will be issued.
	ConditionURLs map[string]string `json:"urls,omitempty"`
}

// TokenErrorDetail is one entry of a token server error body.
type TokenErrorDetail struct {
	Location    string `json:"location"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
