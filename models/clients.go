package models

// ClientRecord is the cleartext body of this device's record in the clients
// collection. Other devices read it to learn the device name and which
// protocol versions it speaks.
type ClientRecord struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"` // "desktop" or "mobile"
	Version   string   `json:"version,omitempty"`
	Protocols []string `json:"protocols,omitempty"`
}
