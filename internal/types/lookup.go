package types

// DriverInfo is the driver identity returned by the external lookup service
type DriverInfo struct {
	IsDriver      bool   `json:"isDriver"`
	DriverID      string `json:"driverId,omitempty"`
	DriverName    string `json:"driverName,omitempty"`
	DriverCar     string `json:"driverCar,omitempty"`
	DriverRating  string `json:"driverRating,omitempty"`
	DriverStatus  string `json:"driverStatus,omitempty"`
	ManagerNumber string `json:"managerNumber,omitempty"`
}

// ClientInfo is the client identity returned by the external lookup service
type ClientInfo struct {
	IsClient   bool   `json:"isClient"`
	ClientID   string `json:"clientId,omitempty"`
	ClientName string `json:"clientName,omitempty"`
}

// LookupResult is the outcome of a phone identity lookup. The zero value
// means "no identity found", which is also what lookup failures produce.
type LookupResult struct {
	Driver *DriverInfo `json:"driverInfo,omitempty"`
	Client *ClientInfo `json:"clientInfo,omitempty"`
}

// CallerType derives the caller classification from the lookup outcome.
// Empty string means unclassified.
func (r LookupResult) CallerType() CallerType {
	switch {
	case r.Driver != nil && r.Driver.IsDriver:
		return CallerDriver
	case r.Client != nil && r.Client.IsClient:
		return CallerClient
	default:
		return ""
	}
}
