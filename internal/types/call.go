package types

// Direction represents the direction of a call
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// CallerType classifies who is calling
type CallerType string

const (
	CallerDriver CallerType = "driver"
	CallerClient CallerType = "client"
)

// CallRecord represents one telephony call as stored by the engine.
// ProviderCallID is the identifier assigned by the PBX and maps to at most
// one internal ID via a reverse index.
type CallRecord struct {
	ID             string     `json:"id" redis:"id"`
	ProviderCallID string     `json:"providerCallId" redis:"providerCallId"`
	PhoneNumber    string     `json:"phoneNumber" redis:"phoneNumber"`
	InternalNumber string     `json:"internalNumber,omitempty" redis:"internalNumber"`
	Direction      Direction  `json:"direction" redis:"direction"`
	CallerType     CallerType `json:"callerType,omitempty" redis:"callerType"`

	// Operator annotation fields
	Region       string `json:"region,omitempty" redis:"region"`
	Topic        string `json:"topic,omitempty" redis:"topic"`
	OperatorName string `json:"operatorName,omitempty" redis:"operatorName"`
	Notes        string `json:"notes,omitempty" redis:"notes"`

	// Identity enrichment from the external lookup service
	IsDriver     bool   `json:"isDriver" redis:"isDriver"`
	DriverID     string `json:"driverId,omitempty" redis:"driverId"`
	DriverName   string `json:"driverName,omitempty" redis:"driverName"`
	DriverCar    string `json:"driverCar,omitempty" redis:"driverCar"`
	DriverRating string `json:"driverRating,omitempty" redis:"driverRating"`

	// Timestamps in Unix milliseconds. EndedAt == 0 means the call is live
	// and the record is a member of the active set.
	StartedAt       int64 `json:"startedAt" redis:"startedAt"`
	EndedAt         int64 `json:"endedAt,omitempty" redis:"endedAt"`
	DurationSeconds int   `json:"durationSeconds,omitempty" redis:"durationSeconds"`
	CreatedAt       int64 `json:"createdAt" redis:"createdAt"`
	UpdatedAt       int64 `json:"updatedAt" redis:"updatedAt"`
}

// Ended reports whether an end event has been recorded for the call.
func (c *CallRecord) Ended() bool { return c.EndedAt != 0 }

// Missed reports whether the call is classified as missed: an incoming call
// that ended without a positive connected duration.
func (c *CallRecord) Missed() bool {
	return c.Direction == DirectionIncoming && c.Ended() && c.DurationSeconds <= 0
}

// Answered reports whether the call ended with a positive connected duration.
func (c *CallRecord) Answered() bool { return c.Ended() && c.DurationSeconds > 0 }

// CallCreate carries the fields a webhook start event provides
type CallCreate struct {
	ProviderCallID string
	PhoneNumber    string
	InternalNumber string
	Direction      Direction
	StartedAt      int64
	Lookup         LookupResult
}

// CallUpdate carries the operator-editable annotation fields
type CallUpdate struct {
	CallerType   *CallerType `json:"callerType,omitempty"`
	Region       *string     `json:"region,omitempty"`
	Topic        *string     `json:"topic,omitempty"`
	OperatorName *string     `json:"operatorName,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
}

// CallFilters narrows a call query. The date range is resolved against the
// indexed sorted set; the remaining fields are applied in memory after the
// page is fetched.
type CallFilters struct {
	DateFrom     int64      `json:"dateFrom,omitempty"`
	DateTo       int64      `json:"dateTo,omitempty"`
	Region       string     `json:"region,omitempty"`
	Direction    Direction  `json:"direction,omitempty"`
	CallerType   CallerType `json:"callerType,omitempty"`
	OperatorName string     `json:"operatorName,omitempty"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}

// ContactSummary is the caller profile returned alongside phone search results
type ContactSummary struct {
	PhoneNumber string      `json:"phoneNumber"`
	ContactName string      `json:"contactName,omitempty"`
	IsDriver    bool        `json:"isDriver"`
	DriverInfo  *DriverInfo `json:"driverInfo,omitempty"`
	TotalCalls  int         `json:"totalCalls"`
	LastCall    int64       `json:"lastCall,omitempty"`
}

// Contact is a saved caller name keyed by normalized phone number
type Contact struct {
	PhoneNumber string `json:"phoneNumber" redis:"phoneNumber"`
	Name        string `json:"name" redis:"name"`
	Notes       string `json:"notes,omitempty" redis:"notes"`
	CreatedAt   int64  `json:"createdAt" redis:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt" redis:"updatedAt"`
	CreatedBy   string `json:"createdBy,omitempty" redis:"createdBy"`
}

// OperatorInfo is a directory entry for an operator. Credentials and
// sessions live in the external auth service; this engine only needs the
// identity for coverage and ticket assignment.
type OperatorInfo struct {
	ID        string `json:"id" redis:"id"`
	Name      string `json:"name" redis:"name"`
	IsActive  bool   `json:"isActive" redis:"isActive"`
	CreatedAt int64  `json:"createdAt" redis:"createdAt"`
}
