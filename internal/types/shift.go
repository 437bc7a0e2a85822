package types

// ShiftStatus represents the scheduling state of a shift
type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "scheduled"
	ShiftCompleted ShiftStatus = "completed"
	ShiftCancelled ShiftStatus = "cancelled"
)

// Shift is one operator's scheduled working interval on one calendar date.
// EndTime earlier than StartTime denotes an overnight shift spanning into
// the next calendar day; coverage is always attributed to the start date.
type Shift struct {
	ID           string      `json:"id" redis:"id"`
	OperatorID   string      `json:"operatorId" redis:"operatorId"`
	OperatorName string      `json:"operatorName,omitempty" redis:"operatorName"`
	Date         string      `json:"date" redis:"date"`           // YYYY-MM-DD
	StartTime    string      `json:"startTime" redis:"startTime"` // HH:MM
	EndTime      string      `json:"endTime" redis:"endTime"`     // HH:MM
	StartsAt     int64       `json:"startsAt" redis:"startsAt"`   // Unix ms
	EndsAt       int64       `json:"endsAt" redis:"endsAt"`       // Unix ms
	Status       ShiftStatus `json:"status" redis:"status"`
	Notes        string      `json:"notes,omitempty" redis:"notes"`
	CreatedAt    int64       `json:"createdAt" redis:"createdAt"`
	UpdatedAt    int64       `json:"updatedAt" redis:"updatedAt"`
	CreatedBy    string      `json:"createdBy,omitempty" redis:"createdBy"`
}

// ShiftCreate carries the fields needed to schedule a shift
type ShiftCreate struct {
	OperatorID string `json:"operatorId"`
	Date       string `json:"date"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Notes      string `json:"notes,omitempty"`
	CreatedBy  string `json:"createdBy,omitempty"`
}

// ShiftUpdate carries optional edits to an existing shift
type ShiftUpdate struct {
	Date      *string      `json:"date,omitempty"`
	StartTime *string      `json:"startTime,omitempty"`
	EndTime   *string      `json:"endTime,omitempty"`
	Status    *ShiftStatus `json:"status,omitempty"`
	Notes     *string      `json:"notes,omitempty"`
}

// ShiftFilters narrows a shift query
type ShiftFilters struct {
	OperatorID string      `json:"operatorId,omitempty"`
	DateFrom   string      `json:"dateFrom,omitempty"`
	DateTo     string      `json:"dateTo,omitempty"`
	Status     ShiftStatus `json:"status,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}

// CoverageStatus classifies how well an hour is staffed
type CoverageStatus string

const (
	CoverageUncovered CoverageStatus = "uncovered" // 0 operators
	CoveragePartial   CoverageStatus = "partial"   // 1 operator
	CoverageCovered   CoverageStatus = "covered"   // >= 2 operators
)

// HourOperator names one operator on duty in an hour
type HourOperator struct {
	OperatorID   string `json:"operatorId"`
	OperatorName string `json:"operatorName"`
}

// HourCoverage is one hour of a day's coverage summary
type HourCoverage struct {
	Hour          int            `json:"hour"`
	Operators     []HourOperator `json:"operators"`
	CallCount     int            `json:"callCount"`
	AnsweredCount int            `json:"answeredCount"`
	MissedCount   int            `json:"missedCount"`
	Status        CoverageStatus `json:"status"`
}

// ShiftDetail is one shift's slice of an operator report
type ShiftDetail struct {
	ShiftID        string  `json:"shiftId"`
	Date           string  `json:"date"`
	StartTime      string  `json:"startTime"`
	EndTime        string  `json:"endTime"`
	HoursScheduled float64 `json:"hoursScheduled"`
	CallsDuring    int     `json:"callsDuring"`
	Answered       int     `json:"answered"`
	Missed         int     `json:"missed"`
}

// ShiftReport aggregates an operator's shifts over a period
type ShiftReport struct {
	OperatorID      string        `json:"operatorId"`
	OperatorName    string        `json:"operatorName"`
	PeriodStart     int64         `json:"periodStart"`
	PeriodEnd       int64         `json:"periodEnd"`
	TotalShifts     int           `json:"totalShifts"`
	HoursScheduled  float64       `json:"hoursScheduled"`
	CallsDuring     int           `json:"callsDuring"`
	Answered        int           `json:"answered"`
	Missed          int           `json:"missed"`
	AvgCallDuration int           `json:"avgCallDuration"`
	AnswerRate      int           `json:"answerRate"`
	Shifts          []ShiftDetail `json:"shifts"`
}
