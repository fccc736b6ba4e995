package ingest

import "time"

// Column headers of the appointment extract.
const (
	ColPatientKey        = "PATIENT_KEY"
	ColAge               = "AGE"
	ColPatientOrgCode    = "ORG_CODE_LOCAL_PATIENT_IDENTIFIER"
	ColAttendance        = "ATTENDED_OR_DID_NOT_ATTEND"
	ColOutcome           = "OUTCOME_OF_ATTENDANCE"
	ColPostcodeSector    = "POSTCODE_SECTOR_OF_USUAL_ADDRESS"
	ColAppointmentDate   = "APPOINTMENT_DATE"
	ColProviderOrgCode   = "ORGANISATION_CODE_CODE_OF_PROVIDER"
	ColSiteCode          = "SITE_CODE_OF_TREATMENT"
	ColProviderLocation  = "PROVIDER_LOCATION"
	ColTreatmentFunction = "TREATMENT_FUNCTION_CODE"
	ColReferringOrgCode  = "REFERRING_ORGANISATION_CODE"
	ColReferralDate      = "REFERRAL_REQUEST_RECEIVED_DATE"
)

// RawRecord is one appointment row exactly as read from the source, all
// fields untyped strings. Typing and validation happen in Normalize.
type RawRecord struct {
	PatientKey        string
	Age               string
	PatientOrgCode    string
	AttendanceCode    string
	OutcomeCode       string
	PostcodeSector    string
	AppointmentDate   string
	ProviderOrgCode   string
	SiteCode          string
	ProviderLocation  string
	TreatmentFunction string
	ReferringOrgCode  string
	ReferralDate      string
}

// AppointmentRecord is a cleaned, typed appointment row. PatientKey and
// SiteCode are always non-empty; rows violating that never leave Normalize.
type AppointmentRecord struct {
	PatientKey        string
	Age               *float64
	PatientOrgCode    string
	AttendanceCode    string
	OutcomeCode       string
	PostcodeSector    string
	AppointmentDate   *time.Time
	ProviderOrgCode   string
	SiteCode          string
	ProviderLocation  string
	TreatmentFunction string
	ReferringOrgCode  string
	ReferralDate      *time.Time
	DNA               bool
}

// NormalizedBatch is the output of Normalize over one input batch.
type NormalizedBatch struct {
	Records          []AppointmentRecord
	DroppedRows      int
	TotalDNAs        int
	CodeDistribution map[string]int
}

// AttendanceCodeLabels maps NHS attendance codes to their meaning. Codes 3
// and 7 are the two genuine no-show outcomes.
var AttendanceCodeLabels = map[string]string{
	"2": "Patient cancelled",
	"3": "Did not attend (DNA)",
	"4": "Cancelled by HCP",
	"5": "Seen",
	"6": "Arrived late but was seen",
	"7": "Arrived late, could not be seen",
}
