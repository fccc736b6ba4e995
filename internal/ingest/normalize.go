package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Day-first layouts tried in order when parsing appointment and referral
// dates. Anything unparseable stays null and the row is kept.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Normalize cleans a batch of raw rows into typed appointment records.
// Code and location fields are stripped and uppercased, ages and dates become
// nullable typed values, and the DNA flag is derived from the attendance
// code. Rows missing the patient or site identifier are dropped and counted;
// every other defect degrades to a null field.
func Normalize(rows []RawRecord) NormalizedBatch {
	batch := NormalizedBatch{
		Records:          make([]AppointmentRecord, 0, len(rows)),
		CodeDistribution: make(map[string]int),
	}

	for _, row := range rows {
		patientKey := strings.TrimSpace(row.PatientKey)
		siteCode := normString(row.SiteCode)
		if patientKey == "" || siteCode == "" {
			batch.DroppedRows++
			continue
		}

		code := strings.TrimSpace(row.AttendanceCode)
		if code == "" {
			// Unknown attendance outcome, neither attended nor DNA.
			code = "0"
		}
		dna := code == "3" || code == "7"
		if dna {
			batch.TotalDNAs++
		}
		batch.CodeDistribution[code]++

		batch.Records = append(batch.Records, AppointmentRecord{
			PatientKey:        patientKey,
			Age:               parseAge(row.Age),
			PatientOrgCode:    normString(row.PatientOrgCode),
			AttendanceCode:    code,
			OutcomeCode:       strings.TrimSpace(row.OutcomeCode),
			PostcodeSector:    normString(row.PostcodeSector),
			AppointmentDate:   parseDayFirst(row.AppointmentDate),
			ProviderOrgCode:   normString(row.ProviderOrgCode),
			SiteCode:          siteCode,
			ProviderLocation:  normString(row.ProviderLocation),
			TreatmentFunction: normString(row.TreatmentFunction),
			ReferringOrgCode:  normString(row.ReferringOrgCode),
			ReferralDate:      parseDayFirst(row.ReferralDate),
			DNA:               dna,
		})
	}

	log.Info().
		Int("total_rows", len(rows)).
		Int("kept", len(batch.Records)).
		Int("dropped", batch.DroppedRows).
		Int("dna_count", batch.TotalDNAs).
		Msg("Normalized appointment batch")

	return batch
}

func normString(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func parseAge(s string) *float64 {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	age, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &age
}

func parseDayFirst(s string) *time.Time {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t
		}
	}
	return nil
}
