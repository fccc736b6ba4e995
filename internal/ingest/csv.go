package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// Reader loads appointment rows from one or more CSV extracts. Files are
// concatenated in the order given, which fixes the ingestion order for
// everything downstream.
type Reader struct {
	paths []string
}

// NewReader creates a reader over the given CSV files.
func NewReader(paths ...string) *Reader {
	return &Reader{paths: paths}
}

// ReadAll loads every row from every configured file. Each file must carry a
// header row naming at least the patient and site columns.
func (r *Reader) ReadAll() ([]RawRecord, error) {
	if len(r.paths) == 0 {
		return nil, fmt.Errorf("no data files configured")
	}

	var rows []RawRecord
	for _, path := range r.paths {
		fileRows, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		log.Info().
			Str("file", path).
			Int("rows", len(fileRows)).
			Msg("Loaded appointment data file")

		rows = append(rows, fileRows...)
	}

	return rows, nil
}

func readFile(path string) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	if _, ok := cols[ColPatientKey]; !ok {
		return nil, fmt.Errorf("missing required column %s", ColPatientKey)
	}
	if _, ok := cols[ColSiteCode]; !ok {
		return nil, fmt.Errorf("missing required column %s", ColSiteCode)
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var rows []RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows are skipped, not fatal for the batch.
			log.Warn().Err(err).Str("file", path).Msg("Skipping malformed CSV row")
			continue
		}

		rows = append(rows, RawRecord{
			PatientKey:        field(row, ColPatientKey),
			Age:               field(row, ColAge),
			PatientOrgCode:    field(row, ColPatientOrgCode),
			AttendanceCode:    field(row, ColAttendance),
			OutcomeCode:       field(row, ColOutcome),
			PostcodeSector:    field(row, ColPostcodeSector),
			AppointmentDate:   field(row, ColAppointmentDate),
			ProviderOrgCode:   field(row, ColProviderOrgCode),
			SiteCode:          field(row, ColSiteCode),
			ProviderLocation:  field(row, ColProviderLocation),
			TreatmentFunction: field(row, ColTreatmentFunction),
			ReferringOrgCode:  field(row, ColReferringOrgCode),
			ReferralDate:      field(row, ColReferralDate),
		})
	}

	return rows, nil
}
