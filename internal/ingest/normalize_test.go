package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDNAFlag(t *testing.T) {
	tests := []struct {
		code string
		dna  bool
	}{
		{"2", false},
		{"3", true},
		{"4", false},
		{"5", false},
		{"6", false},
		{"7", true},
		{"0", false},
	}

	for _, tt := range tests {
		t.Run("code_"+tt.code, func(t *testing.T) {
			batch := Normalize([]RawRecord{{
				PatientKey:     "p1",
				SiteCode:       "s1",
				AttendanceCode: tt.code,
			}})

			require.Len(t, batch.Records, 1)
			assert.Equal(t, tt.dna, batch.Records[0].DNA)
		})
	}
}

func TestNormalizeMissingAttendanceCodeDefaultsToZero(t *testing.T) {
	batch := Normalize([]RawRecord{{
		PatientKey: "p1",
		SiteCode:   "s1",
	}})

	require.Len(t, batch.Records, 1)
	assert.Equal(t, "0", batch.Records[0].AttendanceCode)
	assert.False(t, batch.Records[0].DNA)
	assert.Equal(t, 1, batch.CodeDistribution["0"])
}

func TestNormalizeDropsRowsMissingIdentifiers(t *testing.T) {
	batch := Normalize([]RawRecord{
		{PatientKey: "", SiteCode: "s1", AttendanceCode: "5"},
		{PatientKey: "p1", SiteCode: "   ", AttendanceCode: "5"},
		{PatientKey: "p2", SiteCode: "s2", AttendanceCode: "3"},
	})

	assert.Equal(t, 2, batch.DroppedRows)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "p2", batch.Records[0].PatientKey)
	assert.Equal(t, 1, batch.TotalDNAs)
}

func TestNormalizeAgeParsing(t *testing.T) {
	tests := []struct {
		name string
		age  string
		want *float64
	}{
		{"numeric", "42", floatPtr(42)},
		{"decimal", "0.5", floatPtr(0.5)},
		{"unparseable", "unknown", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := Normalize([]RawRecord{{
				PatientKey: "p1",
				SiteCode:   "s1",
				Age:        tt.age,
			}})

			require.Len(t, batch.Records, 1)
			if tt.want == nil {
				assert.Nil(t, batch.Records[0].Age)
			} else {
				require.NotNil(t, batch.Records[0].Age)
				assert.Equal(t, *tt.want, *batch.Records[0].Age)
			}
		})
	}
}

func TestNormalizeDayFirstDates(t *testing.T) {
	batch := Normalize([]RawRecord{{
		PatientKey:      "p1",
		SiteCode:        "s1",
		AppointmentDate: "25/12/2019",
		ReferralDate:    "not a date",
	}})

	require.Len(t, batch.Records, 1)
	rec := batch.Records[0]

	require.NotNil(t, rec.AppointmentDate)
	assert.Equal(t, time.December, rec.AppointmentDate.Month())
	assert.Equal(t, 25, rec.AppointmentDate.Day())
	assert.Equal(t, 2019, rec.AppointmentDate.Year())

	// Unparseable dates null the field but keep the row.
	assert.Nil(t, rec.ReferralDate)
}

func TestNormalizeUppercasesCodeFields(t *testing.T) {
	batch := Normalize([]RawRecord{{
		PatientKey:        "  p1  ",
		SiteCode:          " rqm01 ",
		ProviderLocation:  "st thomas",
		TreatmentFunction: " 110 ",
		PostcodeSector:    "se1 7",
	}})

	require.Len(t, batch.Records, 1)
	rec := batch.Records[0]
	assert.Equal(t, "p1", rec.PatientKey)
	assert.Equal(t, "RQM01", rec.SiteCode)
	assert.Equal(t, "ST THOMAS", rec.ProviderLocation)
	assert.Equal(t, "110", rec.TreatmentFunction)
	assert.Equal(t, "SE1 7", rec.PostcodeSector)
}

func TestNormalizeCodeDistribution(t *testing.T) {
	batch := Normalize([]RawRecord{
		{PatientKey: "p1", SiteCode: "s1", AttendanceCode: "5"},
		{PatientKey: "p2", SiteCode: "s1", AttendanceCode: "5"},
		{PatientKey: "p3", SiteCode: "s1", AttendanceCode: "3"},
		{PatientKey: "p4", SiteCode: "s1"},
	})

	assert.Equal(t, map[string]int{"5": 2, "3": 1, "0": 1}, batch.CodeDistribution)
}

func floatPtr(f float64) *float64 { return &f }
