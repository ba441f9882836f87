// Package export renders stored claim runs as CSV or XLSX summaries.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"claimflow/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the header row.
var columns = []string{
	"Run ID",
	"Claim ID",
	"State",
	"Failed Stage",
	"Detail",
	"Degraded",
	"Document Type",
	"Policy Number",
	"Policyholder",
	"Vehicle",
	"Date of Incident",
	"Damaged Parts",
	"Coverage",
	"Estimated Liability",
	"Deductible",
	"At Fault",
	"Claim Valid",
	"Evaluation Confidence",
	"Attempts",
	"Started At",
	"Finished At",
}

// Columns returns a copy of the header row.
func Columns() []string {
	return append([]string(nil), columns...)
}

// RowWriter is implemented by the CSV and XLSX writers.
type RowWriter interface {
	WriteHeader() error
	WriteRuns(runs []domain.ClaimRun) error
}

// Writer wraps csv.Writer for exporting claim runs as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteRuns converts a batch of runs to CSV rows and writes them.
func (w *Writer) WriteRuns(runs []domain.ClaimRun) error {
	for i := range runs {
		if err := w.csv.Write(runToRow(&runs[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// storedRecord accepts both shapes a run can store: the record itself, or
// the failure envelope with an optional partial record.
type storedRecord struct {
	domain.ClaimRecord
	PartialResult *domain.ClaimRecord `json:"partial_result"`
}

// runToRow converts a single run to a row. Record columns stay empty when the
// stored record cannot be decoded.
func runToRow(run *domain.ClaimRun) []string {
	row := make([]string, len(columns))

	row[0] = run.ID.String()
	row[1] = run.ClaimID
	row[2] = string(run.State)
	row[3] = deref(run.FailedStage)
	row[4] = deref(run.Detail)
	row[5] = formatBool(run.Degraded)
	row[18] = strconv.Itoa(run.Attempts)
	row[19] = formatTime(run.StartedAt)
	row[20] = formatTime(run.FinishedAt)

	if len(run.Record) == 0 {
		return row
	}
	var stored storedRecord
	if err := json.Unmarshal(run.Record, &stored); err != nil {
		return row
	}
	rec := &stored.ClaimRecord
	if run.State == domain.StateFailed {
		if stored.PartialResult == nil {
			return row
		}
		rec = stored.PartialResult
	}

	row[6] = text(rec.DocumentType)
	if p := rec.PolicyholderInformation; p != nil {
		row[7] = text(p.PolicyNumber)
		row[8] = text(p.Name)
	}
	if v := rec.VehicleInformation; v != nil {
		row[9] = joinNonEmpty(text(v.Year), text(v.Make), text(v.Model))
	}
	if a := rec.AccidentInformation; a != nil {
		row[10] = text(a.DateOfIncident)
	}
	row[11] = strconv.Itoa(len(rec.DescriptionOfDamages))

	if ev := rec.PolicyEvaluation; ev != nil {
		row[12] = string(ev.CoverageAssessment.CoverageApplicability)
		row[13] = formatMoney(ev.CoverageAssessment.EstimatedCompanyLiabilityAmount)
		row[14] = formatMoney(ev.CoverageAssessment.DeductibleAmount)
		row[15] = string(ev.LiabilityAssessment.AtFaultParty)
		if ev.ClaimValidity.IsClaimValid != nil {
			row[16] = formatBool(*ev.ClaimValidity.IsClaimValid)
		}
		row[17] = string(ev.ClaimValidity.Confidence)
	}
	return row
}

func text(t *domain.Text) string {
	if t == nil {
		return ""
	}
	return string(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_name}_{YYYY-MM-DD}.{ext}
func BuildFilename(name, ext string) string {
	sanitized := SanitizeFilename(name)
	if sanitized == "" {
		sanitized = "claim_runs"
	}
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.%s", sanitized, date, ext)
}
