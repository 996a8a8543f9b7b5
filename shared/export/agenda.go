package export

import (
	"fmt"
	"io"
	"strings"
)

// Row is one agenda line as shown to staff.
type Row struct {
	BookingID string
	Date      string
	Time      string
	Stylist   string
	Client    string
	Services  string
	Status    string
	Detail    string
}

// Columns are the agenda sheet headers.
var Columns = []string{"Booking", "Date", "Time", "Stylist", "Client", "Services", "Status", "Reason / note"}

// WriteAgenda writes rows into a single sheet and saves the workbook to out.
func WriteAgenda(w Writer, sheet string, rows []Row, out io.Writer) error {
	defer w.Close()

	if err := w.AddSheet(sheet); err != nil {
		return err
	}
	if err := w.WriteHeader(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := w.WriteRow([]interface{}{
			r.BookingID, r.Date, r.Time, r.Stylist, r.Client, r.Services, r.Status, r.Detail,
		}); err != nil {
			return fmt.Errorf("write row %s: %w", r.BookingID, err)
		}
	}
	return w.Save(out)
}

// Filename builds the download name for an agenda export.
func Filename(day string, allDates bool) string {
	if allDates || strings.TrimSpace(day) == "" {
		return "agenda_all.xlsx"
	}
	return fmt.Sprintf("agenda_%s.xlsx", strings.TrimSpace(day))
}
