package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteAgenda(t *testing.T) {
	rows := []Row{
		{BookingID: "1", Date: "Wednesday, May 1, 2024", Time: "09:00", Stylist: "Ana Lopez", Client: "Rosa", Services: "Cut, Color", Status: "PENDING"},
		{BookingID: "2", Date: "Wednesday, May 1, 2024", Time: "10:00", Stylist: "B", Client: "Client", Services: "No service recorded", Status: "CANCELLED", Detail: "no-show"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAgenda(NewExcelizeWriter(), "Agenda 2024-05-01", rows, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Agenda 2024-05-01"}, f.GetSheetList())
	got, err := f.GetRows("Agenda 2024-05-01")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Columns, got[0])
	assert.Equal(t, "Cut, Color", got[1][5])
	assert.Equal(t, "no-show", got[2][7])
}

func TestExcelizeWriter_LongSheetNameAndSecondSheet(t *testing.T) {
	w := NewExcelizeWriter()
	defer w.Close()

	require.NoError(t, w.AddSheet("an agenda sheet name that is far too long"))
	require.NoError(t, w.AddSheet("Second"))
	require.NoError(t, w.WriteRow([]interface{}{"x", 1}))

	var buf bytes.Buffer
	require.NoError(t, w.Save(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"an agenda sheet name that is fa", "Second"}, f.GetSheetList())
}

func TestWriteWithoutSheetFails(t *testing.T) {
	w := NewExcelizeWriter()
	defer w.Close()
	assert.Error(t, w.WriteHeader(Columns))
	assert.Error(t, w.WriteRow([]interface{}{"x"}))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "agenda_2024-05-01.xlsx", Filename("2024-05-01", false))
	assert.Equal(t, "agenda_all.xlsx", Filename("2024-05-01", true))
	assert.Equal(t, "agenda_all.xlsx", Filename("", false))
}
