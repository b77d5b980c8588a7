package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seatPlan() Dataset {
	return Dataset{
		Title:   "Physics Final",
		Meta:    []string{"Date: 2024-03-11", "Time: 10:00 - 11:00"},
		Headers: []string{"Roll No", "Student", "System"},
		Rows: [][]string{
			{"R-001", "Asha", "Sys-1"},
			{"R-002", "Bilal", "Sys-2"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(seatPlan())
	require.NoError(t, err)
	assert.Equal(t, "Roll No,Student,System\nR-001,Asha,Sys-1\nR-002,Bilal,Sys-2\n", string(out))
}

func TestExportersRejectRaggedRows(t *testing.T) {
	data := seatPlan()
	data.Rows = append(data.Rows, []string{"R-003"})

	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(data)
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(data)
	assert.Error(t, err)
	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(seatPlan())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(seatPlan())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "Physics Final", rows[0][0])
	assert.Equal(t, "Date: 2024-03-11", rows[1][0])
	assert.Equal(t, []string{"Roll No", "Student", "System"}, rows[4])
	assert.Equal(t, []string{"R-002", "Bilal", "Sys-2"}, rows[6])
}
