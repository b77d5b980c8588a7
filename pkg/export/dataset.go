package export

import "fmt"

// Dataset is a titled table ready for rendering.
type Dataset struct {
	Title string
	// Meta lines are printed under the title, e.g. "Date: 2024-03-11".
	Meta    []string
	Headers []string
	Rows    [][]string
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("%s row %d has %d cells, want %d", format, i+1, len(row), len(d.Headers))
		}
	}
	return nil
}
