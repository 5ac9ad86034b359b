package export

import "fmt"

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     []map[string]string
	// Footer rows are rendered after the body, e.g. class totals and averages.
	Footer []map[string]string
	// Numeric lists headers whose cells are written as numbers where the format supports it.
	// Every other column is kept as text.
	Numeric []string
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	return nil
}

func (d Dataset) numericColumns() []bool {
	out := make([]bool, len(d.Headers))
	for i, header := range d.Headers {
		for _, name := range d.Numeric {
			if header == name {
				out[i] = true
				break
			}
		}
	}
	return out
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		out[i] = row[header]
	}
	return out
}
