package excel

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one data row keyed by column header.
type Row map[string]string

// Reader extracts logical tables from the legacy workbook. Cell values are
// returned as display strings; callers parse keys and prices themselves so
// the spreadsheet library's numeric coercion never leaks into the data.
type Reader struct {
	file *excelize.File
}

// Open loads a workbook from disk. The returned Reader must be closed.
func Open(path string) (*Reader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &Reader{file: f}, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// SheetNames lists the sheets present in the workbook.
func (r *Reader) SheetNames() []string {
	return r.file.GetSheetList()
}

// Rows reads one sheet as a slice of header-keyed rows. headerRow and dataRow
// are 0-based and differ per sheet in the legacy format. A missing sheet
// yields an empty slice, not an error. Rows where every cell is blank after
// trimming are dropped. Empty header cells get a positional COL_<n> name so
// column alignment survives ragged headers.
func (r *Reader) Rows(sheet string, headerRow, dataRow int) ([]Row, error) {
	idx, err := r.file.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, nil
	}
	raw, err := r.file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(raw) <= headerRow {
		return nil, nil
	}

	headers := make([]string, len(raw[headerRow]))
	for i, h := range raw[headerRow] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("COL_%d", i)
		}
		headers[i] = h
	}

	var rows []Row
	for i := dataRow; i < len(raw); i++ {
		cells := raw[i]
		if isBlank(cells) {
			continue
		}
		row := make(Row, len(headers))
		for j, header := range headers {
			if j < len(cells) {
				row[header] = strings.TrimSpace(cells[j])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
