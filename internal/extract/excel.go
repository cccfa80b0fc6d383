package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel flattens every sheet into tab-separated rows. Sheets are
// separated by a blank line so paragraph-based chunking keeps them apart.
func extractExcel(content []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	var sheets []string
	for _, name := range wb.GetSheetList() {
		rows, err := wb.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", name, err)
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}
		if text := strings.TrimSpace(strings.Join(lines, "\n")); text != "" {
			sheets = append(sheets, text)
		}
	}
	return strings.Join(sheets, "\n\n"), nil
}
