package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// xlsxText renders every sheet as tab separated rows, sheets separated by a
// blank line. Cells come back formatted the way the workbook displays them.
func xlsxText(path string) (string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrUnsupportedFormat, filepath.Base(path), err)
	}
	defer wb.Close()

	var sheets []string
	for _, name := range wb.GetSheetList() {
		rows, err := wb.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", name, err)
		}
		var lines []string
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			sheets = append(sheets, strings.Join(lines, "\n"))
		}
	}
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: %s has no cell text", ErrUnsupportedFormat, filepath.Base(path))
	}
	return strings.Join(sheets, "\n\n"), nil
}
