package extractor

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// decodeSpreadsheet walks every sheet, row and non-empty cell and
// stringifies them: cells joined by spaces, one line per row
func decodeSpreadsheet(data []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer file.Close()

	var lines []string
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			continue
		}

		for _, row := range rows {
			var cells []string
			for _, cell := range row {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " "))
			}
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
