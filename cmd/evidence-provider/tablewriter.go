package main

import (
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

type VisualTable struct {
	Header   []string
	Data     [][]string
	RowColor []RowColor
	out      io.Writer
}

// RowColor paints the listed columns of one row.
type RowColor struct {
	row    int
	column []int
	color  []tablewriter.Colors
}

func NewVisualTable(header []string, data [][]string, rowColor []RowColor) *VisualTable {
	return &VisualTable{
		Header:   header,
		Data:     data,
		RowColor: rowColor,
		out:      os.Stdout,
	}
}

func (v *VisualTable) rowColors(index int) []tablewriter.Colors {
	var colors []tablewriter.Colors
	for _, rc := range v.RowColor {
		if rc.row != index {
			continue
		}
		for col := range v.Data[index] {
			c := tablewriter.Colors{}
			for n, colIndex := range rc.column {
				if col == colIndex {
					c = rc.color[n]
				}
			}
			colors = append(colors, c)
		}
	}
	return colors
}

func (v *VisualTable) Generate() {
	table := tablewriter.NewWriter(v.out)
	for index := range v.Data {
		table.Rich(v.Data[index], v.rowColors(index))
	}

	table.SetHeader(v.Header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	table.Render()
}

func verifiedColor(verified bool) tablewriter.Colors {
	if verified {
		return tablewriter.Colors{tablewriter.Bold, tablewriter.FgGreenColor}
	}
	return tablewriter.Colors{tablewriter.Bold, tablewriter.FgRedColor}
}
