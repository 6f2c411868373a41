package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/chestxray/cxrdata/pkg/loader"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// newPlainTable creates a table with alternating row styles. The first column is right aligned.
func newPlainTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Left)
			}
			return s.Align(lipgloss.Right)
		})
}

// printSummary prints to w the number of images per class of each split, and the class weights.
func printSummary(w io.Writer, l *loader.Loader) error {
	summaries, err := l.Summary()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, titleStyle.Render("Dataset "+l.BasePath()))
	classNames := summaries[0].ClassNames
	headers := append([]string{"Split"}, classNames...)
	headers = append(headers, "Total")
	table := newPlainTable(headers...)
	for _, summary := range summaries {
		row := []string{summary.Split}
		for label := range classNames {
			row = append(row, humanize.Comma(int64(summary.ClassCounts[label])))
		}
		row = append(row, humanize.Comma(int64(summary.Samples)))
		table.Row(row...)
	}
	fmt.Fprintln(w, table.Render())

	fmt.Fprintln(w, titleStyle.Render("Class weights"))
	weights := l.Config().ClassWeights
	table = newPlainTable("Label", "Class", "Weight")
	for _, label := range l.Config().SortedLabels() {
		className := "?"
		if label >= 0 && label < len(classNames) {
			className = classNames[label]
		}
		table.Row(strconv.Itoa(label), className, fmt.Sprintf("%.4f", weights[label]))
	}
	fmt.Fprintln(w, table.Render())
	return nil
}
