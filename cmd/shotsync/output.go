package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// emit writes v as indented JSON when asJSON is set and otherwise hands the
// command's stdout to human.
func emit(cmd *cobra.Command, asJSON bool, v any, human func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(out)
	return nil
}

// grid is a rounded go-pretty table whose headers stay left aligned.
type grid struct {
	tw    table.Writer
	width int
}

func newGrid(headers ...string) *grid {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	tw.AppendHeader(row)
	return &grid{tw: tw, width: len(headers)}
}

// add appends a row, padding short rows with blanks.
func (g *grid) add(cells ...any) {
	row := make(table.Row, g.width)
	copy(row, cells)
	for i := len(cells); i < g.width; i++ {
		row[i] = ""
	}
	g.tw.AppendRow(row)
}

// alignRight right-aligns the given 1-based columns, typically counts.
func (g *grid) alignRight(columns ...int) *grid {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	g.tw.SetColumnConfigs(configs)
	return g
}

func (g *grid) writeTo(w io.Writer) {
	fmt.Fprintln(w, g.tw.Render())
}

// displayLabel turns a wire value such as "in-progress" into "In Progress".
func displayLabel(value string) string {
	return titleCaser.String(strings.ReplaceAll(value, "-", " "))
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
