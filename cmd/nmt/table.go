package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/example/go-nmt/internal/train"
	"github.com/example/go-nmt/internal/vocab"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")

	return table
}

func renderEpochTable(w io.Writer, reports []train.EpochReport) {
	data := make([][]string, 0, len(reports))

	for _, r := range reports {
		saved := ""
		if r.Saved {
			saved = "*"
		}

		data = append(data, []string{
			strconv.Itoa(r.Epoch),
			fmt.Sprintf("%.4f", r.Train.Loss),
			fmt.Sprintf("%.4f", r.Train.Accuracy),
			fmt.Sprintf("%.4f", r.Val.Loss),
			fmt.Sprintf("%.4f", r.Val.Accuracy),
			r.Duration.Round(time.Millisecond).String(),
			saved,
		})
	}

	table := newTable(w, []string{"EPOCH", "TRAIN LOSS", "TRAIN ACC", "VAL LOSS", "VAL ACC", "TIME", "SAVED"})
	table.AppendBulk(data)
	table.Render()
}

func renderVocabTable(w io.Writer, title string, v *vocab.Vocabulary, top int) {
	n := v.Size()
	if top > 0 {
		n = min(n, top+2)
	}

	data := make([][]string, 0, n)
	for id := range n {
		data = append(data, []string{strconv.Itoa(id), v.Token(id), strconv.Itoa(v.Count(id))})
	}

	_, _ = fmt.Fprintf(w, "%s vocabulary: %d tokens\n", title, v.Size())

	table := newTable(w, []string{"ID", "TOKEN", "COUNT"})
	table.AppendBulk(data)
	table.Render()
}
