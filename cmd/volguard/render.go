package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lk2023060901/volguard/pkg/volumeset"
)

// renderReport 输出每个卷的诊断表格和汇总
func renderReport(w io.Writer, rep *volumeset.Report) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"#", "Volume", "Role", "Outcome", "Size", "Checksum", "Reason"})
	for _, v := range rep.Volumes {
		tbl.AppendRow(table.Row{
			v.Index,
			filepath.Base(v.Path),
			v.Role.String(),
			v.Outcome.String(),
			humanize.IBytes(uint64(v.Bytes)),
			checksumCell(v),
			reasonCell(v),
		})
	}
	tbl.AppendFooter(table.Row{"", fmt.Sprintf("%d/%d volumes", len(rep.Volumes), rep.Config.Total())})
	tbl.Render()

	fmt.Fprintf(w, "Pass:     %s (%s)\n", rep.Kind, rep.Status)
	fmt.Fprintf(w, "Read:     %s in %s (%s/s)\n",
		humanize.IBytes(uint64(rep.Bytes())), rep.Duration().Round(time.Millisecond), throughput(rep))

	if rep.Kind != volumeset.PassAnalyze || rep.Status == volumeset.StatusCancelled || rep.Status == volumeset.StatusFailed {
		return
	}
	fmt.Fprintf(w, "Plan:     %s\n", rep.Plan)
	fmt.Fprintf(w, "Damaged:  %.1f%% (%d data, %d parity)\n",
		rep.Stats.DamagedPercent, rep.Stats.MissingData, rep.Stats.MissingParity)
	fmt.Fprintf(w, "Spare:    %.1f%% alternate parity\n", rep.Stats.AlternateParityPercent)
	if rep.Config.FastMode {
		fmt.Fprintln(w, "Note:     fast mode, checksums were not verified")
	}
}

func checksumCell(v volumeset.VolumeReport) string {
	if v.Outcome != volumeset.OutcomePresent && v.Outcome != volumeset.OutcomeStamped {
		return ""
	}
	if v.Checksum == 0 && v.Bytes == 0 {
		return ""
	}
	return fmt.Sprintf("%016x", v.Checksum)
}

func reasonCell(v volumeset.VolumeReport) string {
	if v.Reason == nil {
		return ""
	}
	return v.Reason.Error()
}

func throughput(rep *volumeset.Report) string {
	secs := rep.Duration().Seconds()
	if secs <= 0 {
		return humanize.IBytes(0)
	}
	return humanize.IBytes(uint64(float64(rep.Bytes()) / secs))
}
