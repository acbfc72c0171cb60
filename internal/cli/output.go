package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shaiso/mrot/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(os.Stdout, os.Stderr, jsonMode)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Report выводит итоговый отчёт оркестрации.
func (o *Output) Report(report *domain.Report) {
	headers := []string{"STEP", "TARGET", "WORKFLOW", "STATUS", "POLLS", "DURATION", "RUN", "REASON"}
	rows := make([][]string, len(report.Steps))
	for i, res := range report.Steps {
		run := res.HTMLURL
		if run == "" && res.RemoteID != 0 {
			run = strconv.FormatInt(res.RemoteID, 10)
		}
		rows[i] = []string{
			res.Step,
			res.Target,
			res.WorkflowID,
			string(res.Status),
			strconv.Itoa(res.Polls),
			formatDuration(res.Duration()),
			run,
			res.Reason,
		}
	}

	o.Print(headers, rows, report)

	if !o.jsonMode {
		o.Success(fmt.Sprintf("Orchestration %s %s (%s): %s", report.Name, report.Status, report.ID, formatDuration(report.Duration())))
	}
}

// Reports выводит список отчётов из истории.
func (o *Output) Reports(reports []domain.Report) {
	headers := []string{"ID", "NAME", "STATUS", "STEPS", "FAILED", "STARTED", "DURATION"}
	rows := make([][]string, len(reports))
	for i := range reports {
		r := &reports[i]
		counts := r.Counts()
		rows[i] = []string{
			r.ID.String(),
			r.Name,
			string(r.Status),
			strconv.Itoa(len(r.Steps)),
			strconv.Itoa(counts[domain.StepStatusFailed]),
			r.StartedAt.Format(time.RFC3339),
			formatDuration(r.Duration()),
		}
	}

	o.Print(headers, rows, reports)
}

// formatDuration округляет длительность до секунд; 0 выводится как "-".
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
