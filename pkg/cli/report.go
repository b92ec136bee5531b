package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/newtron-network/newtcc/pkg/engine"
)

// detailWidth caps the DETAIL column of a report.
const detailWidth = 100

// statusCell pads and colours a status. Every code is five bytes long so
// tabwriter, which counts escape bytes as width, keeps the columns after
// it aligned.
func statusCell(s engine.Status) string {
	text := fmt.Sprintf("%-8s", s)
	if !colorEnabled {
		return text
	}
	code := "\033[39m"
	switch s {
	case engine.StatusCreated, engine.StatusUpdated, engine.StatusDeleted:
		code = "\033[32m"
	case engine.StatusFailed:
		code = "\033[31m"
	case engine.StatusSkipped:
		code = "\033[33m"
	case engine.StatusNoOp:
		code = "\033[90m"
	}
	return code + text + "\033[0m"
}

// RenderRun writes a per-block table of res to w, followed by the run
// summary.
func RenderRun(w io.Writer, res *engine.RunResult) {
	for _, b := range res.Response {
		header := fmt.Sprintf("config[%d] %s", b.Index, b.Key)
		if b.Site != "" {
			header += "  " + b.Site
		}
		fmt.Fprintln(w, Bold(header))

		t := NewTableTo(w, "KIND", "RESOURCE", "STATUS", "TASK", "DETAIL").WithPrefix("  ").Truncate(4, detailWidth)
		for _, r := range b.Resources {
			detail := r.Msg
			if r.Error != "" {
				detail = fmt.Sprintf("[%s] %s", r.ErrorKind, r.Error)
			}
			t.Row(r.Kind, r.Resource, statusCell(r.Status), r.TaskID, detail)
		}
		t.Flush()

		if b.Error != "" {
			fmt.Fprintf(w, "  %s [%s] %s\n", Red("error:"), b.ErrorKind, b.Error)
		}
		if b.Msg != "" {
			fmt.Fprintln(w, "  "+Dim(b.Msg))
		}
		fmt.Fprintln(w)
	}

	switch {
	case res.Failed:
		fmt.Fprintln(w, Red(res.Msg))
	case res.Changed:
		fmt.Fprintln(w, Green(res.Msg))
	default:
		fmt.Fprintln(w, res.Msg)
	}
	if res.DryRun {
		fmt.Fprintln(w, Yellow("DRY-RUN: No changes applied. Use -x to execute."))
	}
}

// RenderJSON writes res as indented JSON.
func RenderJSON(w io.Writer, res *engine.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
