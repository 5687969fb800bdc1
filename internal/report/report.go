// Package report renders run results for the terminal.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/court-scheduler/internal/domain/booking"
)

// Exit codes of the book and confirm commands.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitAborted = 2
	ExitPartial = 3
)

func ExitCode(s booking.Status) int {
	switch s {
	case booking.StatusSuccess, booking.StatusNoOp:
		return ExitOK
	case booking.StatusPartial:
		return ExitPartial
	case booking.StatusAborted:
		return ExitAborted
	default:
		return ExitFailure
	}
}

func statusColor(s booking.Status) *color.Color {
	switch s {
	case booking.StatusSuccess:
		return color.New(color.FgGreen, color.Bold)
	case booking.StatusPartial, booking.StatusNoOp:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func outcomeIcon(o booking.Outcome) string {
	switch o {
	case booking.OutcomeConfirmed:
		return color.New(color.FgGreen).Sprint("✓")
	case booking.OutcomeCancelled:
		return color.New(color.FgYellow).Sprint("-")
	default:
		return color.New(color.FgRed).Sprint("✗")
	}
}

// Summary writes a human-readable account of res.
func Summary(w io.Writer, res booking.Result) {
	st := res.Status()
	fmt.Fprintf(w, "Run %s: %s\n", res.RunID, statusColor(st).Sprint(st))
	if !res.Window.OpenAt.IsZero() {
		fmt.Fprintf(w, "  slot:   %s (booking opened %s)\n",
			res.Window.OpenAt.Format("Mon 02 Jan 15:04"),
			res.Window.OpeningInstant().Format("15:04:05"))
	}
	switch {
	case res.Err != nil:
		fmt.Fprintf(w, "  error:  %v\n", res.Err)
		return
	case res.CapacityExceeded:
		fmt.Fprintln(w, "  no more reservations can be made right now")
		return
	case len(res.Entries) == 0:
		fmt.Fprintln(w, "  nothing to book")
		return
	}

	for i, e := range res.Entries {
		line := fmt.Sprintf("  %s %d. %-8s %s", outcomeIcon(e.Outcome), i+1, e.Request, e.Target.Name)
		if e.Outcome != booking.OutcomeConfirmed {
			line += "  " + color.New(color.Faint).Sprintf("%s: %s", e.Outcome, e.Detail)
		} else if lag := e.At.Sub(res.Window.OpeningInstant()); !e.At.IsZero() && !res.Window.OpenAt.IsZero() {
			line += "  " + color.New(color.Faint).Sprintf("+%s", lag.Round(time.Millisecond))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "  %d of %d confirmed in %s\n", res.Confirmed(), len(res.Entries),
		res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
}
