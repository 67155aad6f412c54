package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/userdb/internal/syncdb"
	"github.com/fatih/color"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	failMark = color.New(color.FgRed).Sprint("✗")
)

// check prints a failed result and returns its error. Successful results
// print nothing.
func check[T any](w io.Writer, res syncdb.Result[T]) error {
	if res.OK() {
		return nil
	}
	kind := color.New(color.FgRed, color.Bold).Sprint(strings.ToUpper(res.Kind.String()))
	fmt.Fprintf(w, "%s %s: %s\n", failMark, kind, describe(res))
	return res.Err()
}

func describe[T any](res syncdb.Result[T]) string {
	switch res.Kind {
	case syncdb.KindLogicalError:
		return fmt.Sprint(res.Cause)
	case syncdb.KindInvalidDatabase:
		return "the database file is not a valid SQLite database"
	case syncdb.KindResourceUnreachable:
		return fmt.Sprintf("%s failed: %v", res.Op, res.Cause)
	case syncdb.KindProviderFailure:
		return fmt.Sprintf("%s returned no stream", res.Op)
	case syncdb.KindTooManyConflicts:
		return fmt.Sprintf("document kept changing, gave up after %d attempts", res.Attempts)
	}
	return res.String()
}

func done(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", okMark, fmt.Sprintf(format, args...))
}

func printTable(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}

func printStatuses(w io.Writer, sts []syncdb.Status) {
	rows := make([][]string, 0, len(sts))
	for _, st := range sts {
		loc := "-"
		remembered := "-"
		if st.Mode == syncdb.External {
			loc = st.Location.String()
			remembered = st.Remembered.String()
		}
		mode := st.Mode.String()
		if st.Mode == syncdb.External {
			mode = color.New(color.FgCyan).Sprint(mode)
		}
		if !st.Registered {
			mode = color.New(color.FgYellow).Sprint("unknown")
		}
		rows = append(rows, []string{st.UserID, mode, loc, remembered, yesNo(st.ManagedExists), yesNo(st.CacheExists)})
	}
	printTable(w, []string{"USER", "MODE", "LOCATION", "REMEMBERED", "MANAGED", "CACHE"}, rows)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
