package importer

import (
	"fmt"
	"io"
	"sync"
)

// Reporter prints one operator-facing line per outcome. Successes go to out,
// failures to errOut.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// NewReporter builds a Reporter. A nil writer discards its lines.
func NewReporter(out, errOut io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	return &Reporter{out: out, errOut: errOut}
}

func (r *Reporter) Created(designation string) {
	r.println(r.out, "Article %q created.", designation)
}

func (r *Reporter) Existing(designation string) {
	r.println(r.out, "Article %q already exists.", designation)
}

func (r *Reporter) Skipped(err *RowError) {
	r.println(r.errOut, "Article %q skipped (line %d): %v", err.Designation, err.Line, err.Err)
}

func (r *Reporter) QRGenerated(designation, link string) {
	r.println(r.out, "QR code generated for %q with URL: %s", designation, link)
}

func (r *Reporter) QRFailed(err *RowError) {
	r.println(r.errOut, "QR code for %q not generated (line %d): %v", err.Designation, err.Line, err.Err)
}

func (r *Reporter) Aborted(err error) {
	r.println(r.errOut, "Import aborted: %v", err)
}

func (r *Reporter) Finished(s Summary) {
	r.println(r.out, "Import finished: %d rows, %d created, %d existing, %d skipped, %d QR codes generated, %d QR failures.",
		s.Rows, s.Created, s.Existing, s.Skipped, s.QRGenerated, s.QRFailed)
}

func (r *Reporter) println(w io.Writer, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(w, format+"\n", args...)
}
