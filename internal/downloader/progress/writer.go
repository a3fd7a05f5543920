package progress

import "io"

// Writer wraps an io.Writer and reports progress via a callback every
// interval bytes and once when the first 5% have been written.
type Writer struct {
	Writer         io.Writer
	Total          int64
	OnProgress     func(written int64, total int64)
	totalWritten   int64 // cumulative total
	sinceReport    int64 // bytes since last report
	reportInterval int64 // bytes
}

func NewWriter(w io.Writer, total int64, interval int64, cb func(written int64, total int64)) *Writer {
	return &Writer{
		Writer:         w,
		Total:          total,
		OnProgress:     cb,
		reportInterval: interval,
	}
}

func (pw *Writer) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	if n > 0 {
		before := pw.totalWritten
		pw.totalWritten += int64(n)
		pw.sinceReport += int64(n)

		crossedFirstSlice := pw.Total > 0 && pw.totalWritten*100/pw.Total >= 5 && before*100/pw.Total < 5
		if pw.sinceReport >= pw.reportInterval || crossedFirstSlice {
			pw.OnProgress(pw.totalWritten, pw.Total)
			pw.sinceReport = 0
		}
	}

	return n, err
}

// Written returns the number of bytes written so far.
func (pw *Writer) Written() int64 {
	return pw.totalWritten
}
