package download

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// progressWriter is an io.Writer that reports each chunk to the
// registered callbacks and, if enabled, logs progress at most once per
// second.
type progressWriter struct {
	w           io.Writer
	logger      *slog.Logger
	callbacks   []ProgressFunc
	transferred int64
	total       int64
	startTime   time.Time
	lastLog     time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.transferred += int64(n)

	for _, fn := range pw.callbacks {
		fn(pw.transferred, pw.total)
	}

	if pw.logger != nil && time.Since(pw.lastLog) >= time.Second {
		pw.lastLog = time.Now()
		pw.log("downloading")
	}

	return n, err
}

// complete logs the final line once the copy has finished.
func (pw *progressWriter) complete() {
	if pw.logger != nil {
		pw.log("download complete")
	}
}

func (pw *progressWriter) log(msg string) {
	elapsed := time.Since(pw.startTime)
	progress := "unknown"
	if pw.total > 0 {
		progress = fmt.Sprintf("%.1f%%", float64(pw.transferred)/float64(pw.total)*100)
	}

	mbps := "0.00"
	if secs := elapsed.Seconds(); secs > 0 {
		mbps = fmt.Sprintf("%.2f", float64(pw.transferred)/secs/(1024*1024))
	}

	attrs := []any{
		"progress", progress,
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", pw.transferred,
		"total", pw.total,
		"mbps", mbps,
	}
	pw.logger.Info(msg, attrs...)
}
