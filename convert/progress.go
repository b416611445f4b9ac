package convert

import "github.com/schollz/progressbar/v3"

// progressReporter is satisfied by both a real progress bar and a silent
// stand-in, so Convert doesn't need to branch on quiet mode at every call
// site.
type progressReporter interface {
	Add(n int)
	Close() error
}

type barReporter struct {
	bar *progressbar.ProgressBar
}

func (b barReporter) Add(n int)    { b.bar.Add(n) }
func (b barReporter) Close() error { return b.bar.Close() }

type quietReporter struct{}

func (quietReporter) Add(int)      {}
func (quietReporter) Close() error { return nil }

// newProgressReporter builds a count-based tracker over total items, or a
// silent stand-in when quiet is set. Adapted from teacher's
// defaultProgressWriter/quietProgressWriter split in progress.go, collapsed
// from a package-global swappable singleton (pmtiles serves many callers
// through one shared writer) to a value Convert holds directly, since this
// pipeline has exactly one caller per run.
func newProgressReporter(total int64, description string, quiet bool) progressReporter {
	if quiet {
		return quietReporter{}
	}
	return barReporter{bar: progressbar.Default(total, description)}
}
