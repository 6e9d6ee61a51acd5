// Package nlog provides the engine's process-wide structured logger:
// leveled, timestamped output with an optional file sink alongside stderr.
package nlog

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type severity int32

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	title        = "snaptransfer"

	mu      sync.Mutex
	fh      *os.File
	minSev  atomic.Int32
)

// InitFlags registers logging flags on flset, mirroring the node's other
// glog-style components so operators can toggle destinations uniformly.
func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", true, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

// SetLogDir points the file sink at dir; an empty dir keeps logging on stderr only.
func SetLogDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	logDir = dir
	if fh != nil {
		fh.Close()
		fh = nil
	}
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "nlog: cannot create log dir %s: %v\n", dir, err)
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, title+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nlog: cannot open log file: %v\n", err)
		return
	}
	fh = f
}

func Infof(format string, args ...any)    { logf(sevInfo, format, args...) }
func Warningf(format string, args ...any) { logf(sevWarn, format, args...) }
func Errorf(format string, args ...any)   { logf(sevErr, format, args...) }
func Infoln(args ...any)                  { logln(sevInfo, args...) }
func Warningln(args ...any)               { logln(sevWarn, args...) }
func Errorln(args ...any)                 { logln(sevErr, args...) }

func logf(sev severity, format string, args ...any) {
	write(sev, fmt.Sprintf(format, args...)+"\n")
}

func logln(sev severity, args ...any) {
	write(sev, fmt.Sprintln(args...))
}

func write(sev severity, line string) {
	if int32(sev) < minSev.Load() {
		return
	}
	stamp := time.Now().Format("0102 15:04:05.000000")
	full := fmt.Sprintf("%c%s %s", sevChar(sev), stamp, line)

	mu.Lock()
	defer mu.Unlock()
	if toStderr || alsoToStderr || sev >= sevWarn || fh == nil {
		os.Stderr.WriteString(full)
	}
	if fh != nil {
		fh.WriteString(full)
	}
}

func sevChar(sev severity) byte {
	switch sev {
	case sevWarn:
		return 'W'
	case sevErr:
		return 'E'
	default:
		return 'I'
	}
}

// SetMinSeverity filters below-threshold log calls; 0=info, 1=warn, 2=err.
func SetMinSeverity(s int) { minSev.Store(int32(s)) }

// Flush is a no-op placeholder kept for call-site parity with buffered
// loggers; this sink writes synchronously.
func Flush() {}
