package logging

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/grovetools/rdebug/tui/theme"
	"github.com/sirupsen/logrus"
)

// TextFormatter renders log lines for terminals and Slurm output files,
// where every rank of a job may write to the same stream.
type TextFormatter struct {
	Config FormatConfig
	// Origin identifies the writing process inside a job, e.g. "job 1234.0 rank 3".
	// Empty outside a job.
	Origin string
}

// Format renders a single log entry.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	if !f.Config.DisableTimestamp {
		b.WriteString(entry.Time.Format("15:04:05.000 "))
	}
	b.WriteString(levelTag(entry.Level))

	if f.Origin != "" {
		fmt.Fprintf(&b, " (%s)", f.Origin)
	}
	if component, ok := entry.Data["component"]; ok && !f.Config.DisableComponent {
		fmt.Fprintf(&b, " [%s]", theme.DefaultTheme.Accent.Render(fmt.Sprint(component)))
	}
	if entry.HasCaller() {
		fmt.Fprintf(&b, " [%s:%d]", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}

	b.WriteString(" ")
	b.WriteString(entry.Message)

	var errValue interface{}
	keys := make([]string, 0, len(entry.Data))
	for key, value := range entry.Data {
		switch key {
		case "component":
		case logrus.ErrorKey:
			errValue = value
		default:
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, fieldValue(entry.Data[key]))
	}
	if errValue != nil {
		fmt.Fprintf(&b, " %s=%s", logrus.ErrorKey, fieldValue(errValue))
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}

func levelTag(level logrus.Level) string {
	switch level {
	case logrus.WarnLevel:
		return "WARN"
	case logrus.PanicLevel, logrus.FatalLevel:
		return "FATAL"
	default:
		return strings.ToUpper(level.String())
	}
}

// fieldValue quotes values that would otherwise break key=value parsing.
func fieldValue(v interface{}) string {
	var s string
	if err, ok := v.(error); ok {
		s = err.Error()
	} else {
		s = fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

// jobOrigin describes the Slurm task writing the log, or "" outside a job.
func jobOrigin(getenv func(string) string) string {
	job := getenv("SLURM_JOB_ID")
	if job == "" {
		return ""
	}
	if step := getenv("SLURM_STEP_ID"); step != "" {
		job += "." + step
	}
	origin := "job " + job
	if rank := getenv("SLURM_PROCID"); rank != "" {
		origin += " rank " + rank
	}
	return origin
}
