package mission

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
)

// LogID derives the id of a backend log line: "<mission>-<timestamp>" when
// both are known, where the mission falls back to missionID. Lines without
// a timestamp get a content hash so that redelivery maps to the same id.
func LogID(missionID string, l v1.MissionLog) string {
	mid := l.MissionID
	if mid == "" {
		mid = missionID
	}
	if mid != "" && l.Timestamp != "" {
		return mid + "-" + l.Timestamp
	}

	d := xxhash.New()
	for _, s := range []string{mid, string(l.AgentType), l.Message, string(l.Level), l.Timestamp} {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	return "log-" + strconv.FormatUint(d.Sum64(), 16)
}

// NewLogEntry converts a backend log line.
func NewLogEntry(missionID string, l v1.MissionLog) LogEntry {
	e := LogEntry{
		ID:        LogID(missionID, l),
		Timestamp: l.Timestamp,
		Agent:     l.AgentType,
		Message:   l.Message,
		Level:     l.Level,
	}
	if e.Agent == "" {
		e.Agent = v1.AgentSystem
	}
	if e.Level == "" {
		e.Level = v1.LogLevelInfo
	}
	return e
}
