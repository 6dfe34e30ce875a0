package topic

import (
	"strings"
)

// Topic segments relayed for every mission. These form the contract with
// downstream subscribers; changing them breaks existing consumers.
const (
	// SegmentMission groups all per-mission topics.
	// Structure: {root}/mission/{missionID}/...
	SegmentMission = "mission"

	// SuffixState carries the retained mission view model.
	SuffixState = "state"

	// SuffixLog carries one new log entry per publish.
	SuffixLog = "log"
)

// Builder constructs relay topic strings under a fixed root namespace.
type Builder struct {
	root string
}

// NewBuilder creates a Builder for the given root (e.g. "roverops/v1").
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// MissionState returns {root}/mission/{id}/state.
func (b *Builder) MissionState(missionID string) string {
	return b.build(SegmentMission, missionID, SuffixState)
}

// MissionLog returns {root}/mission/{id}/log.
func (b *Builder) MissionLog(missionID string) string {
	return b.build(SegmentMission, missionID, SuffixLog)
}

// MissionWildcard returns {root}/mission/+/{suffix} for subscribers that
// follow every mission.
func (b *Builder) MissionWildcard(suffix string) string {
	return b.build(SegmentMission, "+", suffix)
}

func (b *Builder) build(segments ...string) string {
	if b.root == "" {
		return strings.Join(segments, "/")
	}
	return b.root + "/" + strings.Join(segments, "/")
}
