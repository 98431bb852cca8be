// Package interview holds the domain model shared by every part of the
// interview engine: closed enumerations, profiles, topics, evaluation records
// and the Session aggregate.
package interview

import "fmt"

// SkillTag is a case-normalized skill identifier supplied by the caller.
type SkillTag string

// Phase is the coarse stage of an interview.
type Phase string

const (
	PhaseIntroduction Phase = "introduction"
	PhaseTechnical    Phase = "technical"
	PhaseBehavioral   Phase = "behavioral"
	PhaseSituational  Phase = "situational"
	PhaseWrappingUp   Phase = "wrapping_up"
	PhaseCompleted    Phase = "completed"
)

// Phases lists every phase in declaration order.
var Phases = []Phase{PhaseIntroduction, PhaseTechnical, PhaseBehavioral, PhaseSituational, PhaseWrappingUp, PhaseCompleted}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIntroduction, PhaseTechnical, PhaseBehavioral, PhaseSituational, PhaseWrappingUp, PhaseCompleted:
		return true
	}
	return false
}

// Closing reports whether the phase no longer requires an active topic.
func (p Phase) Closing() bool {
	return p == PhaseWrappingUp || p == PhaseCompleted
}

// Category classifies the kind of questions a topic produces.
type Category string

const (
	CategoryTechnical    Category = "technical"
	CategoryBehavioral   Category = "behavioral"
	CategorySituational  Category = "situational"
	CategorySystemDesign Category = "system-design"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTechnical, CategoryBehavioral, CategorySituational, CategorySystemDesign:
		return true
	}
	return false
}

// Phase maps a topic category onto the interview phase it belongs to.
func (c Category) Phase() Phase {
	switch c {
	case CategoryTechnical, CategorySystemDesign:
		return PhaseTechnical
	case CategoryBehavioral:
		return PhaseBehavioral
	case CategorySituational:
		return PhaseSituational
	default:
		panic(fmt.Sprintf("interview: unknown category %q", string(c)))
	}
}

// Depth is the difficulty tier of questions on a topic.
type Depth string

const (
	DepthSurface Depth = "surface"
	DepthMedium  Depth = "medium"
	DepthDeep    Depth = "deep"
)

// Level returns the ordinal of the depth, or -1 for unknown values.
func (d Depth) Level() int {
	switch d {
	case DepthSurface:
		return 0
	case DepthMedium:
		return 1
	case DepthDeep:
		return 2
	}
	return -1
}

// Valid reports whether d is a known depth.
func (d Depth) Valid() bool { return d.Level() >= 0 }

// Escalate returns the next deeper tier. Deep is terminal.
func (d Depth) Escalate() Depth {
	switch d {
	case DepthSurface:
		return DepthMedium
	case DepthMedium, DepthDeep:
		return DepthDeep
	default:
		panic(fmt.Sprintf("interview: unknown depth %q", string(d)))
	}
}

// TopicStatus is the lifecycle state of a planned topic.
type TopicStatus string

const (
	StatusPending  TopicStatus = "pending"
	StatusActive   TopicStatus = "active"
	StatusComplete TopicStatus = "complete"
	StatusSkipped  TopicStatus = "skipped"
)

// Valid reports whether s is a known topic status.
func (s TopicStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusComplete, StatusSkipped:
		return true
	}
	return false
}

// Dimension is one axis of response scoring.
type Dimension string

const (
	DimensionTechnical      Dimension = "technical"
	DimensionCommunication  Dimension = "communication"
	DimensionProblemSolving Dimension = "problemSolving"
	DimensionDepth          Dimension = "depth"
	DimensionRelevance      Dimension = "relevance"
	DimensionClarity        Dimension = "clarity"
)

// Dimensions lists every scoring dimension in reporting order.
var Dimensions = []Dimension{
	DimensionTechnical,
	DimensionCommunication,
	DimensionProblemSolving,
	DimensionDepth,
	DimensionRelevance,
	DimensionClarity,
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimensionTechnical, DimensionCommunication, DimensionProblemSolving, DimensionDepth, DimensionRelevance, DimensionClarity:
		return true
	}
	return false
}

// Confidence is the locally derived confidence signal of an evaluation.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether c is a known confidence signal.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// Mode tells the question writer what kind of question to produce.
type Mode string

const (
	ModeOpener     Mode = "opener"
	ModeFollowUp   Mode = "followUp"
	ModeNewTopic   Mode = "newTopic"
	ModeTransition Mode = "transition"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeOpener, ModeFollowUp, ModeNewTopic, ModeTransition:
		return true
	}
	return false
}

// Trend is the short-window direction of scores.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)
