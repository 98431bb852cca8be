// Package checkpoint persists complete session snapshots and loads them back
// for resume. A checkpoint that fails schema or invariant validation is
// reported as corrupt and never repaired.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/interview-conductor/internal/interview"
)

// Format is the checkpoint envelope version written by Encode.
const Format = 1

//go:embed schema.json
var schemaJSON string

var schema = mustSchema(schemaJSON)

func mustSchema(raw string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("checkpoint schema: %v", err))
	}
	return s
}

// Checkpoint is the persisted envelope around a session snapshot.
type Checkpoint struct {
	Format  int                `json:"format"`
	SavedAt time.Time          `json:"saved_at"`
	Session *interview.Session `json:"session"`
}

// Summary describes a stored checkpoint without decoding its history.
type Summary struct {
	SessionID      string
	Candidate      string
	JobTitle       string
	Phase          interview.Phase
	Version        int
	LastActivityAt time.Time
	SavedAt        time.Time
}

// Encode serializes a session snapshot. The session must satisfy its invariants.
func Encode(s *interview.Session, savedAt time.Time) ([]byte, error) {
	if s == nil {
		return nil, errors.New("session is required")
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to checkpoint session %s: %w", s.ID, err)
	}

	data, err := json.Marshal(Checkpoint{Format: Format, SavedAt: savedAt.UTC(), Session: s})
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint %s: %w", s.ID, err)
	}
	return data, nil
}

// Decode parses and validates a checkpoint. Any failure is a *interview.CorruptCheckpoint.
func Decode(sessionID string, data []byte) (*Checkpoint, error) {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &interview.CorruptCheckpoint{SessionID: sessionID, Reason: "unreadable document", Cause: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, &interview.CorruptCheckpoint{SessionID: sessionID, Reason: "schema: " + strings.Join(problems, "; ")}
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, &interview.CorruptCheckpoint{SessionID: sessionID, Reason: "decode", Cause: err}
	}

	if sessionID != "" && cp.Session.ID != sessionID {
		return nil, &interview.CorruptCheckpoint{
			SessionID: sessionID,
			Reason:    fmt.Sprintf("checkpoint holds session %q", cp.Session.ID),
		}
	}

	if err := cp.Session.Validate(); err != nil {
		return nil, &interview.CorruptCheckpoint{SessionID: cp.Session.ID, Reason: "invariants", Cause: err}
	}

	return &cp, nil
}

func summarize(cp *Checkpoint) Summary {
	return Summary{
		SessionID:      cp.Session.ID,
		Candidate:      cp.Session.Candidate.Name,
		JobTitle:       cp.Session.Job.Title,
		Phase:          cp.Session.Phase,
		Version:        cp.Session.Version,
		LastActivityAt: cp.Session.LastActivityAt,
		SavedAt:        cp.SavedAt,
	}
}
