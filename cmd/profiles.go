package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spigell/interview-conductor/internal/interview"
)

func loadProfiles(jobPath, candidatePath string) (interview.JobProfile, interview.CandidateProfile, error) {
	var job interview.JobProfile
	var candidate interview.CandidateProfile

	if err := decodeYAMLFile(jobPath, &job); err != nil {
		return job, candidate, fmt.Errorf("job profile: %w", err)
	}
	if err := decodeYAMLFile(candidatePath, &candidate); err != nil {
		return job, candidate, fmt.Errorf("candidate profile: %w", err)
	}

	if err := job.Validate(); err != nil {
		return job, candidate, err
	}
	if err := candidate.Validate(); err != nil {
		return job, candidate, err
	}
	return job, candidate, nil
}

// decodeYAMLFile rejects unknown keys so that typos in profiles surface early.
func decodeYAMLFile(path string, out any) error {
	if path == "" {
		return errors.New("path is not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s is empty", path)
		}
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
