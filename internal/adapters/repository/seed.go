package repository

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/skinmate/internal/domain/model"
)

// LoadMentorSeed reads candidates from a YAML file with a top-level
// "mentors" list. Field names follow the JSON names of MentorCandidate.
func LoadMentorSeed(path string) ([]model.MentorCandidate, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load mentor seed %s: %w", path, err)
	}
	var out []model.MentorCandidate
	if err := k.UnmarshalWithConf("mentors", &out, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decode mentor seed %s: %w", path, err)
	}
	for i, c := range out {
		if c.ID == "" || c.PrimaryConcern == "" {
			return nil, fmt.Errorf("%w: seed entry %d", ErrInvalidCandidate, i)
		}
	}
	return out, nil
}
