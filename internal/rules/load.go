package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a vocabulary file:
//
//	replace_defaults: false
//	phrases:
//	  meter reading: CP22_READING
//	months:
//	  sept: SEP
type File struct {
	ReplaceDefaults bool              `yaml:"replace_defaults"`
	Phrases         map[string]string `yaml:"phrases"`
	Months          map[string]string `yaml:"months"`
}

// LoadFile reads a vocabulary file and overlays it on the defaults.
func LoadFile(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return v, nil
}

// Parse builds a validated Vocabulary from YAML. Entries in the document
// override built-in entries with the same normalized key.
func Parse(data []byte) (*Vocabulary, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}

	phrases := map[string]string{}
	months := map[string]string{}
	if !f.ReplaceDefaults {
		for k, v := range defaultPhrases {
			phrases[k] = v
		}
		for k, v := range defaultMonths {
			months[k] = v
		}
	}
	if err := overlay(phrases, f.Phrases, "phrase"); err != nil {
		return nil, err
	}
	if err := overlay(months, f.Months, "month"); err != nil {
		return nil, err
	}

	v, err := NewVocabulary(phrases, months)
	if err != nil {
		return nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

func overlay(dst, src map[string]string, kind string) error {
	fromFile := make(map[string]string, len(src))
	for rawKey := range src {
		key := NormalizeKey(rawKey)
		if prev, ok := fromFile[key]; ok {
			return fmt.Errorf("%s keys %q and %q collide as %q", kind, prev, rawKey, key)
		}
		fromFile[key] = rawKey
	}
	for existing := range dst {
		if _, ok := fromFile[NormalizeKey(existing)]; ok {
			delete(dst, existing)
		}
	}
	for k, v := range src {
		dst[NormalizeKey(k)] = v
	}
	return nil
}
