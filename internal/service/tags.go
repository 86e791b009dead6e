package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jask/recordboard/internal/database/repository"
)

// NormalizeTags splits free text into unique lower-case tag names.
func NormalizeTags(input string) []string {
	raw := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ' ' || r == '\t' || r == '\n'
	})
	seen := map[string]struct{}{}
	var out []string
	for _, part := range raw {
		p := strings.TrimSpace(strings.ToLower(part))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// TagService keeps a record's tag set in sync with a list of names.
type TagService struct {
	Records *repository.RecordRepo
	Tags    *repository.TagRepo
}

// ensure returns the id for name, creating the tag when needed.
func (s *TagService) ensure(ctx context.Context, name string) (string, error) {
	tag, err := s.Tags.ByName(ctx, name)
	if err != nil {
		return "", err
	}
	if tag != nil {
		return tag.ID, nil
	}
	id := uuid.NewString()
	if err := s.Tags.Upsert(ctx, repository.Tag{ID: id, Name: name}); err != nil {
		return "", err
	}
	return id, nil
}

// Attach adds the named tags to a record, leaving existing tags alone.
func (s *TagService) Attach(ctx context.Context, recordID string, names []string) error {
	for _, name := range names {
		id, err := s.ensure(ctx, name)
		if err != nil {
			return err
		}
		if err := s.Records.AttachTag(ctx, recordID, id); err != nil {
			return err
		}
	}
	return nil
}

// Set replaces the record's tags with names.
func (s *TagService) Set(ctx context.Context, rec repository.Record, names []string) error {
	desired := make(map[string]struct{}, len(names))
	for _, n := range names {
		desired[strings.ToLower(n)] = struct{}{}
	}
	if err := s.Attach(ctx, rec.ID, names); err != nil {
		return err
	}
	for _, t := range rec.Tags {
		if _, keep := desired[strings.ToLower(t.Name)]; keep {
			continue
		}
		if err := s.Records.RemoveTag(ctx, rec.ID, t.ID); err != nil {
			return err
		}
	}
	return nil
}
