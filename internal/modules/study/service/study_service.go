package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"studysync/internal/modules/study/domain"
	studyout "studysync/internal/modules/study/port/out"
	"studysync/internal/platform/clock"
	apperrors "studysync/internal/platform/errors"
	"studysync/internal/platform/tx"
)

type StudyService struct {
	clock  clock.Clock
	store  studyout.Store
	tx     tx.Manager
	logger *slog.Logger
}

func NewStudyService(clock clock.Clock, store studyout.Store, txManager tx.Manager, logger *slog.Logger) *StudyService {
	return &StudyService{clock: clock, store: store, tx: txManager, logger: logger}
}

type ProjectDetail struct {
	Project  domain.Project
	Speakers []domain.Speaker
	Segments []domain.Segment
	Keywords map[string][]domain.Keyword
}

func (s *StudyService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.store.ListProjects(ctx)
}

// LearnedCounts returns the number of learned segments per project id.
func (s *StudyService) LearnedCounts(ctx context.Context, projects []domain.Project) (map[string]int, error) {
	out := make(map[string]int, len(projects))
	for _, p := range projects {
		segments, err := s.store.ListSegments(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, seg := range segments {
			if seg.Progress.Learned {
				out[p.ID]++
			}
		}
	}
	return out, nil
}

func (s *StudyService) GetProject(ctx context.Context, id string) (ProjectDetail, error) {
	if strings.TrimSpace(id) == "" {
		return ProjectDetail{}, fmt.Errorf("%w: project id is required", apperrors.ErrInvalidInput)
	}
	var detail ProjectDetail
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		project, err := s.store.GetProject(ctx, id)
		if err != nil {
			return err
		}
		speakers, err := s.store.ListSpeakers(ctx, id)
		if err != nil {
			return err
		}
		segments, err := s.store.ListSegments(ctx, id)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(segments))
		for _, seg := range segments {
			ids = append(ids, seg.ID)
		}
		keywords, err := s.store.ListKeywordsBySegmentIDs(ctx, ids)
		if err != nil {
			return err
		}
		detail = ProjectDetail{Project: project, Speakers: speakers, Segments: segments, Keywords: keywords}
		return nil
	})
	if err != nil {
		return ProjectDetail{}, err
	}
	return detail, nil
}

func (s *StudyService) RecordReview(ctx context.Context, projectID string, index int, learned bool, difficult *bool) (domain.Segment, error) {
	var updated domain.Segment
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		segments, err := s.store.ListSegments(ctx, projectID)
		if err != nil {
			return err
		}
		for _, seg := range segments {
			if seg.Index != index {
				continue
			}
			seg.Progress = seg.Progress.RecordReview(s.clock.Now(), learned, difficult)
			if err := s.store.UpdateSegmentProgress(ctx, seg.ID, seg.Progress); err != nil {
				return err
			}
			updated = seg
			return nil
		}
		if _, err := s.store.GetProject(ctx, projectID); err != nil {
			return err
		}
		return fmt.Errorf("%w: segment %d in project %s", apperrors.ErrNotFound, index, projectID)
	})
	if err != nil {
		return domain.Segment{}, err
	}
	s.logger.Debug("review recorded", slog.String("project", projectID), slog.Int("index", index), slog.Bool("learned", learned))
	return updated, nil
}

// RenameSpeaker pins a user-chosen name on the speaker so that later merges
// keep it.
func (s *StudyService) RenameSpeaker(ctx context.Context, projectID, label, name string) (domain.Speaker, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Speaker{}, fmt.Errorf("%w: speaker name is required", apperrors.ErrInvalidInput)
	}
	var renamed domain.Speaker
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		speakers, err := s.store.ListSpeakers(ctx, projectID)
		if err != nil {
			return err
		}
		for _, sp := range speakers {
			if sp.Label != label {
				continue
			}
			now := s.clock.Now()
			if err := s.store.UpdateSpeakerName(ctx, sp.ID, name, true, now); err != nil {
				return err
			}
			sp.DisplayName = name
			sp.IsManual = true
			sp.NameUpdatedAt = now
			renamed = sp
			return nil
		}
		return fmt.Errorf("%w: speaker %s in project %s", apperrors.ErrNotFound, label, projectID)
	})
	if err != nil {
		return domain.Speaker{}, err
	}
	return renamed, nil
}

func (s *StudyService) DeleteProject(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.logger.Info("project deleted", slog.String("project", id))
	return nil
}
