package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/markdown"
)

const blankTemplate = "# Weekly Progress Report\n\n## Executive Summary\n \n## Technical Accomplishments\n-\n\n## Challenges & Resolutions\n-\n\n## Key Learnings\n-\n\n## Forward Outlook\n-\n"

// Input carries report fields from a request. Nil presentation fields fall
// back to the defaults on create and keep their stored value on update.
type Input struct {
	Content     string
	Period      *Period
	Title       *string
	UserName    *string
	UserRole    *string
	CompanyName *string
	FooterText  *string
}

func (s *Service) List(ctx context.Context, userID uint64) ([]Report, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID uint64, id string) (*Report, error) {
	return s.repo.Get(ctx, userID, id)
}

// Store saves a new report. userName is the fallback author name.
func (s *Service) Store(ctx context.Context, userID uint64, userName string, in Input) (*Report, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: report content is required", ErrValidation)
	}
	if in.Period == nil {
		return nil, fmt.Errorf("%w: period is required", ErrValidation)
	}
	p, err := normalizePeriod(*in.Period)
	if err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	rep := &Report{
		ID:          id,
		UserID:      userID,
		Content:     content,
		Period:      datatypes.NewJSONType(p),
		Title:       orDefault(in.Title, s.defaults.Title),
		UserName:    orDefault(in.UserName, userName),
		UserRole:    orDefault(in.UserRole, s.defaults.UserRole),
		CompanyName: orDefault(in.CompanyName, s.defaults.CompanyName),
		FooterText:  orDefault(in.FooterText, s.defaults.FooterText),
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Service) Update(ctx context.Context, userID uint64, id string, in Input) (*Report, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: report content is required", ErrValidation)
	}
	rep, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	rep.Content = content
	if in.Period != nil {
		p, err := normalizePeriod(*in.Period)
		if err != nil {
			return nil, err
		}
		rep.Period = datatypes.NewJSONType(p)
	}
	rep.Title = orDefault(in.Title, rep.Title)
	rep.UserName = orDefault(in.UserName, rep.UserName)
	rep.UserRole = orDefault(in.UserRole, rep.UserRole)
	rep.CompanyName = orDefault(in.CompanyName, rep.CompanyName)
	rep.FooterText = orDefault(in.FooterText, rep.FooterText)

	if err := s.repo.Save(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Service) Delete(ctx context.Context, userID uint64, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// Draft is an unsaved report shown in the editor.
type Draft struct {
	Content     string           `json:"report"`
	Blocks      []markdown.Block `json:"blocks"`
	Period      Period           `json:"period"`
	Title       string           `json:"report_title"`
	UserName    string           `json:"user_name"`
	UserRole    string           `json:"user_role"`
	CompanyName string           `json:"company_name"`
	FooterText  string           `json:"footer_text"`
}

// Draft returns the editor starting point: the result of a completed job
// owned by the user when jobID names one, otherwise a blank template for the
// current week.
func (s *Service) Draft(ctx context.Context, userID uint64, userName, jobID string) (*Draft, error) {
	content := blankTemplate
	period := weekOf(s.now())

	if jobID != "" {
		job, err := s.repo.GetJob(ctx, userID, jobID)
		if err != nil && !errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		if job != nil && job.Status == JobCompleted && job.Report != nil {
			content = markdown.CleanUp(*job.Report)
			if p := job.Period(); p != nil {
				period = *p
			}
		}
	}

	return s.newDraft(content, period, userName, Input{}), nil
}

// Preview renders unsaved editor content with defaults applied.
func (s *Service) Preview(userName string, in Input) (*Draft, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: report content is required", ErrValidation)
	}
	if in.Period == nil {
		return nil, fmt.Errorf("%w: period is required", ErrValidation)
	}
	return s.newDraft(markdown.CleanUp(content), *in.Period, userName, in), nil
}

func (s *Service) newDraft(content string, p Period, userName string, in Input) *Draft {
	return &Draft{
		Content:     content,
		Blocks:      markdown.ParseBlocks(content),
		Period:      p,
		Title:       orDefault(in.Title, s.defaults.Title),
		UserName:    orDefault(in.UserName, userName),
		UserRole:    orDefault(in.UserRole, s.defaults.UserRole),
		CompanyName: orDefault(in.CompanyName, s.defaults.CompanyName),
		FooterText:  orDefault(in.FooterText, s.defaults.FooterText),
	}
}

func normalizePeriod(p Period) (Period, error) {
	start, err := time.Parse(time.DateOnly, strings.TrimSpace(p.Start))
	if err != nil {
		return Period{}, fmt.Errorf("%w: period.start must be YYYY-MM-DD", ErrValidation)
	}
	end, err := time.Parse(time.DateOnly, strings.TrimSpace(p.End))
	if err != nil {
		return Period{}, fmt.Errorf("%w: period.end must be YYYY-MM-DD", ErrValidation)
	}
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: period.end is before period.start", ErrValidation)
	}
	return Period{Start: start.Format(time.DateOnly), End: end.Format(time.DateOnly)}, nil
}

// weekOf returns the Monday to Sunday week containing t.
func weekOf(t time.Time) Period {
	offset := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -offset)
	return Period{
		Start: monday.Format(time.DateOnly),
		End:   monday.AddDate(0, 0, 6).Format(time.DateOnly),
	}
}

func orDefault(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	if s := strings.TrimSpace(*v); s != "" {
		return s
	}
	return fallback
}
