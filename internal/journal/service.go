package journal

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/suPer8Hu/journal-platform/internal/common"
	"github.com/suPer8Hu/journal-platform/internal/task"
)

const (
	pageSize        = 12
	minContentLen   = 10
	activityDays    = 365
	dashboardTasks  = 50
	defaultTitleFmt = "Jan 02, 2006"
)

var ErrValidation = errors.New("invalid journal entry")

// Cache is the JSON cache used for per-user dashboard data.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type OpenTaskLister interface {
	ListOpen(ctx context.Context, userID uint64, limit int) ([]task.Task, error)
}

type SaveInput struct {
	Title     string
	Content   string
	EntryDate string
	Uploads   map[MediaKind]*multipart.FileHeader
}

type Dashboard struct {
	EntryCount int64          `json:"entryCount"`
	Tasks      []task.Task    `json:"tasks"`
	Activity   map[string]int `json:"activity"`
}

type Service struct {
	repo     *Repo
	tasks    OpenTaskLister
	media    MediaStore
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService wires the entry service. cache may be nil, which disables
// dashboard caching.
func NewService(repo *Repo, tasks OpenTaskLister, media MediaStore, cache Cache, cacheTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		tasks:    tasks,
		media:    media,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

func dashboardKey(userID uint64) string {
	return fmt.Sprintf("user_dashboard_%d", userID)
}

func (s *Service) List(ctx context.Context, userID uint64, search string, page int) (*Page, error) {
	if page <= 0 {
		page = 1
	}
	entries, total, err := s.repo.List(ctx, userID, strings.TrimSpace(search), page, pageSize)
	if err != nil {
		return nil, err
	}
	return &Page{Entries: entries, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *Service) Get(ctx context.Context, userID uint64, id string) (*Entry, error) {
	return s.repo.Get(ctx, userID, id)
}

// FindForReport resolves the entries a report job refers to.
func (s *Service) FindForReport(ctx context.Context, userID uint64, ids []string) ([]Entry, error) {
	return s.repo.FindForReport(ctx, userID, ids)
}

func (s *Service) Create(ctx context.Context, userID uint64, in SaveInput) (*Entry, error) {
	return s.save(ctx, userID, in, nil)
}

func (s *Service) Update(ctx context.Context, userID uint64, id string, in SaveInput) (*Entry, error) {
	existing, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, userID, in, existing)
}

func (s *Service) save(ctx context.Context, userID uint64, in SaveInput, existing *Entry) (*Entry, error) {
	title, content, date, err := validateEntry(in)
	if err != nil {
		return nil, err
	}
	for kind, fh := range in.Uploads {
		if fh == nil {
			continue
		}
		if err := CheckMedia(kind, fh); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	e := existing
	if e == nil {
		id, err := common.NewULID()
		if err != nil {
			return nil, err
		}
		e = &Entry{ID: id, UserID: userID}
	}
	e.Title = title
	e.Content = content
	e.EntryDate = date

	stored, err := s.storeUploads(ctx, in.Uploads)
	if err != nil {
		return nil, err
	}
	for kind, p := range stored {
		switch kind {
		case MediaImage:
			e.Image = p
		case MediaVideo:
			e.Video = p
		case MediaAudio:
			e.Audio = p
		case MediaFile:
			e.File = p
		}
	}

	if existing == nil {
		err = s.repo.Create(ctx, e)
	} else {
		err = s.repo.Save(ctx, e)
	}
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return e, nil
}

func (s *Service) storeUploads(ctx context.Context, uploads map[MediaKind]*multipart.FileHeader) (map[MediaKind]string, error) {
	out := make(map[MediaKind]string, len(uploads))
	if len(uploads) == 0 {
		return out, nil
	}
	if s.media == nil {
		return nil, errors.New("media storage is not configured")
	}
	for kind, fh := range uploads {
		if fh == nil {
			continue
		}
		p, err := s.media.Save(ctx, kind, fh)
		if err != nil {
			saved := make([]string, 0, len(out))
			for _, v := range out {
				saved = append(saved, v)
			}
			_ = s.media.Delete(ctx, saved...)
			return nil, fmt.Errorf("store %s: %w", kind, err)
		}
		out[kind] = p
	}
	return out, nil
}

// Delete moves an entry to the vault.
func (s *Service) Delete(ctx context.Context, userID uint64, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Dashboard returns the entry count, open tasks and a one-year activity
// histogram, cached per user.
func (s *Service) Dashboard(ctx context.Context, userID uint64) (*Dashboard, error) {
	key := dashboardKey(userID)
	if s.cache != nil {
		var cached Dashboard
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("dashboard cache read failed")
		} else if ok {
			return &cached, nil
		}
	}

	d := &Dashboard{}
	since := s.now().AddDate(0, 0, -activityDays).Format(time.DateOnly)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx, userID)
		d.EntryCount = n
		return err
	})
	g.Go(func() error {
		act, err := s.repo.ActivitySince(gctx, userID, since)
		d.Activity = act
		return err
	})
	g.Go(func() error {
		if s.tasks == nil {
			d.Tasks = []task.Task{}
			return nil
		}
		ts, err := s.tasks.ListOpen(gctx, userID, dashboardTasks)
		d.Tasks = ts
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, key, d, s.cacheTTL); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("dashboard cache write failed")
		}
	}
	return d, nil
}

// Invalidate drops cached dashboard data after writes made elsewhere
// (vault restores, task changes).
func (s *Service) Invalidate(ctx context.Context, userID uint64) {
	s.invalidate(ctx, userID)
}

func (s *Service) invalidate(ctx context.Context, userID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, dashboardKey(userID)); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("dashboard cache invalidation failed")
	}
}

func validateEntry(in SaveInput) (title, content, date string, err error) {
	content = strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(content) < minContentLen {
		return "", "", "", fmt.Errorf("%w: content must be at least %d characters", ErrValidation, minContentLen)
	}

	d, perr := time.Parse(time.DateOnly, strings.TrimSpace(in.EntryDate))
	if perr != nil {
		return "", "", "", fmt.Errorf("%w: entry_date must be YYYY-MM-DD", ErrValidation)
	}
	date = d.Format(time.DateOnly)

	title = strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) > 255 {
		return "", "", "", fmt.Errorf("%w: title must be at most 255 characters", ErrValidation)
	}
	if title == "" {
		title = "Daily Entry - " + d.Format(defaultTitleFmt)
	}
	return title, content, date, nil
}
