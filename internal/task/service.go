package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/journal-platform/internal/common"
)

var (
	ErrValidation        = errors.New("invalid task")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

type Input struct {
	Name     string  `json:"name"`
	DueDate  *string `json:"due_date"`
	Priority string  `json:"priority"`
}

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID uint64) ([]Task, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID uint64, id string) (*Task, error) {
	return s.repo.Get(ctx, userID, id)
}

func (s *Service) Create(ctx context.Context, userID uint64, in Input) (*Task, error) {
	name, due, prio, err := validate(in)
	if err != nil {
		return nil, err
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	t := &Task{
		ID:       id,
		UserID:   userID,
		Name:     name,
		DueDate:  due,
		Priority: prio,
		Status:   StatusTodo,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, userID uint64, id string, in Input) (*Task, error) {
	name, due, prio, err := validate(in)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	t.Name = name
	t.DueDate = due
	t.Priority = prio
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, userID uint64, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// Toggle flips a task between completed and todo.
func (s *Service) Toggle(ctx context.Context, userID uint64, id string) (*Task, error) {
	return s.transition(ctx, userID, id, func(t *Task) error {
		if t.Status == StatusCompleted {
			t.Status = StatusTodo
		} else {
			t.Status = StatusCompleted
		}
		return nil
	})
}

func (s *Service) Start(ctx context.Context, userID uint64, id string) (*Task, error) {
	return s.transition(ctx, userID, id, func(t *Task) error {
		if t.Status != StatusTodo && t.Status != StatusPaused {
			return fmt.Errorf("%w: cannot start a %s task", ErrInvalidTransition, t.Status)
		}
		t.Status = StatusInProgress
		return nil
	})
}

// Pause keeps progress on an in-progress task without completing it.
func (s *Service) Pause(ctx context.Context, userID uint64, id string) (*Task, error) {
	return s.transition(ctx, userID, id, func(t *Task) error {
		if t.Status != StatusInProgress {
			return fmt.Errorf("%w: cannot pause a %s task", ErrInvalidTransition, t.Status)
		}
		t.Status = StatusPaused
		return nil
	})
}

func (s *Service) transition(ctx context.Context, userID uint64, id string, apply func(*Task) error) (*Task, error) {
	t, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := apply(t); err != nil {
		return nil, err
	}
	t.Completed = t.Status == StatusCompleted
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func validate(in Input) (string, *string, Priority, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > 255 {
		return "", nil, "", fmt.Errorf("%w: name must be at most 255 characters", ErrValidation)
	}

	var due *string
	if in.DueDate != nil && strings.TrimSpace(*in.DueDate) != "" {
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(*in.DueDate))
		if err != nil {
			return "", nil, "", fmt.Errorf("%w: due_date must be YYYY-MM-DD", ErrValidation)
		}
		v := d.Format(time.DateOnly)
		due = &v
	}

	prio := Priority(strings.ToLower(strings.TrimSpace(in.Priority)))
	if prio == "" {
		prio = PriorityMedium
	}
	if !prio.Valid() {
		return "", nil, "", fmt.Errorf("%w: priority must be low, medium or high", ErrValidation)
	}
	return name, due, prio, nil
}
