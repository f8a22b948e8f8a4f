package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrNoData          = errors.New("No data provided")
	ErrNotFound        = errors.New("Task not found")
	ErrTitleRequired   = errors.New("Title is required")
	ErrTitleEmpty      = errors.New("Title cannot be empty")
	ErrInvalidPriority = errors.New("Valid priority is required (Low, Medium, High)")
)

// FieldError reports a request field whose JSON type cannot be used.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return fmt.Sprintf("Invalid value for field %q", e.Field) }

func (e *FieldError) Unwrap() error { return e.Err }

// IsClientError reports whether err comes from the request rather than the
// store: validation failures and missing tasks.
func IsClientError(err error) bool {
	var fe *FieldError
	switch {
	case errors.As(err, &fe),
		errors.Is(err, ErrNoData),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTitleRequired),
		errors.Is(err, ErrTitleEmpty),
		errors.Is(err, ErrInvalidPriority):
		return true
	}
	return false
}

// Repository is the task store. Create and Update validate their input and
// persist nothing when validation fails.
type Repository interface {
	List(ctx context.Context) ([]Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	Create(ctx context.Context, in NewTask) (Task, error)
	Update(ctx context.Context, id int64, p Patch) (Task, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}

// Clock returns the current time; stores use it to stamp CreatedDate.
type Clock func() time.Time

func today(now Clock) string {
	return now().Local().Format(DateLayout)
}

type InMemoryRepo struct {
	mu    sync.Mutex
	seq   int64
	now   Clock
	store map[int64]Task
}

func NewInMemoryRepo() *InMemoryRepo {
	return NewInMemoryRepoWithClock(time.Now)
}

func NewInMemoryRepoWithClock(now Clock) *InMemoryRepo {
	return &InMemoryRepo{
		now:   now,
		store: make(map[int64]Task),
	}
}

func (r *InMemoryRepo) Close() error { return nil }

func (r *InMemoryRepo) Create(_ context.Context, in NewTask) (Task, error) {
	in, err := in.normalize()
	if err != nil {
		return Task{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	t := Task{
		ID:          r.seq,
		Title:       in.Title,
		Description: in.Description,
		Status:      false,
		Priority:    in.Priority,
		CreatedDate: today(r.now),
		DueDate:     in.DueDate,
	}
	r.store[t.ID] = t
	return t, nil
}

func (r *InMemoryRepo) List(_ context.Context) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Task, 0, len(r.store))
	for _, t := range r.store {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedDate != out[j].CreatedDate {
			return out[i].CreatedDate > out[j].CreatedDate
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *InMemoryRepo) Get(_ context.Context, id int64) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.store[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (r *InMemoryRepo) Update(_ context.Context, id int64, p Patch) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.store[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	next, err := p.Apply(cur)
	if err != nil {
		return Task{}, err
	}
	r.store[id] = next
	return next, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[id]; !ok {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}
