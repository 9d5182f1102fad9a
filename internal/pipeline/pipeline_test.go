package pipeline

import (
	"context"
	"errors"
	"testing"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, job *Job) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, job *Job) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, job)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if n := len(p.StepNames()); n != 0 {
			t.Errorf("expected 0 steps, got %d", n)
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})
}

func TestPipelineAddSteps(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddSteps(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	names := p.StepNames()
	want := []string{"first", "second", "third"}
	if len(names) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("step %d: got %q, expected %q", i, names[i], want[i])
		}
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New()
		for _, name := range []string{"a", "b", "c"} {
			p.AddSteps(&mockStep{name: name, doFunc: func(_ context.Context, _ *Job) error {
				order = append(order, name)
				return nil
			}})
		}

		job := NewJob("2026-10-18", nil)
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order) != 3 || order[0] != "a" || order[2] != "c" {
			t.Errorf("unexpected order: %v", order)
		}
		if len(job.Steps) != 3 {
			t.Errorf("expected 3 completed steps, got %v", job.Steps)
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		errStep := errors.New("step failed")
		last := &mockStep{name: "last"}
		p := New()
		p.AddSteps(
			&mockStep{name: "fails", doFunc: func(context.Context, *Job) error { return errStep }},
			last,
		)

		err := p.Execute(context.Background(), NewJob("2026-10-18", nil))
		if !errors.Is(err, errStep) {
			t.Errorf("expected errStep, got %v", err)
		}
		if last.callCount != 0 {
			t.Error("step after failure should not run")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "never"}
		p := New()
		p.AddSteps(step)

		if err := p.Execute(ctx, NewJob("2026-10-18", nil)); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not run after cancellation")
		}
	})
}

func TestNewScrapePipeline(t *testing.T) {
	t.Parallel()

	p := NewScrapePipeline(testConfig(), nil)
	want := []string{"navigate", "frame", "fill_date", "search", "collect", "json_fallback", "raw_text", "dedupe"}
	got := p.StepNames()
	if len(got) != len(want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}
