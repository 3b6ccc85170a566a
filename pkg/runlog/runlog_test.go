package runlog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Hrithik-12/Microgpt/pkg/model"
)

func TestRunLog(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "logs", "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Latest(); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("empty log: %v", err)
	}

	cfg := model.DefaultConfig()
	adam := model.DefaultAdamConfig()
	first, err := s.StartRun(cfg, adam, 4192)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.StartRun(cfg, adam, 4192)
	if err != nil {
		t.Fatal(err)
	}
	if id <= first {
		t.Fatalf("run ids not increasing: %d then %d", first, id)
	}

	losses := []float64{3.3, 3.1, 2.9}
	for i, l := range losses {
		if err := s.LogStep(id, model.StepResult{Step: i + 1, NumSteps: 3, Loss: l, LR: 0.01}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.LogStep(id, model.StepResult{Step: 1, Loss: 9}); err == nil {
		t.Fatalf("duplicate step accepted")
	}
	if err := s.FinishRun(id, 2.9); err != nil {
		t.Fatal(err)
	}

	run, err := s.Latest()
	if err != nil {
		t.Fatal(err)
	}
	if run.ID != id || run.Config != cfg || run.Adam != adam || run.NumParams != 4192 {
		t.Fatalf("latest = %+v", run)
	}
	if !run.FinalLoss.Valid || run.FinalLoss.Float64 != 2.9 {
		t.Fatalf("final loss = %+v", run.FinalLoss)
	}

	got, err := s.Losses(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(losses) {
		t.Fatalf("losses = %v", got)
	}
	for i := range got {
		if got[i] != losses[i] {
			t.Fatalf("losses = %v, want %v", got, losses)
		}
	}
	if empty, err := s.Losses(first); err != nil || len(empty) != 0 {
		t.Fatalf("first run losses = %v, %v", empty, err)
	}
}
