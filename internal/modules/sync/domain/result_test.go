package domain_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"studysync/internal/modules/sync/domain"
	apperrors "studysync/internal/platform/errors"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()
	cases := map[domain.FailureKind]error{
		domain.KindNotFound:          fmt.Errorf("%w: project x", apperrors.ErrNotFound),
		domain.KindTransport:         apperrors.Transport("download", "f1", errors.New("reset")),
		domain.KindMalformedSnapshot: fmt.Errorf("decode: %w", apperrors.ErrMalformedSnapshot),
		domain.KindIdentityConflict:  apperrors.ErrIdentityConflict,
		domain.KindSyncInProgress:    apperrors.ErrSyncInProgress,
		domain.KindCancelled:         fmt.Errorf("list: %w", context.Canceled),
		domain.KindInternal:          errors.New("disk full"),
	}
	for want, err := range cases {
		if got := domain.ClassifyError(err); got != want {
			t.Fatalf("classify %v = %s want %s", err, got, want)
		}
	}
}

func TestProjectRunTransitions(t *testing.T) {
	t.Parallel()
	run := domain.NewProjectRun("k", domain.PhaseDownload)
	if err := run.Succeed(domain.ActionMerged, "id", "n"); err == nil {
		t.Fatalf("pending run must not succeed")
	}
	if err := run.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.Outcome().State != domain.StateDownloading {
		t.Fatalf("state = %s", run.Outcome().State)
	}
	if err := run.Start(); err == nil {
		t.Fatalf("double start must fail")
	}
	if err := run.Fail(apperrors.ErrTransport); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := run.Skip("late"); err == nil {
		t.Fatalf("terminal run must not be skipped")
	}
}

func TestAccumulatorCountsAndMessage(t *testing.T) {
	t.Parallel()
	acc := domain.NewAccumulator("run-1", time.Unix(0, 0))
	var wg sync.WaitGroup
	record := func(key string, phase domain.Phase, action domain.Action, err error) {
		defer wg.Done()
		run := domain.NewProjectRun(key, phase)
		_ = run.Start()
		if err != nil {
			_ = run.Fail(err)
		} else {
			_ = run.Succeed(action, key, key)
		}
		acc.Record(run)
	}
	wg.Add(6)
	go record("a", domain.PhaseUpload, domain.ActionUploaded, nil)
	go record("b", domain.PhaseUpload, domain.ActionUploaded, nil)
	go record("a", domain.PhaseDownload, domain.ActionMerged, nil)
	go record("b", domain.PhaseDownload, domain.ActionMerged, nil)
	go record("c", domain.PhaseDownload, domain.ActionImported, nil)
	go record("d", domain.PhaseDownload, "", fmt.Errorf("%w: project.json not found", apperrors.ErrNotFound))
	wg.Wait()

	result := acc.Finish(time.Unix(10, 0))
	if result.Uploaded != 2 || result.Downloaded != 3 || result.Imported != 1 || result.Merged != 2 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if len(result.Failures) != 1 || result.Failures[0].Kind != domain.KindNotFound || result.Failures[0].ProjectKey != "d" {
		t.Fatalf("unexpected failures %+v", result.Failures)
	}
	if got, want := result.Message(), "Uploaded 2, downloaded 3 (1 new, 2 merged), 1 error"; got != want {
		t.Fatalf("message = %q want %q", got, want)
	}
	if result.Outcomes[0].Phase != domain.PhaseUpload || result.Outcomes[0].ProjectKey != "a" {
		t.Fatalf("outcomes not ordered: %+v", result.Outcomes)
	}

	acc.Fail(domain.PhaseRun, errors.New("after finish"))
	if again := acc.Finish(time.Unix(20, 0)); len(again.Failures) != 1 || !again.FinishedAt.Equal(time.Unix(10, 0)) {
		t.Fatalf("finished accumulator must not change: %+v", again)
	}
}
