package app

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	plugindto "studysync/internal/modules/plugin/dto"
	studydto "studysync/internal/modules/study/dto"
	syncdto "studysync/internal/modules/sync/dto"
	projectsview "studysync/internal/ui/views/projects"
)

type reviewCall struct {
	projectID string
	index     int
	learned   bool
	difficult *bool
}

type fakeStudy struct {
	reviews []reviewCall
	renames []string
}

func (f *fakeStudy) ListProjects(context.Context) ([]studydto.ProjectOutput, error) {
	return []studydto.ProjectOutput{{ID: "p1", Name: "Les 1"}}, nil
}

func (f *fakeStudy) GetProject(_ context.Context, id string) (studydto.ProjectDetailOutput, error) {
	return studydto.ProjectDetailOutput{Project: studydto.ProjectOutput{ID: id}}, nil
}

func (f *fakeStudy) RecordReview(_ context.Context, projectID string, index int, learned bool, difficult *bool) (studydto.SegmentOutput, error) {
	f.reviews = append(f.reviews, reviewCall{projectID, index, learned, difficult})
	return studydto.SegmentOutput{Index: index, Learned: learned, LearnCount: 1}, nil
}

func (f *fakeStudy) RenameSpeaker(_ context.Context, projectID, label, name string) (studydto.SpeakerOutput, error) {
	f.renames = append(f.renames, projectID+"/"+label+"="+name)
	return studydto.SpeakerOutput{Label: label, Name: name, IsManual: true}, nil
}

type fakeSync struct {
	directions []string
}

func (f *fakeSync) Run(_ context.Context, direction string) (syncdto.RunOutput, error) {
	f.directions = append(f.directions, direction)
	return syncdto.RunOutput{Message: "Uploaded 1, downloaded 0 (0 new, 0 merged)"}, nil
}

func (f *fakeSync) History(context.Context, int) ([]syncdto.RunOutput, error) {
	return nil, nil
}

type fakePlugins struct{}

func (fakePlugins) List(context.Context) ([]plugindto.PluginInfo, error) { return nil, nil }
func (fakePlugins) Doctor(context.Context) ([]plugindto.DoctorResult, error) {
	return nil, nil
}

func newTestModel(t *testing.T) (Model, *fakeStudy, *fakeSync) {
	t.Helper()
	study := &fakeStudy{}
	syncPort := &fakeSync{}
	m := NewModel(study, syncPort, fakePlugins{})
	projects, _ := study.ListProjects(context.Background())
	next, _ := m.Update(projectsview.ProjectsLoadedMsg{Projects: projects})
	return next.(Model), study, syncPort
}

// drain runs cmd and any batched children, feeding messages of type T back.
func drain[T any](cmd tea.Cmd) []T {
	if cmd == nil {
		return nil
	}
	var out []T
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			out = append(out, drain[T](c)...)
		}
	case T:
		out = append(out, msg)
	}
	return out
}

func TestPaletteReviewUsesSelectedProject(t *testing.T) {
	t.Parallel()
	m, study, _ := newTestModel(t)

	next, cmd := m.executePalette("review 2 learned difficult")
	done := drain[reviewDoneMsg](cmd)
	if len(done) != 1 || done[0].err != nil {
		t.Fatalf("expected one review result, got %+v", done)
	}
	if len(study.reviews) != 1 {
		t.Fatalf("expected one review call, got %+v", study.reviews)
	}
	call := study.reviews[0]
	if call.projectID != "p1" || call.index != 2 || !call.learned || call.difficult == nil || !*call.difficult {
		t.Fatalf("unexpected review call %+v", call)
	}

	after, _ := next.(Model).Update(done[0])
	if status := after.(Model).status; !strings.Contains(status, "segment 2") {
		t.Fatalf("unexpected status %q", status)
	}
}

func TestPaletteRejectsBadReview(t *testing.T) {
	t.Parallel()
	m, study, _ := newTestModel(t)

	for _, input := range []string{"review", "review x learned", "review 1 maybe"} {
		next, cmd := m.executePalette(input)
		if cmd != nil {
			t.Fatalf("%q: expected no command", input)
		}
		if next.(Model).status == "ready" {
			t.Fatalf("%q: expected an error status", input)
		}
	}
	if len(study.reviews) != 0 {
		t.Fatalf("no review may be recorded, got %+v", study.reviews)
	}
}

func TestPaletteRenameJoinsName(t *testing.T) {
	t.Parallel()
	m, study, _ := newTestModel(t)

	_, cmd := m.executePalette("rename B Bram de Vries")
	drain[renameDoneMsg](cmd)
	if len(study.renames) != 1 || study.renames[0] != "p1/B=Bram de Vries" {
		t.Fatalf("unexpected renames %+v", study.renames)
	}
}

func TestPaletteSyncRunSwitchesTab(t *testing.T) {
	t.Parallel()
	m, _, syncPort := newTestModel(t)

	next, cmd := m.executePalette("sync:run upload")
	nm := next.(Model)
	if nm.activeTab != tabSync || !nm.syncView.Running() {
		t.Fatalf("expected running sync tab, got tab=%d running=%t", nm.activeTab, nm.syncView.Running())
	}
	drain[tea.Msg](cmd)
	if len(syncPort.directions) != 1 || syncPort.directions[0] != "upload" {
		t.Fatalf("unexpected directions %+v", syncPort.directions)
	}
}

func TestPaletteUnknownCommand(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestModel(t)
	next, cmd := m.executePalette("frobnicate")
	if cmd != nil || !strings.Contains(next.(Model).status, "unknown command") {
		t.Fatalf("unexpected result status=%q", next.(Model).status)
	}
}
