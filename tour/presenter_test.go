package tour

import (
	"strings"
	"testing"
)

type recordingPresenter struct {
	events []string
}

func (r *recordingPresenter) ScrollToSection(id string)   { r.events = append(r.events, "scroll:"+id) }
func (r *recordingPresenter) DisplaySubtitle(text string) { r.events = append(r.events, "subtitle:"+text) }

func TestPresentersFanOut(t *testing.T) {
	a, b := &recordingPresenter{}, &recordingPresenter{}
	ps := Presenters{a, nil, b}

	ps.ScrollToSection("hero")
	ps.DisplaySubtitle("hi")

	want := "scroll:hero,subtitle:hi"
	for i, r := range []*recordingPresenter{a, b} {
		if got := strings.Join(r.events, ","); got != want {
			t.Errorf("presenter %d: got %q, want %q", i, got, want)
		}
	}
}
