package tour

// Presenters fans presenter calls out to several presenters in order.
type Presenters []Presenter

// ScrollToSection forwards id to every presenter.
func (ps Presenters) ScrollToSection(id string) {
	for _, p := range ps {
		if p != nil {
			p.ScrollToSection(id)
		}
	}
}

// DisplaySubtitle forwards text to every presenter.
func (ps Presenters) DisplaySubtitle(text string) {
	for _, p := range ps {
		if p != nil {
			p.DisplaySubtitle(text)
		}
	}
}
