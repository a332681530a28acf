package console

import "sync"

type Panel string

const (
	PanelRouteForm    Panel = "route_form"
	PanelScheduleForm Panel = "schedule_form"
	PanelGenerateForm Panel = "generate_form"
	PanelBooking      Panel = "booking"
)

// Panels is the visibility set of the console forms. The forms are
// independent of each other; showing one never hides another.
type Panels struct {
	mu      sync.Mutex
	visible map[Panel]bool
}

func NewPanels() *Panels {
	return &Panels{visible: make(map[Panel]bool)}
}

func (p *Panels) Show(panel Panel) {
	p.mu.Lock()
	p.visible[panel] = true
	p.mu.Unlock()
}

func (p *Panels) Hide(panel Panel) {
	p.mu.Lock()
	delete(p.visible, panel)
	p.mu.Unlock()
}

func (p *Panels) Visible(panel Panel) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[panel]
}

func (p *Panels) Snapshot() map[Panel]bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := map[Panel]bool{
		PanelRouteForm:    false,
		PanelScheduleForm: false,
		PanelGenerateForm: false,
		PanelBooking:      false,
	}
	for k, v := range p.visible {
		out[k] = v
	}
	return out
}

func (p *Panels) Reset() {
	p.mu.Lock()
	p.visible = make(map[Panel]bool)
	p.mu.Unlock()
}
