package prompts

import (
	"context"
	"sync"

	"github.com/angelmondragon/storefront/pkg/logger"
)

type recorderKey struct{}

// Navigation is the last navigation requested during a request.
type Navigation struct {
	Route Route   `json:"route,omitempty"`
	Focus Section `json:"focus,omitempty"`
}

// Meta is the JSON-ready record of everything surfaced during a request.
type Meta struct {
	Prompts    []Prompt    `json:"prompts,omitempty"`
	Notices    []Notice    `json:"notices,omitempty"`
	Dialogs    []Dialog    `json:"dialogs,omitempty"`
	Navigation *Navigation `json:"navigation,omitempty"`
}

// Recorder collects side effects for one request. Confirmation is answered
// up front: the browser re-sends a destructive request with confirmation
// once the shopper accepted.
type Recorder struct {
	mu         sync.Mutex
	confirmed  bool
	prompts    []Prompt
	notices    []Notice
	dialogs    []Dialog
	navigation *Navigation
}

func NewRecorder(confirmed bool) *Recorder {
	return &Recorder{confirmed: confirmed}
}

// WithRecorder attaches rec to ctx.
func WithRecorder(ctx context.Context, rec *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// FromContext returns the request recorder, if any.
func FromContext(ctx context.Context) *Recorder {
	if ctx == nil {
		return nil
	}
	rec, _ := ctx.Value(recorderKey{}).(*Recorder)
	return rec
}

func (r *Recorder) Confirm(_ context.Context, prompt Prompt) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	return r.confirmed, nil
}

func (r *Recorder) Notify(_ context.Context, notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *Recorder) Inform(_ context.Context, dialog Dialog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialogs = append(r.dialogs, dialog)
}

func (r *Recorder) Navigate(_ context.Context, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.navigation == nil {
		r.navigation = &Navigation{}
	}
	r.navigation.Route = route
}

func (r *Recorder) Focus(_ context.Context, section Section) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.navigation == nil {
		r.navigation = &Navigation{}
	}
	r.navigation.Focus = section
}

// Prompts returns the confirmations that were asked.
func (r *Recorder) Prompts() []Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Prompt(nil), r.prompts...)
}

// Meta snapshots the recorded side effects.
func (r *Recorder) Meta() Meta {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta := Meta{
		Prompts: append([]Prompt(nil), r.prompts...),
		Notices: append([]Notice(nil), r.notices...),
		Dialogs: append([]Dialog(nil), r.dialogs...),
	}
	if r.navigation != nil {
		nav := *r.navigation
		meta.Navigation = &nav
	}
	return meta
}

// Empty reports whether nothing was recorded.
func (m Meta) Empty() bool {
	return len(m.Prompts) == 0 && len(m.Notices) == 0 && len(m.Dialogs) == 0 && m.Navigation == nil
}

// Replay surfaces everything r recorded again through ui.
func (r *Recorder) Replay(ctx context.Context, ui UI) {
	if r == nil || ui == nil {
		return
	}
	meta := r.Meta()
	for _, notice := range meta.Notices {
		ui.Notify(ctx, notice)
	}
	for _, dialog := range meta.Dialogs {
		ui.Inform(ctx, dialog)
	}
	if meta.Navigation != nil {
		if meta.Navigation.Route != "" {
			ui.Navigate(ctx, meta.Navigation.Route)
		}
		if meta.Navigation.Focus != "" {
			ui.Focus(ctx, meta.Navigation.Focus)
		}
	}
}

// ContextUI routes every call to the Recorder carried by the context and
// logs calls made outside a request. Without a recorder, confirmation is
// declined.
type ContextUI struct {
	logg *logger.Logger
}

func NewContextUI(logg *logger.Logger) *ContextUI {
	return &ContextUI{logg: logg}
}

func (u *ContextUI) Confirm(ctx context.Context, prompt Prompt) (bool, error) {
	if rec := FromContext(ctx); rec != nil {
		return rec.Confirm(ctx, prompt)
	}
	u.debug(ctx, "confirmation declined without request", map[string]any{"action": prompt.Action})
	return false, nil
}

func (u *ContextUI) Notify(ctx context.Context, notice Notice) {
	if rec := FromContext(ctx); rec != nil {
		rec.Notify(ctx, notice)
		return
	}
	u.debug(ctx, "notice", map[string]any{"severity": notice.Severity, "message": notice.Message})
}

func (u *ContextUI) Inform(ctx context.Context, dialog Dialog) {
	if rec := FromContext(ctx); rec != nil {
		rec.Inform(ctx, dialog)
		return
	}
	u.debug(ctx, "dialog", map[string]any{"title": dialog.Title})
}

func (u *ContextUI) Navigate(ctx context.Context, route Route) {
	if rec := FromContext(ctx); rec != nil {
		rec.Navigate(ctx, route)
		return
	}
	u.debug(ctx, "navigate", map[string]any{"route": route})
}

func (u *ContextUI) Focus(ctx context.Context, section Section) {
	if rec := FromContext(ctx); rec != nil {
		rec.Focus(ctx, section)
		return
	}
	u.debug(ctx, "focus", map[string]any{"section": section})
}

func (u *ContextUI) debug(ctx context.Context, msg string, fields map[string]any) {
	if u == nil || u.logg == nil {
		return
	}
	u.logg.Debug(u.logg.WithFields(ctx, fields), "prompts."+msg)
}
