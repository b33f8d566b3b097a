package mirror

import (
	"context"
	"sync"

	"github.com/agentworkforce/recordmirror/internal/records"
)

// Session is one view onto a Store: a search term, a current page and the
// subscribers that re-render when either the view or the records change.
type Session struct {
	store *Store

	mu   sync.Mutex
	view ViewState

	subMu   sync.Mutex
	subs    map[int]func(Page)
	nextSub int
}

func NewSession(store *Store, pageSize int) *Session {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Session{
		store: store,
		view:  ViewState{CurrentPage: 1, PageSize: pageSize},
		subs:  map[int]func(Page){},
	}
}

func (s *Session) Store() *Store {
	return s.store
}

// Load populates the store if needed and returns the first page.
func (s *Session) Load(ctx context.Context) (Page, error) {
	err := s.store.LoadOrFetch(ctx)
	return s.refresh(nil), err
}

// Page projects the current view without changing it.
func (s *Session) Page() Page {
	return s.project(nil)
}

func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetSearchTerm changes the filter and returns to the first page.
func (s *Session) SetSearchTerm(term string) Page {
	return s.refresh(func(v *ViewState) {
		v.SearchTerm = term
		v.CurrentPage = 1
	})
}

// SetPage moves to page n, clamped into the valid range.
func (s *Session) SetPage(n int) Page {
	return s.refresh(func(v *ViewState) {
		v.CurrentPage = n
	})
}

// Create validates the form, creates the record and shows the first page,
// where the new record appears.
func (s *Session) Create(ctx context.Context, form records.FormData) (records.Record, error) {
	if err := records.ValidateForm(form, records.ModeCreate); err != nil {
		return records.Record{}, err
	}
	created, err := s.store.Create(ctx, form)
	if err != nil {
		return records.Record{}, err
	}
	s.refresh(func(v *ViewState) {
		v.CurrentPage = 1
	})
	return created, nil
}

func (s *Session) Update(ctx context.Context, id int, form records.FormData) (records.Record, error) {
	if err := records.ValidateForm(form, records.ModeUpdate); err != nil {
		return records.Record{}, err
	}
	updated, err := s.store.Update(ctx, id, form)
	if err != nil {
		return records.Record{}, err
	}
	s.refresh(nil)
	return updated, nil
}

func (s *Session) Remove(ctx context.Context, id int) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.refresh(nil)
	return nil
}

// Reset clears the search term and page along with the store. Subscribers are
// notified even when the refetch fails, since the store is empty either way.
func (s *Session) Reset(ctx context.Context) (Page, error) {
	err := s.store.Reset(ctx)
	page := s.refresh(func(v *ViewState) {
		v.SearchTerm = ""
		v.CurrentPage = 1
	})
	return page, err
}

// Subscribe registers fn to receive every page the session produces after a
// change. The returned func unregisters it.
func (s *Session) Subscribe(fn func(Page)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// refresh applies change to the view, clamps the page against the current
// records and notifies subscribers.
func (s *Session) refresh(change func(*ViewState)) Page {
	page := s.project(change)
	s.notify(page)
	return page
}

func (s *Session) project(change func(*ViewState)) Page {
	recs := s.store.Records()
	s.mu.Lock()
	if change != nil {
		change(&s.view)
	}
	page := Project(recs, s.view)
	s.view.CurrentPage = page.CurrentPage
	s.mu.Unlock()
	return page
}

func (s *Session) notify(page Page) {
	s.subMu.Lock()
	fns := make([]func(Page), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(page)
	}
}
