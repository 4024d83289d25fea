package client

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/queue"
)

// VotePhase is where an entry's local vote is in its round trip.
//
//	idle -> pending        vote sent, no response yet
//	pending -> reconciling response applied, a queued follow-up was sent
//	pending -> idle        response applied, nothing queued
//	reconciling -> idle    follow-up answered, nothing queued
//
// While an entry is not idle only its own responses may change its tally.
type VotePhase int

const (
	VoteIdle VotePhase = iota
	VotePending
	VoteReconciling
)

func (p VotePhase) String() string {
	switch p {
	case VotePending:
		return "pending"
	case VoteReconciling:
		return "reconciling"
	}
	return "idle"
}

type voteState struct {
	phase   VotePhase
	sent    int // value of the request in flight
	desired int // latest value the user chose
	queued  bool
}

type pendingAdd struct {
	localID string
	req     models.AddSongRequest
	source  catalog.Source
	at      time.Time
	// matching entries that already existed when the add began
	before  map[string]bool
}

func (a pendingAdd) matches(e models.QueueEntryResponse) bool {
	return e.Song.Source == a.source && e.Song.ExternalID == strings.TrimSpace(a.req.ID)
}

// ViewEntry is one queued entry as the user should see it.
type ViewEntry struct {
	models.QueueEntryResponse
	MyVote  int
	Phase   VotePhase
	Pending bool
}

// View is the rendered projection.
type View struct {
	Session models.SessionResponse
	Current *models.QueueEntryResponse
	Queue   []ViewEntry
}

// Projection is a client's speculative copy of a session: the last
// authoritative snapshot plus overlays for the user's own in-flight votes,
// adds and skip. It is safe for concurrent use.
type Projection struct {
	mu sync.Mutex

	session models.SessionResponse
	viewer  string
	current *models.QueueEntryResponse
	entries map[string]models.QueueEntryResponse
	// server tallies of queued entries and of the current entry
	tally   map[string]int
	myVotes map[string]int

	votes       map[string]*voteState
	adds        []pendingAdd
	nextLocalID int
	skipPending bool
	now         func() time.Time
}

// NewProjection returns an empty projection.
func NewProjection() *Projection {
	return &Projection{
		entries: make(map[string]models.QueueEntryResponse),
		tally:   make(map[string]int),
		myVotes: make(map[string]int),
		votes:   make(map[string]*voteState),
		now:     time.Now,
	}
}

func (p *Projection) inFlight(id string) bool {
	v, ok := p.votes[id]
	return ok && v.phase != VoteIdle
}

// ApplySnapshot replaces the authoritative state. Entries with a vote in
// flight, the current one included, keep their previous tally and ballot so
// the response can settle them. A pending skip is cleared.
func (p *Projection) ApplySnapshot(s models.StateResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.session = s.Session
	if s.ViewerID != "" {
		p.viewer = queue.CanonicalID(s.ViewerID)
	}
	p.skipPending = false
	p.replaceQueue(s.Current, s.Queue)

	myVotes := make(map[string]int, len(s.MyVotes))
	for id, v := range s.MyVotes {
		myVotes[queue.CanonicalID(id)] = v
	}
	for id := range p.votes {
		if p.inFlight(id) {
			myVotes[id] = p.myVotes[id]
		}
	}
	p.myVotes = myVotes
}

// settledTally is the tally to keep for id: the server's, unless a vote is
// in flight, in which case the last settled value stays until the response.
func (p *Projection) settledTally(id string, server int) int {
	if p.inFlight(id) {
		if old, ok := p.tally[id]; ok {
			return old
		}
	}
	return server
}

// replaceQueue swaps in a new authoritative current entry and queue.
func (p *Projection) replaceQueue(current *models.QueueEntryResponse, entries []models.QueueEntryResponse) {
	next := make(map[string]models.QueueEntryResponse, len(entries))
	tally := make(map[string]int, len(entries)+1)
	for _, e := range entries {
		id := queue.CanonicalID(e.ID)
		e.ID = id
		next[id] = e
		tally[id] = p.settledTally(id, e.Tally)
	}
	p.current = nil
	if current != nil {
		cur := *current
		cur.ID = queue.CanonicalID(cur.ID)
		tally[cur.ID] = p.settledTally(cur.ID, cur.Tally)
		p.current = &cur
	}
	p.entries = next
	p.tally = tally

	for id, v := range p.votes {
		if _, ok := tally[id]; !ok && v.phase == VoteIdle {
			delete(p.votes, id)
		}
	}
}

// ApplyAdvance applies the host's own advance response.
func (p *Projection) ApplyAdvance(a models.AdvanceResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipPending = false
	p.replaceQueue(a.Current, a.Queue)
	p.session.CurrentEntryID = ""
	if p.current != nil {
		p.session.CurrentEntryID = p.current.ID
	}
}

// ApplyVoteChanged applies a hub tally update. It reports false, changing
// nothing, when the entry has a vote in flight.
func (p *Projection) ApplyVoteChanged(entryID string, tally int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := queue.CanonicalID(entryID)
	if p.inFlight(id) {
		return false
	}
	if _, ok := p.tally[id]; !ok {
		return false
	}
	p.tally[id] = tally
	return true
}

// ApplyNowPlaying applies a hub now-playing change and clears a pending skip.
func (p *Projection) ApplyNowPlaying(entry *models.QueueEntryResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipPending = false
	if p.current != nil {
		delete(p.tally, p.current.ID)
	}
	p.current = nil
	p.session.CurrentEntryID = ""
	if entry == nil {
		return
	}
	cur := *entry
	cur.ID = queue.CanonicalID(cur.ID)
	p.tally[cur.ID] = p.settledTally(cur.ID, cur.Tally)
	delete(p.entries, cur.ID)
	p.current = &cur
	p.session.CurrentEntryID = cur.ID
}

// BeginVote overlays the user's vote. It reports true when the caller must
// send value now; false means a request is already in flight and value was
// queued behind it.
func (p *Projection) BeginVote(entryID string, value int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := queue.CanonicalID(entryID)
	v, ok := p.votes[id]
	if !ok {
		v = &voteState{}
		p.votes[id] = v
	}
	v.desired = value
	if v.phase != VoteIdle {
		v.queued = value != v.sent
		return false
	}
	v.phase = VotePending
	v.sent = value
	v.queued = false
	return true
}

// ResolveVote settles the request in flight for entryID. On success the
// server's tally replaces the overlay; a cancelled request settles on the
// last known server tally; any other failure rolls the overlay back. When a
// newer vote was queued behind a successful request, ResolveVote returns it
// with send set and the entry moves to reconciling.
func (p *Projection) ResolveVote(entryID string, resp models.VoteResponse, err error) (next int, send bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := queue.CanonicalID(entryID)
	v, ok := p.votes[id]
	if !ok || v.phase == VoteIdle {
		return 0, false
	}

	if err != nil {
		// Dropping the overlay leaves the last known server tally showing,
		// which is both the rollback and the cancelled outcome.
		delete(p.votes, id)
		return 0, false
	}

	p.tally[id] = resp.Tally
	p.myVotes[id] = v.sent
	if v.queued {
		v.phase = VoteReconciling
		v.sent = v.desired
		v.queued = false
		return v.sent, true
	}
	delete(p.votes, id)
	return 0, false
}

// VotePhase returns the phase of entryID's vote.
func (p *Projection) VotePhase(entryID string) VotePhase {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.votes[queue.CanonicalID(entryID)]; ok {
		return v.phase
	}
	return VoteIdle
}

// BeginAdd shows req as a pending entry and returns its local id.
func (p *Projection) BeginAdd(req models.AddSongRequest) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextLocalID++
	localID := "pending-" + strconv.Itoa(p.nextLocalID)
	source, _ := catalog.ParseSource(req.Source)
	add := pendingAdd{localID: localID, req: req, source: source, at: p.now().UTC(), before: make(map[string]bool)}
	for _, e := range p.known() {
		if add.matches(e) {
			add.before[e.ID] = true
		}
	}
	p.adds = append(p.adds, add)
	return localID
}

func (p *Projection) removeAdd(localID string) {
	for i, a := range p.adds {
		if a.localID == localID {
			p.adds = append(p.adds[:i], p.adds[i+1:]...)
			return
		}
	}
}

// ConfirmAdd replaces a pending entry with the server's entry.
func (p *Projection) ConfirmAdd(localID string, entry models.QueueEntryResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removeAdd(localID)
	id := queue.CanonicalID(entry.ID)
	entry.ID = id
	switch entry.Status {
	case queue.StatusPlaying:
		if p.current == nil {
			p.current = &entry
			p.session.CurrentEntryID = id
			p.tally[id] = entry.Tally
		}
	case queue.StatusQueued:
		if _, ok := p.entries[id]; !ok {
			p.entries[id] = entry
			p.tally[id] = entry.Tally
		}
	}
}

// FailAdd drops a pending entry.
func (p *Projection) FailAdd(localID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeAdd(localID)
}

// BeginSkip hides now playing until the next authoritative update.
func (p *Projection) BeginSkip() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipPending = true
}

// FailSkip shows now playing again after a rejected skip.
func (p *Projection) FailSkip() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipPending = false
}

// CurrentEntryID is the entry the projection believes is playing.
func (p *Projection) CurrentEntryID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return queue.CanonicalID(p.current.ID)
}

// displayTally is the server tally adjusted by the user's unconfirmed vote.
func (p *Projection) displayTally(id string) int {
	t := p.tally[id]
	if v, ok := p.votes[id]; ok && v.phase != VoteIdle {
		t += v.desired - p.myVotes[id]
	}
	return t
}

// View renders the projection: overlays applied, ranked the same way the
// server ranks, pending adds last.
func (p *Projection) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := View{Session: p.session}
	if p.current != nil && !p.skipPending {
		cur := *p.current
		cur.Tally = p.displayTally(cur.ID)
		view.Current = &cur
	}

	domain := make([]queue.Entry, 0, len(p.entries))
	tallies := make(map[string]int, len(p.entries))
	for id, e := range p.entries {
		domain = append(domain, e.ToRankedEntry().Entry)
		tallies[id] = p.displayTally(id)
	}
	for _, ranked := range queue.Rank(domain, tallies) {
		resp := p.entries[ranked.ID]
		resp.Tally = ranked.Tally
		view.Queue = append(view.Queue, ViewEntry{
			QueueEntryResponse: resp,
			MyVote:             p.myVote(ranked.ID),
			Phase:              p.phase(ranked.ID),
		})
	}

	claimed := make(map[string]bool)
	for _, a := range p.adds {
		if id, ok := p.landed(a, claimed); ok {
			claimed[id] = true
			continue
		}
		view.Queue = append(view.Queue, ViewEntry{
			QueueEntryResponse: models.QueueEntryResponse{
				ID:        a.localID,
				SessionID: p.session.ID,
				Song: catalog.Song{
					ExternalID: a.req.ID,
					Source:     a.source,
					Title:      a.req.Title,
					Artists:    a.req.Artists,
					Album:      a.req.Album,
					DurationMS: a.req.DurationMS,
					ArtworkURL: a.req.ArtworkURL,
				},
				Status:    queue.StatusQueued,
				CreatedAt: a.at,
			},
			Pending: true,
		})
	}
	return view
}

// known lists the current entry and the queue.
func (p *Projection) known() []models.QueueEntryResponse {
	all := make([]models.QueueEntryResponse, 0, len(p.entries)+1)
	if p.current != nil {
		all = append(all, *p.current)
	}
	for _, e := range p.entries {
		all = append(all, e)
	}
	return all
}

// landed finds the snapshot entry a pending add already became: same song,
// added by this viewer, absent when the add began and not claimed by an
// earlier pending add.
func (p *Projection) landed(a pendingAdd, claimed map[string]bool) (string, bool) {
	for _, e := range p.known() {
		if claimed[e.ID] || a.before[e.ID] || !a.matches(e) {
			continue
		}
		if p.viewer != "" && queue.CanonicalID(e.AddedBy) != p.viewer {
			continue
		}
		return e.ID, true
	}
	return "", false
}

func (p *Projection) myVote(id string) int {
	if v, ok := p.votes[id]; ok && v.phase != VoteIdle {
		return v.desired
	}
	return p.myVotes[id]
}

func (p *Projection) phase(id string) VotePhase {
	if v, ok := p.votes[id]; ok {
		return v.phase
	}
	return VoteIdle
}
