package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"bondedlink/internal/common"
	"bondedlink/internal/link/buffer"
	"bondedlink/internal/link/model"
	"bondedlink/internal/link/outreach"
	"bondedlink/internal/link/reconcile"
	"bondedlink/internal/link/repository"
	"bondedlink/internal/link/session"
	"bondedlink/internal/metrics"
)

const (
	introTemplate      = "hey %s! i'm link - think of me like a friend you can text anytime. btw, what should i call you?"
	nameAckTemplate    = "got it — i’ll call you %s."
	unavailableNotice  = "Link is unavailable right now. Please try again in a moment."
	consentApprovedAck = "Got it — I’ll introduce you now."
	consentDeclinedAck = "No worries — I’ll keep looking."

	bestEffortTimeout = 10 * time.Second
)

// Controller is one user's chat. Its state is explicit: what the server has
// returned (pages and live deliveries), what is still optimistic (buffer) and
// the flags that steer the next turn.
type Controller struct {
	mu             sync.Mutex
	identity       common.Identity
	conversationID string
	memory         *model.Memory

	// loadMu serializes LoadMore and Refresh so a page is never fetched twice
	// or skipped.
	loadMu  sync.Mutex
	pages   []model.Message
	offset  int
	hasMore bool

	live      map[string]model.Message
	liveOrder []string

	awaitingPreferredName bool
	introInjected         bool
	consentPending        map[string]bool

	sending atomic.Bool

	repo     repository.LinkRepository
	backend  Backend
	journal  JournalWriter
	hub      Hub
	logger   *zap.Logger
	metrics  *metrics.Metrics
	session  *session.Tracker
	buffer   *buffer.Buffer
	outreach outreach.Tracker

	pageSize       int
	persistReplies bool
	now            func() time.Time

	background sync.WaitGroup
	stopListen func()
	closeOnce  sync.Once
}

var _ Chat = (*Controller)(nil)

func (c *Controller) ConversationID() string {
	return c.conversationID
}

func (c *Controller) SessionID() string {
	return c.session.ID()
}

// AwaitingPreferredName reports whether the next short reply may be read as
// the user's name.
func (c *Controller) AwaitingPreferredName() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitingPreferredName
}

func (c *Controller) setIdentity(id common.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

func (c *Controller) currentIdentity() common.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Controller) loadFirstPage(ctx context.Context) error {
	page, err := c.repo.FetchPage(ctx, c.conversationID, c.pageSize, 0)
	if err != nil {
		return common.NewUnavailableError("could not load Link messages", err)
	}

	c.mu.Lock()
	c.pages = page
	c.offset = len(page)
	c.hasMore = len(page) == c.pageSize
	c.mu.Unlock()
	return nil
}

// injectIntro greets a user the first time they open an empty chat without a
// known preferred name.
func (c *Controller) injectIntro(ctx context.Context) {
	c.mu.Lock()
	if c.introInjected || len(c.pages) > 0 || len(c.live) > 0 || c.buffer.Len() > 0 || c.memory.Name() != "" {
		c.mu.Unlock()
		return
	}
	c.introInjected = true
	c.awaitingPreferredName = true
	id := c.identity
	c.mu.Unlock()

	intro := fmt.Sprintf(introTemplate, firstName("", id))
	c.reply(ctx, intro, buffer.AppendOptions{Metadata: model.Metadata{"type": "intro"}}, true)
}

// firstName picks the name used in greetings: the preferred name, else the
// first word of the full name, else the email's local part.
func firstName(preferred string, id common.Identity) string {
	if preferred != "" {
		return preferred
	}
	if fields := strings.Fields(id.FullName); len(fields) > 0 {
		return fields[0]
	}
	if at := strings.Index(id.Email, "@"); at > 0 {
		return id.Email[:at]
	}
	return "there"
}

func (c *Controller) listen() {
	if c.hub == nil {
		return
	}
	ch, cancel := c.hub.Listen(c.conversationID)
	c.stopListen = cancel
	go func() {
		for msg := range ch {
			c.Ingest(msg)
		}
	}()
}

// Ingest takes a realtime delivery. Messages for other conversations are
// ignored.
func (c *Controller) Ingest(msg model.Message) bool {
	if msg.ConversationID != c.conversationID || msg.ID == "" || msg.IsLocal() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.live[msg.ID]; !seen {
		c.liveOrder = append(c.liveOrder, msg.ID)
	}
	c.live[msg.ID] = msg
	return true
}

// Transcript reconciles everything the server has sent with the optimistic
// buffer. Buffered copies the server now confirms are pruned.
func (c *Controller) Transcript() View {
	c.mu.Lock()
	server := make([]model.Message, 0, len(c.liveOrder)+len(c.pages))
	for _, id := range c.liveOrder {
		server = append(server, c.live[id])
	}
	server = append(server, c.pages...)
	hasMore := c.hasMore
	c.mu.Unlock()

	merged, stats := reconcile.MergeWithStats(server, c.buffer.Snapshot())
	if pruned := c.buffer.Prune(server); pruned > 0 {
		c.logger.Debug("pruned confirmed optimistic messages", zap.Int("count", pruned))
	}
	c.metrics.ReconcileDropped(stats.DuplicateIDs, stats.Replaced, stats.Collapsed)

	return View{
		Messages:    merged,
		Outreach:    outreach.Latest(merged),
		ActiveRunID: c.outreach.ActiveRunID(merged),
		HasMore:     hasMore,
	}
}

// LoadMore fetches the next older page.
func (c *Controller) LoadMore(ctx context.Context) (View, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	hasMore, offset := c.hasMore, c.offset
	c.mu.Unlock()

	if !hasMore {
		return c.Transcript(), nil
	}

	page, err := c.repo.FetchPage(ctx, c.conversationID, c.pageSize, offset)
	if err != nil {
		return View{}, common.NewUnavailableError("could not load more messages", err)
	}

	c.mu.Lock()
	c.pages = append(c.pages, page...)
	c.offset += len(page)
	c.hasMore = len(page) == c.pageSize
	c.mu.Unlock()
	return c.Transcript(), nil
}

// Refresh refetches every page loaded so far. Live messages the refetch now
// covers are dropped from the live set.
func (c *Controller) Refresh(ctx context.Context) (View, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	limit := c.offset
	c.mu.Unlock()
	if limit < c.pageSize {
		limit = c.pageSize
	}

	page, err := c.repo.FetchPage(ctx, c.conversationID, limit, 0)
	if err != nil {
		return View{}, common.NewUnavailableError("could not refresh messages", err)
	}

	c.mu.Lock()
	c.pages = page
	c.offset = len(page)
	c.hasMore = len(page) == limit
	for _, m := range page {
		delete(c.live, m.ID)
	}
	kept := c.liveOrder[:0]
	for _, id := range c.liveOrder {
		if _, ok := c.live[id]; ok {
			kept = append(kept, id)
		}
	}
	c.liveOrder = kept
	c.mu.Unlock()
	return c.Transcript(), nil
}

// Reset drops the optimistic buffer, live deliveries and outreach memory. The
// persisted history stays.
func (c *Controller) Reset() View {
	c.buffer.Clear()
	c.outreach.Reset()

	c.mu.Lock()
	c.live = make(map[string]model.Message)
	c.liveOrder = nil
	c.mu.Unlock()
	return c.Transcript()
}

// Wait blocks until background writes started so far have finished.
func (c *Controller) Wait() {
	c.background.Wait()
}

func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		if c.stopListen != nil {
			c.stopListen()
		}
		c.background.Wait()
	})
}
