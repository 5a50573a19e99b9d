package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bondedlink/internal/common"
	"bondedlink/internal/dbmongo"
	"bondedlink/internal/link/buffer"
	"bondedlink/internal/link/model"
	"bondedlink/internal/link/normalize"
	"bondedlink/internal/link/prefname"
	"bondedlink/internal/linkapi"
)

// Send runs one user turn. Only a failure to save the user's own message is
// returned as an error; an unreachable backend yields a notice and a
// degraded result.
func (c *Controller) Send(ctx context.Context, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if err := common.ValidateMessageText(text); err != nil {
		return nil, err
	}
	if !c.sending.CompareAndSwap(false, true) {
		return nil, ErrSendInFlight
	}
	defer c.sending.Store(false)

	id := c.currentIdentity()
	result := &SendResult{}
	c.ensureSession(ctx)

	c.mu.Lock()
	awaiting := c.awaitingPreferredName
	c.mu.Unlock()

	if name, ok := prefname.Extract(text, awaiting); ok {
		c.rememberName(ctx, id.UserID, name)
		result.PreferredName = name
		ack := c.reply(ctx, fmt.Sprintf(nameAckTemplate, name), buffer.AppendOptions{
			Metadata: model.Metadata{"type": "preferred_name"},
		}, true)
		result.Appended = append(result.Appended, ack)
	}

	userMsg := c.buffer.Append(text, model.RoleUser, buffer.AppendOptions{})
	result.Appended = append(result.Appended, userMsg)

	persisted := userMsg.Clone()
	if err := c.repo.InsertMessage(ctx, &persisted); err != nil {
		c.logger.Error("failed to save user message", zap.Error(err))
		notice := c.reply(ctx, unavailableNotice, buffer.AppendOptions{}, false)
		result.Appended = append(result.Appended, notice)
		result.Degraded = true
		result.View = c.Transcript()
		return result, common.NewUnavailableError("could not send your message", err)
	}
	c.confirm(persisted)

	c.goBestEffort("style_learn", func(ctx context.Context) error {
		return c.backend.LearnStyle(ctx, id.UserID, text)
	})

	resp, err := c.backend.Query(ctx, linkapi.AgentRequest{
		UserID:        id.UserID,
		MessageText:   text,
		UniversityID:  id.UniversityID,
		SessionID:     model.StringPtr(c.session.ID()),
		AccessToken:   model.StringPtr(id.AccessToken),
		PreferredName: c.preferredNameFor(result.PreferredName, id),
	})
	if err != nil {
		c.logger.Warn("link backend query failed", zap.Error(err))
		notice := c.reply(ctx, unavailableNotice, buffer.AppendOptions{}, false)
		result.Appended = append(result.Appended, notice)
		result.Degraded = true
	} else {
		c.absorb(ctx, resp, result)
	}

	c.goBestEffort("journal", func(ctx context.Context) error {
		if c.journal == nil {
			return nil
		}
		return c.journal.InsertEntry(ctx, dbmongo.JournalEntry{
			UserID:       id.UserID,
			UniversityID: id.UniversityID,
			Content:      text,
		})
	})
	c.goBestEffort("record_interaction", func(ctx context.Context) error {
		return c.repo.RecordInteraction(ctx, id.UserID, c.now())
	})
	if sid := c.session.ID(); sid != "" {
		c.goBestEffort("touch_session", func(ctx context.Context) error {
			return c.repo.TouchSession(ctx, sid, c.now())
		})
	}

	result.View = c.Transcript()
	return result, nil
}

// CheckStatus asks the backend for news on the active outreach run.
func (c *Controller) CheckStatus(ctx context.Context) (*SendResult, error) {
	runID := c.Transcript().ActiveRunID
	if runID == "" {
		return nil, ErrNoActiveOutreach
	}

	id := c.currentIdentity()
	resp, err := c.backend.CollectOutreach(ctx, linkapi.CollectRequest{
		RunID:        runID,
		UniversityID: id.UniversityID,
		SessionID:    model.StringPtr(c.session.ID()),
		AccessToken:  model.StringPtr(id.AccessToken),
	})
	if err != nil {
		c.logger.Warn("outreach status check failed", zap.String("run_id", runID), zap.Error(err))
		return nil, common.NewUnavailableError("could not check outreach status", err)
	}

	result := &SendResult{RunID: runID}
	c.absorb(ctx, resp, result)
	result.View = c.Transcript()
	return result, nil
}

// ResolveConsent answers a consent request for a suggested introduction. The
// backend owns what happens next; the chat only acknowledges the choice.
func (c *Controller) ResolveConsent(ctx context.Context, runID, suggestedUserID string, approved bool) (*SendResult, error) {
	if err := common.ValidateConsent(runID, suggestedUserID); err != nil {
		return nil, err
	}

	key := runID + ":" + suggestedUserID
	c.mu.Lock()
	if c.consentPending == nil {
		c.consentPending = make(map[string]bool)
	}
	if c.consentPending[key] {
		c.mu.Unlock()
		return nil, ErrConsentInFlight
	}
	c.consentPending[key] = true
	id := c.identity
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.consentPending, key)
		c.mu.Unlock()
	}()

	_, err := c.backend.ResolveConsent(ctx, linkapi.ConsentRequest{
		RunID:           runID,
		RequesterUserID: id.UserID,
		TargetUserID:    suggestedUserID,
		RequesterOK:     approved,
		TargetOK:        true,
	})
	if err != nil {
		c.logger.Warn("consent resolution failed", zap.String("run_id", runID), zap.Error(err))
		return nil, common.NewUnavailableError("could not record your answer", err)
	}

	ack := consentDeclinedAck
	if approved {
		ack = consentApprovedAck
	}
	msg := c.reply(ctx, ack, buffer.AppendOptions{Metadata: model.Metadata{"consent_ack": true}}, true)

	return &SendResult{
		Appended: []model.Message{msg},
		RunID:    runID,
		View:     c.Transcript(),
	}, nil
}

// absorb turns a backend response into assistant messages: the text with its
// citations, then one message per result card.
func (c *Controller) absorb(ctx context.Context, resp map[string]any, result *SendResult) {
	if sid := model.CoerceText(resp["session_id"]); sid != "" && c.session.Adopt(sid) {
		c.buffer.SetSession(sid)
	}

	n := normalize.Normalize(resp)

	meta := model.Metadata{}
	if n.Citations != nil {
		meta["citations"] = n.Citations
	}
	if n.Outreach != nil {
		c.outreach.Observe(n.Outreach.RunID)
		result.RunID = n.Outreach.RunID
		meta["run_id"] = n.Outreach.RunID
		if n.Outreach.Status != "" {
			meta["outreach_status"] = n.Outreach.Status
		}
	}

	if n.Text != "" {
		msg := c.reply(ctx, n.Text, buffer.AppendOptions{Metadata: meta}, true)
		result.Appended = append(result.Appended, msg)
	}
	for _, card := range n.Cards {
		msg := c.reply(ctx, card.FallbackText, buffer.AppendOptions{
			Metadata:    card.Metadata,
			MessageType: string(card.Kind),
		}, true)
		result.Appended = append(result.Appended, msg)
	}
}

// reply shows an assistant message at once and, when persist is set and the
// service stores replies, saves and broadcasts it as well.
func (c *Controller) reply(ctx context.Context, content string, opts buffer.AppendOptions, persist bool) model.Message {
	msg := c.buffer.Append(content, model.RoleAssistant, opts)
	if !persist || !c.persistReplies {
		return msg
	}

	saved := msg.Clone()
	if err := c.repo.InsertMessage(ctx, &saved); err != nil {
		c.logger.Warn("failed to save link reply", zap.Error(err))
		c.metrics.BestEffortFailed("persist_reply")
		return msg
	}
	c.confirm(saved)
	return msg
}

// confirm records a saved message as server state and fans it out.
func (c *Controller) confirm(saved model.Message) {
	c.Ingest(saved)
	if c.hub != nil {
		c.hub.Broadcast(saved)
	}
}

// ensureSession retries a session lookup that failed when the chat opened.
// A failure leaves the turn without a session id.
func (c *Controller) ensureSession(ctx context.Context) {
	if c.session.ID() != "" {
		return
	}
	sid, err := c.session.GetOrCreate(ctx)
	if err != nil {
		c.logger.Warn("failed to resolve link session", zap.Error(err))
		c.metrics.BestEffortFailed("session")
		return
	}
	c.buffer.SetSession(sid)
}

func (c *Controller) rememberName(ctx context.Context, userID, name string) {
	now := c.now()
	if err := c.repo.SetPreferredName(ctx, userID, name, now); err != nil {
		c.logger.Warn("failed to save preferred name", zap.Error(err))
		c.metrics.BestEffortFailed("preferred_name")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.awaitingPreferredName = false
	if c.memory == nil {
		c.memory = &model.Memory{UserID: userID}
	}
	c.memory.PreferredName = &model.PreferredName{Name: name, UpdatedAt: now}
}

func (c *Controller) preferredNameFor(extracted string, id common.Identity) string {
	if extracted != "" {
		return extracted
	}
	c.mu.Lock()
	known := c.memory.Name()
	c.mu.Unlock()
	return firstName(known, id)
}

// goBestEffort runs fn in the background. Failures are logged and counted,
// never returned.
func (c *Controller) goBestEffort(op string, fn func(ctx context.Context) error) {
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), bestEffortTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			c.logger.Debug("background write failed", zap.String("operation", op), zap.Error(err))
			c.metrics.BestEffortFailed(op)
		}
	}()
}
