// ABOUTME: One-shot orchestrator composing resolution, templating and reply correlation
// ABOUTME: Defines the structured result envelopes returned to the HTTP layer

package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relayworks/courier/internal/channel"
	"github.com/relayworks/courier/internal/config"
	"github.com/relayworks/courier/internal/correlate"
	"github.com/relayworks/courier/internal/resolve"
	"github.com/relayworks/courier/internal/store"
)

// ReplyWaiter is the slice of the correlator the service needs.
type ReplyWaiter interface {
	SendAndAwaitReply(ctx context.Context, dest channel.Identity, text string, timeout time.Duration) (*correlate.ReplyResult, error)
}

// Auditor records lookup operations. Satisfied by store.Store.
type Auditor interface {
	SaveLookup(ctx context.Context, lookup *store.Lookup) error
	ListRecentLookups(ctx context.Context, limit int) ([]*store.Lookup, error)
}

// SendParams are the inputs for SendToBot. A nil Wait uses the configured
// default; an explicit non-positive Wait skips the wait but never the send.
type SendParams struct {
	BotHandle string
	Text      string
	Wait      *time.Duration
}

// SearchParams are the inputs for SearchByPhoneViaBot. Empty BotHandle and
// Template fall back to the configured defaults.
type SearchParams struct {
	Phone     string
	BotHandle string
	Template  string
	Wait      *time.Duration
}

// SendResult is the envelope for SendToBot. A nil Reply with Sent=true means
// the wait timed out; the send itself succeeded.
type SendResult struct {
	Sent  bool
	Reply *string
}

// SearchResult is the envelope for SearchByPhoneViaBot. OK is true whenever
// the send succeeded, including the timed-out wait; Error carries the failure
// reason otherwise.
type SearchResult struct {
	OK    bool
	Query string
	Reply *string
	Error string
}

// Service orchestrates the one-shot operations exposed over HTTP.
type Service struct {
	resolver resolve.Resolver
	waiter   ReplyWaiter
	audit    Auditor
	defaults config.BotConfig
	logger   *slog.Logger
}

// New creates a service. audit may be nil to disable the lookup ledger.
func New(resolver resolve.Resolver, waiter ReplyWaiter, audit Auditor, defaults config.BotConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: resolver,
		waiter:   waiter,
		audit:    audit,
		defaults: defaults,
		logger:   logger.With("component", "service"),
	}
}

// ResolvePhone maps a phone number to its directory contact.
func (s *Service) ResolvePhone(ctx context.Context, phone string) (*store.Contact, error) {
	normalized := resolve.NormalizePhone(phone)

	contact, err := s.resolver.ResolvePhone(ctx, normalized)
	if err != nil {
		s.recordLookup(ctx, "resolve_phone", normalized, "", store.LookupOutcomeFailed, nil)
		return nil, err
	}

	s.recordLookup(ctx, "resolve_phone", normalized, "", store.LookupOutcomeResolved, nil)
	return contact, nil
}

// SendToBot sends text to the bot as the authenticated user and waits for the
// next reply from it. Handle and wait fall back to configured defaults.
func (s *Service) SendToBot(ctx context.Context, p SendParams) (*SendResult, error) {
	handle := p.BotHandle
	if handle == "" {
		handle = s.defaults.Handle
	}

	bot, err := s.resolver.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, err
	}

	wait := s.defaults.WaitAfterSend
	if p.Wait != nil {
		wait = *p.Wait
	}

	result, err := s.waiter.SendAndAwaitReply(ctx, bot, p.Text, wait)
	if err != nil {
		s.recordLookup(ctx, "bot_send", p.Text, bot.ID, store.LookupOutcomeFailed, nil)
		return &SendResult{Sent: false}, err
	}

	outcome := store.LookupOutcomeTimeout
	if result.Reply != nil {
		outcome = store.LookupOutcomeReplied
	}
	s.recordLookup(ctx, "bot_send", p.Text, bot.ID, outcome, result.Reply)

	return &SendResult{Sent: result.Sent, Reply: result.Reply}, nil
}

// SearchByPhoneViaBot renders the message template with the phone number,
// sends it to the bot and captures the first reply.
//
// Failures before or during the send come back as OK=false with the reason;
// a send that succeeds but times out waiting is still OK=true with no reply.
// Rate limiting is the one exception surfaced as an error so the HTTP layer
// can map it to 429.
func (s *Service) SearchByPhoneViaBot(ctx context.Context, p SearchParams) (*SearchResult, error) {
	phone := resolve.NormalizePhone(p.Phone)

	handle := p.BotHandle
	if handle == "" {
		handle = s.defaults.Handle
	}

	bot, err := s.resolver.ResolveHandle(ctx, handle)
	if err != nil {
		s.recordLookup(ctx, "search_via_bot", phone, handle, store.LookupOutcomeFailed, nil)
		return &SearchResult{Query: phone, Error: reasonFor(err)}, nil
	}

	template := p.Template
	if template == "" {
		template = s.defaults.MessageTemplate
	}
	text, err := RenderTemplate(template, phone)
	if err != nil {
		s.recordLookup(ctx, "search_via_bot", phone, bot.ID, store.LookupOutcomeFailed, nil)
		return &SearchResult{Query: phone, Error: reasonFor(err)}, nil
	}

	// Best-effort: warm up the directory entry for the phone. Failure here
	// does not stop the search.
	if _, err := s.resolver.ResolvePhone(ctx, phone); err != nil {
		s.logger.Debug("phone pre-resolution failed", "phone", phone, "error", err)
	}

	wait := s.defaults.WaitAfterSend
	if p.Wait != nil {
		wait = *p.Wait
	}

	result, err := s.waiter.SendAndAwaitReply(ctx, bot, text, wait)
	if err != nil {
		s.recordLookup(ctx, "search_via_bot", phone, bot.ID, store.LookupOutcomeFailed, nil)
		if errors.Is(err, channel.ErrRateLimited) {
			return nil, err
		}
		return &SearchResult{Query: phone, Error: reasonFor(err)}, nil
	}

	outcome := store.LookupOutcomeTimeout
	if result.Reply != nil {
		outcome = store.LookupOutcomeReplied
	}
	s.recordLookup(ctx, "search_via_bot", phone, bot.ID, outcome, result.Reply)

	return &SearchResult{OK: true, Query: phone, Reply: result.Reply}, nil
}

// RecentLookups returns the newest audit records.
func (s *Service) RecentLookups(ctx context.Context, limit int) ([]*store.Lookup, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.ListRecentLookups(ctx, limit)
}

// recordLookup appends an audit record. Audit failures are logged, never
// propagated into the request outcome.
func (s *Service) recordLookup(ctx context.Context, op, query, bot, outcome string, reply *string) {
	if s.audit == nil {
		return
	}
	err := s.audit.SaveLookup(ctx, &store.Lookup{
		ID:        uuid.New().String(),
		Operation: op,
		Query:     query,
		Bot:       bot,
		Outcome:   outcome,
		Reply:     reply,
	})
	if err != nil {
		s.logger.Warn("failed to record lookup", "operation", op, "error", err)
	}
}

// reasonFor maps an error onto the failure taxonomy used in result envelopes.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, resolve.ErrNotFound),
		errors.Is(err, resolve.ErrAmbiguous),
		errors.Is(err, resolve.ErrInvalidHandle):
		return "ResolutionFailed: " + err.Error()
	case errors.Is(err, ErrTemplate):
		return "TemplateError: " + err.Error()
	case errors.Is(err, channel.ErrRateLimited):
		return "SendRejected: " + err.Error()
	case errors.Is(err, channel.ErrSendRejected):
		return "SendRejected: " + err.Error()
	case errors.Is(err, channel.ErrUnavailable):
		return "ChannelUnavailable: " + err.Error()
	case errors.Is(err, channel.ErrAuthRequired):
		return "AuthenticationRequired: " + err.Error()
	default:
		return err.Error()
	}
}
