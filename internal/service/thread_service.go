package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// ThreadService handles forum content: threads, replies and visibility.
type ThreadService struct {
	threadRepo repository.ThreadRepository
	replyRepo  repository.ReplyRepository
	events     *EventService
	logger     zerolog.Logger
}

// NewThreadService creates a new ThreadService.
func NewThreadService(
	threadRepo repository.ThreadRepository,
	replyRepo repository.ReplyRepository,
	events *EventService,
	logger zerolog.Logger,
) *ThreadService {
	return &ThreadService{
		threadRepo: threadRepo,
		replyRepo:  replyRepo,
		events:     events,
		logger:     logger.With().Str("service", "thread").Logger(),
	}
}

// sanitize strips angle brackets so stored content cannot smuggle markup.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	return strings.TrimSpace(s)
}

// =============================================================================
// Threads
// =============================================================================

// CreateThreadInput contains the data needed to open a thread.
type CreateThreadInput struct {
	Title     string
	Body      string
	IsPrivate bool
	Author    *domain.User
	Meta      RequestMeta
}

// CreateThread opens a new thread. Only admins may open private threads.
func (s *ThreadService) CreateThread(ctx context.Context, input CreateThreadInput) (*domain.Thread, error) {
	title := sanitize(input.Title)
	body := sanitize(input.Body)

	if len(title) < domain.ThreadTitleMinLen || len(title) > domain.ThreadTitleMaxLen {
		return nil, ErrInvalidTitle
	}
	if len(body) < domain.ThreadBodyMinLen || len(body) > domain.ThreadBodyMaxLen {
		return nil, ErrInvalidBody
	}

	if input.IsPrivate && !input.Author.IsAdmin {
		event := input.Meta.Event(domain.EventUnauthorizedAccess, domain.SeverityMedium)
		event.UserID = &input.Author.ID
		event.Username = input.Author.Username
		event.Details = map[string]any{"action": "create_private_thread"}
		s.events.Record(ctx, event)
		return nil, domain.ErrAccessDenied
	}

	thread := domain.NewThread(title, body, input.Author.ID, input.IsPrivate)
	if err := s.threadRepo.Create(ctx, thread); err != nil {
		s.logger.Error().Err(err).Msg("failed to create thread")
		return nil, ErrInternalError
	}
	thread.Author = input.Author.Username

	event := input.Meta.Event(domain.EventThreadCreated, domain.SeverityLow)
	event.UserID = &input.Author.ID
	event.Username = input.Author.Username
	event.Details = map[string]any{
		"thread_id": thread.ID,
		"private":   thread.IsPrivate,
	}
	s.events.Record(ctx, event)

	return thread, nil
}

// ListThreads returns one visibility class per call, newest first. The
// default listing is public threads; the private listing requires private
// access and the refusal is audited.
func (s *ThreadService) ListThreads(ctx context.Context, viewer *domain.User, wantPrivate bool, meta RequestMeta) ([]*domain.Thread, error) {
	if wantPrivate && (viewer == nil || !viewer.CanSeePrivate()) {
		event := meta.Event(domain.EventUnauthorizedAccess, domain.SeverityMedium)
		if viewer != nil {
			event.UserID = &viewer.ID
			event.Username = viewer.Username
		}
		event.Details = map[string]any{"resource": "private_thread_list"}
		s.events.Record(ctx, event)
		return nil, domain.ErrAccessDenied
	}

	threads, err := s.threadRepo.List(ctx, wantPrivate)
	if err != nil {
		s.logger.Error().Err(err).Bool("private", wantPrivate).Msg("failed to list threads")
		return nil, ErrInternalError
	}
	return threads, nil
}

// ThreadPage is one thread plus its replies.
type ThreadPage struct {
	Thread  *domain.Thread  `json:"thread"`
	Replies []*domain.Reply `json:"replies"`
}

// GetThread fetches a thread and its replies, enforcing visibility and
// bumping the view counter. Viewers without private access are refused
// private threads outright, and the probe is recorded.
func (s *ThreadService) GetThread(ctx context.Context, id int64, viewer *domain.User, meta RequestMeta) (*ThreadPage, error) {
	thread, err := s.threadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrThreadNotFound) {
			return nil, domain.ErrThreadNotFound
		}
		s.logger.Error().Err(err).Int64("thread_id", id).Msg("failed to get thread")
		return nil, ErrInternalError
	}

	if thread.IsPrivate && (viewer == nil || !viewer.CanSeePrivate()) {
		event := meta.Event(domain.EventUnauthorizedAccess, domain.SeverityMedium)
		if viewer != nil {
			event.UserID = &viewer.ID
			event.Username = viewer.Username
		}
		event.Details = map[string]any{"thread_id": id, "action": "view_private_thread"}
		s.events.Record(ctx, event)
		return nil, domain.ErrAccessDenied
	}

	if err := s.threadRepo.IncrementViews(ctx, id); err != nil {
		// A lost view bump is not worth failing the read.
		s.logger.Warn().Err(err).Int64("thread_id", id).Msg("failed to increment views")
	} else {
		thread.Views++
	}

	replies, err := s.replyRepo.ListByThread(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("thread_id", id).Msg("failed to list replies")
		return nil, ErrInternalError
	}

	return &ThreadPage{Thread: thread, Replies: replies}, nil
}

// ListAllThreads returns every thread for the admin console.
func (s *ThreadService) ListAllThreads(ctx context.Context, limit int) ([]*domain.Thread, error) {
	if limit <= 0 {
		limit = 100
	}
	threads, err := s.threadRepo.ListAll(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list all threads")
		return nil, ErrInternalError
	}
	return threads, nil
}

// DeleteThread soft-deletes a thread. Admin only, enforced by the caller.
func (s *ThreadService) DeleteThread(ctx context.Context, id int64, actor *domain.User, meta RequestMeta) error {
	if _, err := s.threadRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, domain.ErrThreadNotFound) {
			return domain.ErrThreadNotFound
		}
		s.logger.Error().Err(err).Int64("thread_id", id).Msg("failed to get thread")
		return ErrInternalError
	}

	if err := s.threadRepo.SoftDelete(ctx, id); err != nil {
		s.logger.Error().Err(err).Int64("thread_id", id).Msg("failed to delete thread")
		return ErrInternalError
	}

	event := meta.Event(domain.EventThreadDeleted, domain.SeverityMedium)
	if actor != nil {
		event.UserID = &actor.ID
		event.Username = actor.Username
	}
	event.Details = map[string]any{"thread_id": id}
	s.events.Record(ctx, event)

	return nil
}

// =============================================================================
// Replies
// =============================================================================

// CreateReplyInput contains the data needed to reply to a thread.
type CreateReplyInput struct {
	ThreadID int64
	Text     string
	Author   *domain.User
	Meta     RequestMeta
}

// CreateReply posts a reply. The parent thread's visibility gates who may
// reply: private threads accept replies only from viewers with access.
func (s *ThreadService) CreateReply(ctx context.Context, input CreateReplyInput) (*domain.Reply, error) {
	text := sanitize(input.Text)
	if len(text) < domain.ReplyMinLen || len(text) > domain.ReplyMaxLen {
		return nil, ErrInvalidReply
	}

	thread, err := s.threadRepo.GetByID(ctx, input.ThreadID)
	if err != nil {
		if errors.Is(err, domain.ErrThreadNotFound) {
			return nil, domain.ErrThreadNotFound
		}
		s.logger.Error().Err(err).Int64("thread_id", input.ThreadID).Msg("failed to get thread")
		return nil, ErrInternalError
	}

	if thread.IsPrivate && !input.Author.CanSeePrivate() {
		event := input.Meta.Event(domain.EventUnauthorizedAccess, domain.SeverityMedium)
		event.UserID = &input.Author.ID
		event.Username = input.Author.Username
		event.Details = map[string]any{"thread_id": input.ThreadID, "action": "reply_private_thread"}
		s.events.Record(ctx, event)
		return nil, domain.ErrAccessDenied
	}

	reply := domain.NewReply(input.ThreadID, input.Author.ID, text)
	if err := s.replyRepo.Create(ctx, reply); err != nil {
		s.logger.Error().Err(err).Int64("thread_id", input.ThreadID).Msg("failed to create reply")
		return nil, ErrInternalError
	}
	reply.Author = input.Author.Username

	event := input.Meta.Event(domain.EventReplyCreated, domain.SeverityLow)
	event.UserID = &input.Author.ID
	event.Username = input.Author.Username
	event.Details = map[string]any{
		"thread_id": input.ThreadID,
		"reply_id":  reply.ID,
	}
	s.events.Record(ctx, event)

	return reply, nil
}

// DeleteReply soft-deletes a reply. Admin only, enforced by the caller.
func (s *ThreadService) DeleteReply(ctx context.Context, id int64, actor *domain.User, meta RequestMeta) error {
	if err := s.replyRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrReplyNotFound) {
			return domain.ErrReplyNotFound
		}
		s.logger.Error().Err(err).Int64("reply_id", id).Msg("failed to delete reply")
		return ErrInternalError
	}

	event := meta.Event(domain.EventReplyDeleted, domain.SeverityMedium)
	if actor != nil {
		event.UserID = &actor.ID
		event.Username = actor.Username
	}
	event.Details = map[string]any{"reply_id": id}
	s.events.Record(ctx, event)

	return nil
}
