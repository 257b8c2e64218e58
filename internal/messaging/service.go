package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrEmptyBody      = errors.New("message body is required")
	ErrWrongRole      = errors.New("sender role not allowed here")
)

func newID() string {
	return primitive.NewObjectID().Hex()
}

type Service struct {
	repo     Repository
	location *time.Location
}

func NewService(repo Repository, location *time.Location) *Service {
	return &Service{repo: repo, location: location}
}

// Send appends an owner's message to their thread, opening the thread on
// first contact, and refreshes the thread summary the staff inbox sorts by.
func (s *Service) Send(ctx context.Context, sender Sender, body string) (Thread, Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Thread{}, Message{}, ErrEmptyBody
	}
	if sender.Role != RoleUser {
		return Thread{}, Message{}, ErrWrongRole
	}

	now := time.Now().In(s.location)
	thread, err := s.repo.EnsureThread(ctx, sender.ID, sender.Name, now)
	if err != nil {
		return Thread{}, Message{}, err
	}

	message, err := s.append(ctx, thread, sender, body, now)
	if err != nil {
		return Thread{}, Message{}, err
	}
	thread.LastMessage = body
	thread.LastSenderID = sender.ID
	thread.UpdatedAt = now
	return thread, message, nil
}

// Reply appends a staff message to an existing thread. Staff never open
// threads; the owner's first message does.
func (s *Service) Reply(ctx context.Context, threadID string, sender Sender, body string) (Thread, Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Thread{}, Message{}, ErrEmptyBody
	}
	if sender.Role != RoleStaff {
		return Thread{}, Message{}, ErrWrongRole
	}

	thread, err := s.repo.ThreadByID(ctx, strings.TrimSpace(threadID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Thread{}, Message{}, ErrThreadNotFound
		}
		return Thread{}, Message{}, err
	}

	now := time.Now().In(s.location)
	message, err := s.append(ctx, thread, sender, body, now)
	if err != nil {
		return Thread{}, Message{}, err
	}
	thread.LastMessage = body
	thread.LastSenderID = sender.ID
	thread.UpdatedAt = now
	return thread, message, nil
}

func (s *Service) append(ctx context.Context, thread Thread, sender Sender, body string, now time.Time) (Message, error) {
	message := Message{
		ID:         newID(),
		ThreadID:   thread.ID,
		SenderID:   sender.ID,
		SenderRole: sender.Role,
		Body:       body,
		Seen:       false,
		CreatedAt:  now,
	}
	if err := s.repo.InsertMessage(ctx, message); err != nil {
		return Message{}, err
	}
	if err := s.repo.UpdateSummary(ctx, thread.ID, body, sender.ID, now); err != nil {
		return Message{}, err
	}
	return message, nil
}

// History returns the owner's conversation oldest-first. An owner who never
// wrote has no thread and gets an empty page, not an error.
func (s *Service) History(ctx context.Context, userID string, limit, offset int64) (Thread, []Message, error) {
	thread, err := s.repo.ThreadByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Thread{}, []Message{}, nil
		}
		return Thread{}, nil, err
	}

	messages, err := s.repo.MessagesFor(ctx, thread.ID, limit, offset)
	if err != nil {
		return Thread{}, nil, err
	}
	return thread, messages, nil
}

func (s *Service) ThreadHistory(ctx context.Context, threadID string, limit, offset int64) (Thread, []Message, error) {
	thread, err := s.repo.ThreadByID(ctx, strings.TrimSpace(threadID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Thread{}, nil, ErrThreadNotFound
		}
		return Thread{}, nil, err
	}

	messages, err := s.repo.MessagesFor(ctx, thread.ID, limit, offset)
	if err != nil {
		return Thread{}, nil, err
	}
	return thread, messages, nil
}

func (s *Service) ListThreads(ctx context.Context, limit, offset int64) ([]Thread, int64, error) {
	items, err := s.repo.ListThreads(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountThreads(ctx)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// MarkSeen records that the viewer has read the other side's messages.
func (s *Service) MarkSeen(ctx context.Context, threadID, viewerRole string) (int64, error) {
	thread, err := s.repo.ThreadByID(ctx, strings.TrimSpace(threadID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrThreadNotFound
		}
		return 0, err
	}
	return s.repo.MarkSeen(ctx, thread.ID, viewerRole)
}
