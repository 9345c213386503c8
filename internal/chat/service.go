// Package chat orchestrates a conversation turn: session lookup, history,
// document retrieval and model completion.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/retrieval"
	"github.com/fyrsmithlabs/docchat/internal/store"
)

const basePrompt = "You are a helpful assistant that answers questions about the user's documents. " +
	"Ground your answers in the provided document context when it is relevant. " +
	"If the context does not contain the answer, say so instead of guessing. " +
	"Do not reveal anything about your creation, design, or underlying system."

var (
	// ErrNilDependency indicates the service was constructed without a
	// required collaborator.
	ErrNilDependency = errors.New("chat: nil dependency")

	// ErrEmptyMessage indicates a blank user message.
	ErrEmptyMessage = errors.New("chat: empty message")
)

// ServiceConfig tunes the conversation loop.
type ServiceConfig struct {
	// MaxHistory is how many prior turns are replayed to the model.
	MaxHistory int `koanf:"max_history"`

	// TopK is how many document chunks are retrieved per turn.
	TopK int `koanf:"top_k"`
}

// ApplyDefaults fills in unset fields.
func (c *ServiceConfig) ApplyDefaults() {
	if c.MaxHistory == 0 {
		c.MaxHistory = 20
	}
	if c.TopK == 0 {
		c.TopK = retrieval.DefaultTopK
	}
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	// SessionID identifies the session the turn belongs to. When the caller
	// passed no session id, this is the freshly created one.
	SessionID string `json:"session_id"`

	// Answer is the assistant's reply.
	Answer string `json:"answer"`
}

// Service runs conversation turns.
type Service struct {
	store     *store.Store
	retriever *retrieval.Service
	completer Completer
	cfg       ServiceConfig
	logger    *zap.Logger
}

// NewService wires the conversation loop together.
func NewService(st *store.Store, retriever *retrieval.Service, completer Completer, cfg ServiceConfig, logger *zap.Logger) (*Service, error) {
	if st == nil || retriever == nil || completer == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Service{
		store:     st,
		retriever: retriever,
		completer: completer,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Respond runs one turn: it loads the session and its history, retrieves
// document context for the user message, asks the model for a reply and
// persists both sides of the exchange. History is loaded before the user
// message is stored so the message appears exactly once in the prompt.
func (s *Service) Respond(ctx context.Context, sessionID, userMessage string) (*Reply, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, ErrEmptyMessage
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, err := s.store.GetOrCreateSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	history, err := s.store.ListMessages(ctx, sess.ID, s.cfg.MaxHistory)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	docContext, err := s.retriever.Retrieve(ctx, userMessage, s.cfg.TopK)
	if err != nil {
		// Retrieval trouble should not kill the conversation; answer from
		// history alone and note the degradation.
		s.logger.Warn("retrieval failed, answering without document context",
			zap.String("session_id", sess.ID), zap.Error(err))
		docContext = ""
	}

	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt(docContext)})
	for _, h := range history {
		msgs = append(msgs, Message{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: userMessage})

	answer, err := s.completer.Complete(ctx, msgs)
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendMessage(ctx, sess.ID, RoleUser, userMessage); err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}
	if err := s.store.AppendMessage(ctx, sess.ID, RoleAssistant, answer); err != nil {
		return nil, fmt.Errorf("persist assistant turn: %w", err)
	}

	s.logger.Info("turn complete",
		zap.String("session_id", sess.ID),
		zap.Int("history", len(history)),
		zap.Bool("with_context", docContext != ""))
	return &Reply{SessionID: sess.ID, Answer: answer}, nil
}

func systemPrompt(docContext string) string {
	if docContext == "" {
		return basePrompt
	}
	return basePrompt + "\n\nDocument context:\n" + docContext
}
