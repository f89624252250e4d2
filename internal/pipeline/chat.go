package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/llm"
	"github.com/sells-group/cnpj-enrich/internal/model"
)

// historyWindow is how many prior turns are included in a chat prompt.
const historyWindow = 10

// ErrChatFailed is returned when the chat model cannot produce a reply. Its
// text is safe to show to end users.
var ErrChatFailed = eris.New("Erro ao processar mensagem. Por favor, tente novamente.")

// ChatRequest is one user message in a conversation.
type ChatRequest struct {
	Message        string           `json:"message"`
	History        []model.ChatTurn `json:"history,omitempty"`
	ConversationID string           `json:"conversationId,omitempty"`
}

// Chat answers a conversational message in the assistant persona.
func (s *Service) Chat(ctx context.Context, message string, history []model.ChatTurn, conversationID string) (string, error) {
	requestID := s.newID()
	start := s.now()
	log := zap.L().With(zap.String("request_id", requestID))
	log.Info("pipeline: chat message received", zap.String("preview", preview(message, 50)))

	rec := &model.ExecutionRecord{
		RequestID:      requestID,
		ConversationID: conversationID,
		Operation:      model.OperationChat,
		Input:          message,
		Provider:       s.chat.Name(),
		Model:          s.chat.Model(),
	}

	prompt := buildChatPrompt(message, history)
	res, err := s.chat.Invoke(ctx, prompt)
	if err != nil {
		log.Error("pipeline: chat call failed", zap.Error(err))
		s.finish(ctx, rec, start, err)
		return "", eris.Wrapf(ErrChatFailed, "pipeline: chat: %v", err)
	}

	reply := strings.TrimSpace(res.Content)
	rec.Output = reply
	rec.TokensUsed = llm.TokensFor(prompt, res)
	tokensUsed.WithLabelValues(s.chat.Name(), string(model.OperationChat)).Add(float64(rec.TokensUsed))
	s.finish(ctx, rec, start, nil)

	return reply, nil
}

// Respond routes a chat message: CNPJ-looking text is enriched, anything
// else is answered conversationally. When a conversation ID is given both
// sides of the exchange are written to the message log.
func (s *Service) Respond(ctx context.Context, req ChatRequest) (*model.Reply, error) {
	s.logMessage(ctx, req.ConversationID, model.RoleUser, req.Message, nil)

	var reply model.Reply
	var meta map[string]any
	if model.IsTaxID(req.Message) {
		resp, err := s.Enrich(ctx, req.Message, req.ConversationID)
		if err != nil {
			return nil, err
		}
		reply = model.Reply{Message: resp.Message, Enrichment: resp}
		meta = map[string]any{
			"taxId":     resp.TaxID,
			"requestId": resp.RequestID,
			"data":      resp,
		}
	} else {
		text, err := s.Chat(ctx, req.Message, req.History, req.ConversationID)
		if err != nil {
			return nil, err
		}
		reply = model.Reply{Message: text}
	}

	s.logMessage(ctx, req.ConversationID, model.RoleAssistant, reply.Message, meta)
	return &reply, nil
}

func (s *Service) logMessage(ctx context.Context, conversationID, role, content string, meta map[string]any) {
	if conversationID == "" || s.messages == nil {
		return
	}
	msg := &model.Message{
		ID:             s.newID(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       meta,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.messages.LogMessage(context.WithoutCancel(ctx), msg); err != nil {
		zap.L().Warn("pipeline: message log write failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
