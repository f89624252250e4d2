package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/llm"
	"github.com/sells-group/cnpj-enrich/internal/model"
)

// Auditor persists execution records.
type Auditor interface {
	LogExecution(ctx context.Context, rec *model.ExecutionRecord) error
}

// MessageLog persists conversation messages.
type MessageLog interface {
	LogMessage(ctx context.Context, msg *model.Message) error
}

// Archiver stores a copy of each successful enrichment response.
type Archiver interface {
	Put(ctx context.Context, resp *model.Response) error
}

// Deps are the collaborators of a Service. Auditor, Messages and Archive
// are optional.
type Deps struct {
	Pipeline *Pipeline
	// Extract is the provider the pipeline's extractor uses; it is only
	// consulted for audit metadata.
	Extract  llm.Provider
	Chat     llm.Provider
	Auditor  Auditor
	Messages MessageLog
	Archive  Archiver
}

// Service is the entry point for enrichment and conversation requests.
type Service struct {
	pipeline *Pipeline
	extract  llm.Provider
	chat     llm.Provider
	audit    Auditor
	messages MessageLog
	archive  Archiver
	now      func() time.Time
	newID    func() string
}

// NewService wires a Service from d.
func NewService(d Deps) *Service {
	return &Service{
		pipeline: d.Pipeline,
		extract:  d.Extract,
		chat:     d.Chat,
		audit:    d.Auditor,
		messages: d.Messages,
		archive:  d.Archive,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Enrich runs the pipeline for taxID and returns the formatted response.
// Exactly one execution record is written per call, whether it succeeds or
// fails.
func (s *Service) Enrich(ctx context.Context, taxID, conversationID string) (*model.Response, error) {
	requestID := s.newID()
	start := s.now()
	clean := model.CleanTaxID(taxID)
	log := zap.L().With(zap.String("request_id", requestID), zap.String("tax_id", clean))
	log.Info("pipeline: enrichment started", zap.String("input", taxID))

	rec := &model.ExecutionRecord{
		RequestID:      requestID,
		TaxID:          clean,
		ConversationID: conversationID,
		Operation:      model.OperationEnrich,
		Input:          taxID,
	}
	if s.extract != nil {
		rec.Provider = s.extract.Name()
		rec.Model = s.extract.Model()
	}

	if len(clean) != model.TaxIDLength {
		err := eris.Wrapf(model.ErrInvalidTaxID, "pipeline: enrich %q", taxID)
		s.finish(ctx, rec, start, err)
		return nil, err
	}

	final, err := s.pipeline.Run(ctx, model.NewState(clean, requestID, conversationID))
	if err != nil {
		log.Error("pipeline: enrichment failed", zap.Error(err))
		s.finish(ctx, rec, start, err)
		return nil, err
	}

	resp := Format(final)
	rec.Output = resp
	rec.State = model.AuditState{
		Facts:    final.Facts,
		Presence: final.Presence,
		Sources:  final.Sources,
	}
	rec.TokensUsed = final.TokensUsed
	s.finish(ctx, rec, start, nil)

	if s.archive != nil {
		if aerr := s.archive.Put(context.WithoutCancel(ctx), &resp); aerr != nil {
			log.Warn("pipeline: archive write failed", zap.Error(aerr))
		}
	}

	log.Info("pipeline: enrichment succeeded", zap.Int("sources", len(resp.Sources)))
	return &resp, nil
}

// finish stamps timing and outcome on rec, updates metrics and writes it to
// the auditor. The write outlives cancellation of ctx so a disconnected
// caller still leaves a record. Audit failures are logged and swallowed.
func (s *Service) finish(ctx context.Context, rec *model.ExecutionRecord, start time.Time, err error) {
	elapsed := s.now().Sub(start)
	rec.ID = s.newID()
	rec.DurationMs = elapsed.Milliseconds()
	rec.CreatedAt = s.now().UTC()
	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	requestsTotal.WithLabelValues(string(rec.Operation), outcome).Inc()
	requestDuration.WithLabelValues(string(rec.Operation)).Observe(elapsed.Seconds())

	if s.audit == nil {
		return
	}
	if lerr := s.audit.LogExecution(context.WithoutCancel(ctx), rec); lerr != nil {
		zap.L().Warn("pipeline: audit write failed",
			zap.String("request_id", rec.RequestID),
			zap.String("operation", string(rec.Operation)),
			zap.Error(lerr),
		)
	}
}
