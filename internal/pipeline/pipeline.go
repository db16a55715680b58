// Package pipeline turns a solution description into a validated artifact:
// render the prompt, run the continuation loop, extract, clean, validate and
// hand the result to persistence.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devgenius/artifact-gateway/internal/artifact"
	"github.com/devgenius/artifact-gateway/internal/continuation"
	"github.com/devgenius/artifact-gateway/internal/domain"
	"github.com/devgenius/artifact-gateway/internal/extract"
	"github.com/devgenius/artifact-gateway/internal/invoke"
	"github.com/devgenius/artifact-gateway/internal/prompt"
	"github.com/devgenius/artifact-gateway/internal/session"
	"github.com/devgenius/artifact-gateway/internal/storage"
)

const tracerName = "github.com/devgenius/artifact-gateway/internal/pipeline"

// IncompleteWarning is attached when every continuation attempt hit the
// output token limit.
const IncompleteWarning = "Reached maximum number of attempts. Final result is incomplete. Please try again."

// Runner is the continuation loop.
type Runner interface {
	Run(ctx context.Context, prompt string, conv domain.Conversation, opts continuation.Options) (*continuation.Session, error)
}

// Request is one generation request.
type Request struct {
	Kind        domain.ArtifactKind
	Description string
	// DocumentationType selects the documentation flavour, e.g. "technical".
	DocumentationType string
	// Section selects a single documentation section.
	Section string
	// Refinement requests a change to the current artifact.
	Refinement string
	// Current is the artifact to refine. Defaults to the session's latest.
	Current string
	// Observer receives the response accumulated so far.
	Observer invoke.Observer
}

// Result is a successful run.
type Result struct {
	Kind           domain.ArtifactKind      `json:"kind"`
	ConversationID string                   `json:"conversation_id"`
	Artifact       string                   `json:"artifact"`
	Response       string                   `json:"response"`
	Validation     *domain.ValidationResult `json:"validation"`
	Incomplete     bool                     `json:"incomplete"`
	Attempts       int                      `json:"attempts"`
	Warnings       []string                 `json:"warnings,omitempty"`
	ArtifactName   string                   `json:"artifact_name,omitempty"`
	FeedbackID     string                   `json:"feedback_id,omitempty"`
	TemplateURL    string                   `json:"template_url,omitempty"`
	DeployURL      string                   `json:"deploy_url,omitempty"`
}

// Pipeline runs generation requests against a session.
type Pipeline struct {
	mu     sync.RWMutex
	runner Runner

	model           string
	reasoningBudget int
	region          string

	artifacts     artifact.Store
	conversations storage.ConversationStore
	feedback      storage.FeedbackStore

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Pipeline)

func WithArtifactStore(s artifact.Store) Option {
	return func(p *Pipeline) { p.artifacts = s }
}

func WithConversationStore(s storage.ConversationStore) Option {
	return func(p *Pipeline) { p.conversations = s }
}

func WithFeedbackStore(s storage.FeedbackStore) Option {
	return func(p *Pipeline) { p.feedback = s }
}

// WithModel sets the model id recorded on feedback slots.
func WithModel(model string) Option {
	return func(p *Pipeline) { p.model = model }
}

func WithReasoningBudget(n int) Option {
	return func(p *Pipeline) { p.reasoningBudget = n }
}

// WithRegion sets the region of CloudFormation deploy links.
func WithRegion(region string) Option {
	return func(p *Pipeline) { p.region = region }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(r Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		runner: r,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRunner swaps the continuation loop after a config reload and applies
// opts, typically WithModel and WithReasoningBudget. In-flight runs keep the
// settings they started with.
func (p *Pipeline) SetRunner(r Runner, opts ...Option) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runner = r
	for _, opt := range opts {
		opt(p)
	}
}

type settings struct {
	runner          Runner
	model           string
	reasoningBudget int
}

func (p *Pipeline) current() settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return settings{runner: p.runner, model: p.model, reasoningBudget: p.reasoningBudget}
}

// Run generates one artifact. The caller must hold the session lock. Every
// failure is a *Error and leaves the session unchanged.
func (p *Pipeline) Run(ctx context.Context, sess *session.Session, req Request) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("kind", string(req.Kind)),
		attribute.String("conversation_id", sess.ID),
	))
	defer span.End()

	res, err := p.run(ctx, sess, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("attempts", res.Attempts),
		attribute.Bool("incomplete", res.Incomplete),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, sess *session.Session, req Request) (*Result, error) {
	spec, ok := SpecFor(req.Kind)
	if !ok {
		return nil, &Error{Code: CodeInvalidRequest, Kind: req.Kind, Message: "unknown artifact kind"}
	}
	if req.Section != "" {
		if req.Kind != domain.KindDocumentation {
			return nil, &Error{Code: CodeInvalidRequest, Kind: req.Kind, Message: "sections are only available for documentation"}
		}
		spec = spec.forSection(req.Section)
	}

	text, err := p.renderPrompt(sess, req)
	if err != nil {
		return nil, err
	}

	logger := p.logger.With(
		slog.String("conversation_id", sess.ID),
		slog.String("kind", string(req.Kind)),
	)

	cur := p.current()
	base := sess.Messages()
	sess.AppendThread(spec.Kind, domain.UserMessage(text))
	rollback := func() { sess.RollbackThread(spec.Kind, 1) }

	out, err := cur.runner.Run(ctx, text, base, continuation.Options{
		Invoke:   invoke.Options{Reasoning: spec.Reasoning, ReasoningBudget: cur.reasoningBudget},
		Observer: req.Observer,
	})
	if err != nil {
		rollback()
		return nil, &Error{Code: CodeInvocationFailed, Kind: spec.Kind, Message: "model invocation failed", Err: err}
	}

	response := out.Response
	if spec.Normalize != nil {
		response = spec.Normalize(response)
	}

	body, err := extractArtifact(spec, response)
	if err != nil {
		rollback()
		logger.WarnContext(ctx, "artifact extraction failed", slog.Int("response_bytes", len(response)))
		return nil, &Error{Code: CodeExtractionFailed, Kind: spec.Kind, Message: "no " + strings.Join(spec.Tags, "/") + " code block found in the response", Raw: response, Err: err}
	}
	if spec.Clean != nil {
		body = spec.Clean(body)
	}

	vr := spec.Validate(body)
	if !vr.Valid {
		rollback()
		logger.WarnContext(ctx, "artifact failed validation", slog.Any("issues", vr.Issues))
		return nil, &Error{
			Code:       CodeValidationFailed,
			Kind:       spec.Kind,
			Message:    "generated artifact failed validation",
			Issues:     vr.Issues,
			Raw:        body,
			Validation: vr,
		}
	}

	reply := spec.Marker
	if reply == "" {
		reply = response
	}
	sess.AppendThread(spec.Kind, domain.AssistantMessage(reply))
	sess.SetArtifact(spec.Kind, body)
	sess.Record(spec.InteractionType, response)

	res := &Result{
		Kind:           spec.Kind,
		ConversationID: sess.ID,
		Artifact:       body,
		Response:       response,
		Validation:     vr,
		Incomplete:     out.Truncated,
		Attempts:       len(out.Attempts),
	}
	if out.Truncated {
		res.Warnings = append(res.Warnings, IncompleteWarning)
	}

	p.persist(ctx, logger, sess, spec, cur.model, text, res)

	logger.InfoContext(ctx, "artifact generated",
		slog.Int("attempts", res.Attempts),
		slog.Bool("incomplete", res.Incomplete),
		slog.Int("warnings", len(vr.Warnings)),
	)
	return res, nil
}

func (p *Pipeline) renderPrompt(sess *session.Session, req Request) (string, error) {
	refine := req.Refinement != ""
	name, err := prompt.Name(req.Kind, refine, req.Section)
	if err != nil {
		return "", &Error{Code: CodeInvalidRequest, Kind: req.Kind, Message: err.Error()}
	}

	data := prompt.Data{
		Description:       strings.TrimSpace(req.Description),
		DocumentationType: req.DocumentationType,
		Refinement:        req.Refinement,
		Current:           req.Current,
		Context:           sess.AssistantText(),
	}
	if data.Description == "" {
		data.Description = data.Context
	}
	if data.Context == "" {
		data.Context = data.Description
	}

	if refine {
		if data.Current == "" {
			data.Current, _ = sess.Artifact(req.Kind)
		}
		if data.Current == "" {
			return "", &Error{Code: CodeInvalidRequest, Kind: req.Kind, Message: "nothing to refine: generate the artifact first or pass the current version"}
		}
	} else if data.Description == "" {
		return "", &Error{Code: CodeInvalidRequest, Kind: req.Kind, Message: "a solution description or prior conversation is required"}
	}

	text, err := prompt.Render(name, data)
	if err != nil {
		return "", &Error{Code: CodeInvalidRequest, Kind: req.Kind, Message: "could not build prompt", Err: err}
	}
	return text, nil
}

func extractArtifact(spec Spec, response string) (string, error) {
	if len(spec.Tags) == 0 {
		body := strings.TrimSpace(response)
		if body == "" {
			return "", extract.ErrNotFound
		}
		return body, nil
	}
	for _, tag := range spec.Tags {
		blocks, err := extract.All(response, tag)
		if errors.Is(err, extract.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if spec.JoinBlocks {
			return strings.Join(blocks, "\n\n"), nil
		}
		return blocks[0], nil
	}
	return "", extract.ErrNotFound
}

// persist hands a successful result to the stores. Failures are logged and
// reported as warnings; the artifact is still returned.
func (p *Pipeline) persist(ctx context.Context, logger *slog.Logger, sess *session.Session, spec Spec, model, promptText string, res *Result) {
	now := p.now().UTC()
	warn := func(msg string, err error) {
		logger.ErrorContext(ctx, msg, slog.String("error", err.Error()))
		res.Warnings = append(res.Warnings, msg)
	}

	if p.artifacts != nil {
		name, err := artifact.Save(ctx, p.artifacts, sess.ID, spec.ContentType, res.Response, now)
		if err != nil {
			warn("failed to store artifact", err)
		} else {
			res.ArtifactName = name
		}

		if spec.Kind == domain.KindCloudFormation {
			u, err := artifact.PublishTemplate(ctx, p.artifacts, sess.ID, res.Artifact)
			if err != nil {
				warn("failed to publish template", err)
			} else {
				res.TemplateURL = u
				res.DeployURL = artifact.DeployURL(p.region, u)
			}
		}
	}

	if p.conversations != nil {
		err := p.conversations.SaveConversation(ctx, &domain.ConversationRecord{
			ID:             uuid.NewString(),
			ConversationID: sess.ID,
			Prompt:         promptText,
			Response:       res.Response,
			CreatedAt:      now,
		})
		if err != nil {
			warn("failed to save conversation", err)
		}
	}

	if p.feedback != nil {
		fb := &domain.Feedback{
			ID:             uuid.NewString(),
			ConversationID: sess.ID,
			UseCase:        spec.UseCase,
			ModelID:        model,
			Response:       res.Artifact,
			CreatedAt:      now,
		}
		if err := p.feedback.CreateFeedback(ctx, fb); err != nil {
			warn("failed to open feedback slot", err)
		} else {
			res.FeedbackID = fb.ID
		}
	}
}
