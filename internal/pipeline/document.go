package pipeline

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"

	"github.com/hanpama/graphcore/internal/cache"
	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/events"
	"github.com/hanpama/graphcore/internal/features"
	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/logging"
	"github.com/hanpama/graphcore/internal/persisted"
	"github.com/hanpama/graphcore/internal/validation"
)

// resolveDocument attaches the document from the request, the document cache,
// the persisted operation storage or the parser, in that order. Documents
// that passed validation are cached once the inner stages returned.
func (p *Pipeline) resolveDocument(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		if rc.Document == nil && rc.Request.Document != nil {
			rc.Document = rc.Request.Document
			rc.DocumentID = rc.Request.DocumentID
		}
		if rc.Document == nil {
			done, err := p.loadDocument(ctx, rc)
			if err != nil || done {
				return err
			}
		}
		if err := next(ctx, rc); err != nil {
			return err
		}
		p.cacheDocument(ctx, rc)
		return nil
	}
}

func (p *Pipeline) loadDocument(ctx context.Context, rc *RequestContext) (bool, error) {
	req := rc.Request
	var computed string
	if req.Query != "" {
		computed = p.opts.Hasher.Hash([]byte(req.Query))
	}

	for _, key := range [...]string{req.DocumentID, req.DocumentHash, computed} {
		if key == "" {
			continue
		}
		if doc, ok := p.opts.Documents.TryGet(key); ok {
			rc.Document = doc.Document
			rc.DocumentID = key
			rc.DocumentHash = doc.Hash
			rc.IsCachedDocument = true
			rc.IsPersistedDocument = doc.IsPersisted
			rc.ValidationResult = validation.OK
			p.opts.Logger.Debug("document cache hit", logging.WithRequestID(rc.RequestID), zap.String("key", key))
			eventbus.Emit(p.opts.Bus, ctx, events.DocumentCacheHit{Key: key, IsPersisted: doc.IsPersisted})
			return false, nil
		}
	}

	if req.Query != "" {
		id := req.DocumentID
		if id == "" {
			id = computed
		}
		return p.parse(ctx, rc, req.Query, id, computed), nil
	}

	id := req.DocumentID
	if id == "" {
		id = req.DocumentHash
	}
	if id == "" {
		rc.Result = errorResult(http.StatusBadRequest, codeError(CodeDocumentNotFound,
			"The request does not contain a GraphQL document or a document id."))
		return true, nil
	}
	if p.opts.Storage == nil {
		rc.Result = persistedNotFound(id)
		return true, nil
	}
	stored, err := p.opts.Storage.TryRead(ctx, id)
	if errors.Is(err, persisted.ErrInvalidID) {
		stored, err = nil, nil
	}
	if err != nil {
		return true, err
	}
	if stored == nil {
		rc.Result = persistedNotFound(id)
		return true, nil
	}
	rc.IsPersistedDocument = true
	return p.parse(ctx, rc, stored.Source, id, id), nil
}

// parse reports whether the request is finished, which is the case for
// syntax errors.
func (p *Pipeline) parse(ctx context.Context, rc *RequestContext, source, id, hash string) bool {
	rc.DocumentID = id
	rc.DocumentHash = hash

	start := time.Now()
	eventbus.Emit(p.opts.Bus, ctx, events.ParseStart{DocumentHash: hash})
	doc, err := language.ParseQuery(source)
	eventbus.Emit(p.opts.Bus, ctx, events.ParseFinish{DocumentHash: hash, Err: err, Duration: time.Since(start)})
	if err == nil {
		rc.Document = doc
		return false
	}

	syntaxErr := &gqlerror.Error{Message: err.Error()}
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		syntaxErr.Message = gqlErr.Message
		syntaxErr.Locations = gqlErr.Locations
	}
	syntaxErr.Extensions = map[string]any{"code": CodeParseFailed}
	eventbus.Emit(p.opts.Bus, ctx, events.SyntaxError{DocumentHash: hash, Err: syntaxErr})
	rc.Result = errorResult(0, syntaxErr)
	return true
}

func (p *Pipeline) cacheDocument(ctx context.Context, rc *RequestContext) {
	if rc.IsCachedDocument || rc.Document == nil || rc.DocumentID == "" || !p.opts.Documents.Enabled() {
		return
	}
	if rc.ValidationResult == nil || rc.ValidationResult.HasErrors() {
		return
	}
	entry := &cache.Document{Document: rc.Document, Hash: rc.DocumentHash, IsPersisted: rc.IsPersistedDocument}
	if p.opts.Documents.TryAdd(rc.DocumentID, entry) {
		p.opts.Logger.Debug("document cached", logging.WithRequestID(rc.RequestID), zap.String("key", rc.DocumentID))
		eventbus.Emit(p.opts.Bus, ctx, events.DocumentCacheAdd{Key: rc.DocumentID})
	}
}

func (p *Pipeline) requirePersisted(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		if p.opts.OnlyPersisted && !rc.IsPersistedDocument &&
			!features.GetOr(rc.Features, features.SkipPersistedCheck, false) {
			rc.Result = errorResult(http.StatusBadRequest, codeError(CodePersistedOperationRequired,
				"Only persisted operations are allowed."))
			return nil
		}
		return next(ctx, rc)
	}
}

// validate runs the validator for new documents. Documents served from the
// cache only go through the rules that depend on the request.
func (p *Pipeline) validate(next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		switch {
		case rc.ValidationResult == nil:
			rc.ValidationResult = p.runValidator(ctx, rc, false)
		case rc.IsCachedDocument && p.revalidate:
			rc.ValidationResult = p.runValidator(ctx, rc, true)
		}
		if res := rc.ValidationResult; res.HasErrors() {
			eventbus.Emit(p.opts.Bus, ctx, events.ValidationErrors{DocumentID: rc.DocumentID, Errors: res.Errors})
			rc.Result = errorResult(res.StatusCode, res.Errors...)
			return nil
		}
		return next(ctx, rc)
	}
}

func (p *Pipeline) runValidator(ctx context.Context, rc *RequestContext, onlyNonCacheable bool) *validation.Result {
	start := time.Now()
	eventbus.Emit(p.opts.Bus, ctx, events.ValidateStart{DocumentID: rc.DocumentID})
	res := p.opts.Validator.Validate(rc.Schema, rc.Document, rc.ContextData, onlyNonCacheable)
	eventbus.Emit(p.opts.Bus, ctx, events.ValidateFinish{
		DocumentID: rc.DocumentID,
		ErrorCount: len(res.Errors),
		Duration:   time.Since(start),
	})
	return res
}
