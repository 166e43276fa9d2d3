package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FallbackProviderID marks replies served from canned persona text rather
// than a live backend.
const FallbackProviderID = "fallback"

// Request is one reply-generation request.
type Request struct {
	Message           string
	PersonaID         string
	History           []Turn
	PreferredProvider string
}

// Result is always a usable reply. When every backend fails, Reply carries
// the persona's canned fallback and Fallback is set; callers never see a
// provider error.
type Result struct {
	Reply      string
	ProviderID string
	Persona    Persona
	Records    []CallRecord
	Fallback   bool
}

// Orchestrator tries providers in priority order with a per-call timeout,
// falling through to the next on any failure. Per-provider health is advisory:
// a failing provider is skipped until its cooldown elapses, never blacklisted
// permanently.
type Orchestrator struct {
	providers      []Provider
	timeout        time.Duration
	cooldown       time.Duration
	defaultPersona string

	mu        sync.Mutex
	downUntil map[string]time.Time

	// test seam
	now func() time.Time
}

// NewOrchestrator builds an orchestrator over providers in the given priority
// order.
func NewOrchestrator(providers []Provider, timeout, cooldown time.Duration, defaultPersona string) *Orchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Orchestrator{
		providers:      providers,
		timeout:        timeout,
		cooldown:       cooldown,
		defaultPersona: defaultPersona,
		downUntil:      make(map[string]time.Time),
		now:            time.Now,
	}
}

// Generate produces a companion reply for req. It never returns an error to
// the caller: provider failures fall through the chain and, when the chain is
// exhausted, the persona's canned fallback is returned.
func (o *Orchestrator) Generate(ctx context.Context, req Request) Result {
	persona := PersonaFor(req.PersonaID, o.defaultPersona)

	if strings.TrimSpace(req.Message) == "" {
		return Result{
			Reply:      persona.Greeting,
			ProviderID: FallbackProviderID,
			Persona:    persona,
			Fallback:   true,
		}
	}

	prompt := BuildPrompt(persona, req.History, req.Message)
	candidates := o.order(req.PreferredProvider)

	var records []CallRecord
	var skipped []Provider

	for _, p := range candidates {
		if !o.healthy(p.ID()) {
			skipped = append(skipped, p)
			continue
		}
		if reply, rec, ok := o.call(ctx, p, prompt); ok {
			return Result{Reply: reply, ProviderID: p.ID(), Persona: persona, Records: append(records, rec)}
		} else {
			records = append(records, rec)
		}
	}

	// Health is advisory only. If nothing healthy answered, try the skipped
	// providers anyway before giving up.
	for _, p := range skipped {
		if reply, rec, ok := o.call(ctx, p, prompt); ok {
			return Result{Reply: reply, ProviderID: p.ID(), Persona: persona, Records: append(records, rec)}
		} else {
			records = append(records, rec)
		}
	}

	zap.S().Warnw("all ai providers exhausted, serving canned fallback",
		"persona", persona.ID,
		"attempts", len(records),
	)
	return Result{
		Reply:      persona.FallbackReply,
		ProviderID: FallbackProviderID,
		Persona:    persona,
		Records:    records,
		Fallback:   true,
	}
}

func (o *Orchestrator) call(ctx context.Context, p Provider, prompt string) (string, CallRecord, bool) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := o.now()
	reply, err := p.Generate(callCtx, prompt)
	rec := CallRecord{
		ProviderID: p.ID(),
		Latency:    o.now().Sub(start),
		Success:    err == nil,
	}
	if err != nil {
		rec.ErrorKind = classify(err)
		o.markDown(p.ID())
		zap.S().Warnw("ai provider call failed",
			"provider", p.ID(),
			"errorKind", rec.ErrorKind,
			"error", err,
		)
		return "", rec, false
	}
	o.markUp(p.ID())
	return reply, rec, true
}

func (o *Orchestrator) order(preferred string) []Provider {
	if preferred == "" {
		return o.providers
	}
	ordered := make([]Provider, 0, len(o.providers))
	for _, p := range o.providers {
		if p.ID() == preferred {
			ordered = append(ordered, p)
		}
	}
	for _, p := range o.providers {
		if p.ID() != preferred {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func (o *Orchestrator) healthy(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now().After(o.downUntil[id])
}

func (o *Orchestrator) markDown(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.downUntil[id] = o.now().Add(o.cooldown)
}

func (o *Orchestrator) markUp(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.downUntil, id)
}

func classify(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrKindTimeout
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrKindDecode
	}
	return ErrKindHTTP
}
