// Package scanner decodes ticket QR payloads and short codes, validates them
// remotely and enforces a cooldown between scans.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"prefest/models"
)

const Cooldown = 3 * time.Second

var (
	ErrInvalidFormat = errors.New("scanner: unrecognized ticket format")

	shortCodePattern = regexp.MustCompile(`^PF-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
)

type Kind int

const (
	KindLegacy Kind = iota
	KindShortCode
)

type Input struct {
	Kind   Kind
	Legacy models.LegacyPayload
	Code   string
}

// NormalizeCode upper-cases and trims a typed or decoded short code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsShortCode reports whether code is already in canonical PF-XXXX-XXXX form.
func IsShortCode(code string) bool {
	return shortCodePattern.MatchString(code)
}

// ParseInput decodes a legacy {t,e,k} JSON payload or a PF-XXXX-XXXX short code.
func ParseInput(raw string) (Input, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var p models.LegacyPayload
		if err := json.Unmarshal([]byte(trimmed), &p); err != nil {
			return Input{}, ErrInvalidFormat
		}
		if p.T == "" || p.E == "" || p.K == "" {
			return Input{}, ErrInvalidFormat
		}
		return Input{Kind: KindLegacy, Legacy: p}, nil
	}

	code := NormalizeCode(trimmed)
	if !IsShortCode(code) {
		return Input{}, ErrInvalidFormat
	}
	return Input{Kind: KindShortCode, Code: code}, nil
}

type Validator interface {
	ValidateLegacy(ctx context.Context, req models.ValidateLegacyRequest) (*models.ValidationResult, error)
	ValidateShortCode(ctx context.Context, req models.ValidateCodeRequest) (*models.ValidationResult, error)
}

type State int

const (
	StateValid State = iota
	StateAlreadyUsed
	StateWrongEvent
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateAlreadyUsed:
		return "already_used"
	case StateWrongEvent:
		return "wrong_event"
	}
	return "invalid"
}

// Classify maps a validation result to the display state.
func Classify(res *models.ValidationResult) State {
	if res == nil {
		return StateInvalid
	}
	switch {
	case res.Success && (res.Code == models.CodeOK || res.Code == ""):
		return StateValid
	case res.Code == models.CodeAlreadyUsed:
		return StateAlreadyUsed
	case res.Code == models.CodeWrongEvent:
		return StateWrongEvent
	}
	return StateInvalid
}

type Outcome struct {
	State       State
	Code        models.ValidationCode
	Message     string
	Participant *models.Participant
}

type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithCooldown(d time.Duration) Option {
	return func(s *Session) { s.cooldown = d }
}

// Session validates scans for one event. After every classified result
// further frames are ignored until the cooldown has elapsed.
type Session struct {
	validator Validator
	eventID   string
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	busy        bool
	pausedUntil time.Time
}

func NewSession(v Validator, eventID string, opts ...Option) *Session {
	s := &Session{
		validator: v,
		eventID:   eventID,
		cooldown:  Cooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process handles one decoded frame. The boolean is false when the frame
// was dropped because a scan is in flight or the session is cooling down.
func (s *Session) Process(ctx context.Context, raw string) (Outcome, bool) {
	s.mu.Lock()
	if s.busy || s.now().Before(s.pausedUntil) {
		s.mu.Unlock()
		return Outcome{}, false
	}
	s.busy = true
	s.mu.Unlock()

	outcome := s.validate(ctx, raw)

	s.mu.Lock()
	s.busy = false
	s.pausedUntil = s.now().Add(s.cooldown)
	s.mu.Unlock()

	return outcome, true
}

// Resume ends the cooldown early.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pausedUntil = time.Time{}
}

func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.pausedUntil)
}

func (s *Session) validate(ctx context.Context, raw string) Outcome {
	in, err := ParseInput(raw)
	if err != nil {
		return Outcome{State: StateInvalid, Code: models.CodeInvalidFormat, Message: "Invalid ticket code"}
	}

	var res *models.ValidationResult
	switch in.Kind {
	case KindLegacy:
		res, err = s.validator.ValidateLegacy(ctx, models.ValidateLegacyRequest{Payload: in.Legacy, EventID: s.eventID})
	default:
		res, err = s.validator.ValidateShortCode(ctx, models.ValidateCodeRequest{Code: in.Code, EventID: s.eventID})
	}
	if err == nil && res == nil {
		err = errors.New("empty validation result")
	}
	if err != nil {
		slog.Error("ticket validation call failed", "eventID", s.eventID, "error", err)
		return Outcome{State: StateInvalid, Code: models.CodeError, Message: "Could not validate the ticket"}
	}

	return Outcome{
		State:       Classify(res),
		Code:        res.Code,
		Message:     res.Message,
		Participant: res.Participant,
	}
}
