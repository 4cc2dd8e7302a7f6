package legacy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// Outcome is the verdict recorded for a candidate path.
type Outcome uint8

const (
	Declined Outcome = iota + 1
	Accepted
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Declined:
		return "declined"
	default:
		return "unjudged"
	}
}

// Ledger maps candidate paths to their verdicts. It only grows.
type Ledger map[string]Outcome

// QuorumState tracks collected secrets against the required count.
type QuorumState struct {
	Collected []Secret
	Required  int
}

// Satisfied reports whether the threshold has been reached.
func (q QuorumState) Satisfied() bool { return len(q.Collected) >= q.Required }

// Remaining is the number of secrets still needed.
func (q QuorumState) Remaining() int { return q.Required - len(q.Collected) }

// CandidateSource supplies candidate paths and hears about verdicts. It is
// the seam between the collector and whatever interacts with the user.
type CandidateSource interface {
	// Next returns the path of the next candidate. keyNumber counts from 1
	// and names the key being asked for.
	Next(ctx context.Context, keyNumber int) (string, error)
	// Rejected is told about every failed attempt. path is empty when no
	// candidate could be resolved. Returning an error ends collection.
	Rejected(ctx context.Context, path string, err error) error
	// Accepted is told about every accepted candidate.
	Accepted(ctx context.Context, path string, state QuorumState) error
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithLogger sets the collector's logger.
func WithLogger(l *zap.Logger) CollectorOption {
	return func(c *Collector) { c.log = l }
}

// AllowRepeatedIdentity lets two different files holding the same key both
// count toward the threshold. By default the second is declined.
func AllowRepeatedIdentity(allow bool) CollectorOption {
	return func(c *Collector) { c.allowRepeated = allow }
}

// Collector gathers secrets until the policy's threshold is met. Every
// candidate runs the same ordered checks: duplicate path, file format,
// identity derivation, membership in the policy, and (unless disabled)
// repeated identity. A Collector belongs to one session and is not safe for
// concurrent use.
type Collector struct {
	policy  *RecipientPolicy
	deriver Deriver
	log     *zap.Logger

	allowRepeated bool

	ledger   Ledger
	state    QuorumState
	accepted map[PublicIdentity]string
	derived  *lru.Cache
}

// NewCollector starts an empty collection session for policy.
func NewCollector(policy *RecipientPolicy, d Deriver, opts ...CollectorOption) (*Collector, error) {
	if policy == nil {
		return nil, errors.New("nil policy")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.New("nil deriver")
	}

	derived, err := lru.New(policy.Total() * 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create derivation cache: %w", err)
	}

	c := &Collector{
		policy:   policy,
		deriver:  d,
		log:      zap.NewNop(),
		ledger:   make(Ledger),
		state:    QuorumState{Required: policy.Threshold},
		accepted: make(map[PublicIdentity]string),
		derived:  derived,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns a copy of the quorum state.
func (c *Collector) State() QuorumState {
	collected := make([]Secret, len(c.state.Collected))
	copy(collected, c.state.Collected)
	return QuorumState{Collected: collected, Required: c.state.Required}
}

// Complete reports whether the threshold has been met.
func (c *Collector) Complete() bool { return c.state.Satisfied() }

// Verdict returns the recorded outcome for path.
func (c *Collector) Verdict(path string) (Outcome, bool) {
	o, ok := c.ledger[ledgerKey(path)]
	return o, ok
}

// Ledger returns a copy of every recorded verdict.
func (c *Collector) Ledger() Ledger {
	out := make(Ledger, len(c.ledger))
	for k, v := range c.ledger {
		out[k] = v
	}
	return out
}

func ledgerKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Submit judges one candidate file. A nil error means the secret was
// accepted. Content-dependent failures are recorded as declined; failures
// that never got to the content, or that stem from I/O, are not recorded.
func (c *Collector) Submit(ctx context.Context, path string) error {
	if c.Complete() {
		return ErrQuorumSatisfied
	}
	if path == "" {
		return &Error{Code: CandidateUnavailable, Detail: "no key file selected"}
	}
	key := ledgerKey(path)
	log := c.log.With(zap.String("candidate", filepath.Base(path)))

	if prior, ok := c.ledger[key]; ok {
		log.Debug("candidate already judged", zap.Stringer("prior", prior))
		return &Error{Code: AlreadyJudged, Prior: prior, Detail: fmt.Sprintf("this file has already been %s, please select a different one", prior)}
	}

	content, err := readCandidate(path)
	if err != nil {
		return err
	}
	if len(content) > MaxSecretFileSize {
		return c.decline(log, key, Errorf(InvalidFormat, "key file is larger than %d bytes", MaxSecretFileSize))
	}
	secret, err := ExtractSecret(content)
	if err != nil {
		return c.decline(log, key, err)
	}

	id, err := c.derive(ctx, secret)
	if err != nil {
		if IsCancelled(err) || CodeOf(err) == ToolTimeout {
			return err
		}
		return c.decline(log, key, err)
	}

	if !c.policy.Authorizes(id) {
		return c.decline(log, key, &Error{Code: NotAuthorizedForThisFile, Detail: "this key was not one of the keys used to encrypt the file"})
	}
	if prev, ok := c.accepted[id]; ok && !c.allowRepeated {
		return c.decline(log, key, Errorf(DuplicateIdentity, "this key was already provided as %s", filepath.Base(prev)))
	}

	c.state.Collected = append(c.state.Collected, secret)
	c.accepted[id] = path
	c.ledger[key] = Accepted
	log.Info("candidate accepted", zap.Int("collected", len(c.state.Collected)), zap.Int("required", c.state.Required))
	return nil
}

func (c *Collector) decline(log *zap.Logger, key string, err error) error {
	c.ledger[key] = Declined
	log.Info("candidate declined", zap.Stringer("code", CodeOf(err)))
	return err
}

// derive memoises derivations by fingerprint so a key copied into a second
// file costs no second process spawn.
func (c *Collector) derive(ctx context.Context, secret Secret) (PublicIdentity, error) {
	fp := secret.Fingerprint()
	if v, ok := c.derived.Get(fp); ok {
		return v.(PublicIdentity), nil
	}
	id, err := c.deriver.DerivePublic(ctx, secret)
	if err != nil {
		return "", err
	}
	if !id.Valid() {
		return "", Errorf(UnexpectedOutputShape, "generated public key %q does not match the expected format", string(id))
	}
	c.derived.Add(fp, id)
	return id, nil
}

func readCandidate(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Code: CandidateUnavailable, Detail: "error reading key file", Err: err}
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, MaxSecretFileSize+1))
	if err != nil {
		return nil, &Error{Code: CandidateUnavailable, Detail: "error reading key file", Err: err}
	}
	return content, nil
}

// Secrets returns the collected secrets in collection order.
func (c *Collector) Secrets() []Secret { return c.State().Collected }

// Collect drives src until the threshold is met. Candidate failures are
// reported to src and never end collection on their own; cancellation and
// errors returned by src do.
func (c *Collector) Collect(ctx context.Context, src CandidateSource) ([]Secret, error) {
	for !c.Complete() {
		if err := ctx.Err(); err != nil {
			return nil, Cancelled(err)
		}

		path, err := src.Next(ctx, len(c.state.Collected)+1)
		if err != nil {
			if IsCancelled(err) {
				return nil, err
			}
			if err := src.Rejected(ctx, "", err); err != nil {
				return nil, err
			}
			continue
		}

		if err := c.Submit(ctx, path); err != nil {
			if IsCancelled(err) {
				return nil, err
			}
			if err := src.Rejected(ctx, path, err); err != nil {
				return nil, err
			}
			continue
		}

		if err := src.Accepted(ctx, path, c.State()); err != nil {
			return nil, err
		}
	}
	return c.Secrets(), nil
}
