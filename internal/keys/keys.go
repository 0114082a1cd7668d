// Package keys implements KeyProvider: the in-memory, process-local table of
// signing keys behind the token service. Exactly one key is CURRENT at any
// time; a bounded set of RETIRED keys remain valid for verification until
// their grace window elapses.
//
// A single static secret held for the process lifetime can't express "verify
// against any key still in its grace window" once rotation is a requirement,
// so this package provides a concurrency-safe rotation table with a grace
// window, addressed by key identifier the way the token header anticipates.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/streamspace/authcore/internal/apperrors"
	"github.com/streamspace/authcore/internal/logger"
	"github.com/streamspace/authcore/internal/secrets"
)

// MinKeyMaterialBytes is the minimum accepted length for signing material,
// matching secrets.MinSigningSecretBytes (256-bit HMAC strength floor).
const MinKeyMaterialBytes = secrets.MinSigningSecretBytes

// State is a signing key's lifecycle stage.
type State int

const (
	StateCurrent State = iota
	StateRetired
)

type entry struct {
	material  []byte
	state     State
	retiredAt time.Time
}

// DefaultGraceWindow is the default retired-key validity window, overridden
// by JWT_ROTATION_GRACE_PERIOD_HOURS.
const DefaultGraceWindow = 24 * time.Hour

// Provider is the concurrency-safe in-memory key table.
type Provider struct {
	mu          sync.RWMutex
	byID        map[string]*entry
	currentID   string
	graceWindow time.Duration
}

// New seeds the provider from the named secret via SecretsProvider and
// returns a Provider with exactly one CURRENT key.
func New(sp secrets.Provider, secretName string, graceWindow time.Duration) (*Provider, error) {
	material, err := sp.SigningSecret(secretName)
	if err != nil {
		return nil, err
	}
	if graceWindow <= 0 {
		graceWindow = DefaultGraceWindow
	}

	id := fingerprint([]byte(material))
	p := &Provider{
		byID:        map[string]*entry{id: {material: []byte(material), state: StateCurrent}},
		currentID:   id,
		graceWindow: graceWindow,
	}
	return p, nil
}

// Current returns the active key identifier and material. Safe for
// concurrent use; takes only a read lock.
func (p *Provider) Current() (keyID string, material []byte) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e := p.byID[p.currentID]
	return p.currentID, e.material
}

// ByID returns the material for keyID iff it is CURRENT, or RETIRED and
// still within its grace window. The clock is re-read on every call.
func (p *Provider) ByID(keyID string) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.byID[keyID]
	if !ok {
		return nil, false
	}
	if e.state == StateCurrent {
		return e.material, true
	}
	if time.Now().Before(e.retiredAt.Add(p.graceWindow)) {
		return e.material, true
	}
	return nil, false
}

// Rotate validates newMaterial, demotes the current key to RETIRED with
// retired_at = now, and installs newMaterial as CURRENT. Readers observe
// either the pre- or post-rotation state atomically: the write lock is held
// for the whole transition.
func (p *Provider) Rotate(newMaterial string) error {
	if len(newMaterial) < MinKeyMaterialBytes {
		return apperrors.InvalidKey("material shorter than 32 bytes")
	}

	newID := fingerprint([]byte(newMaterial))

	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.byID[p.currentID]; ok {
		old.state = StateRetired
		old.retiredAt = time.Now()
	}
	p.byID[newID] = &entry{material: []byte(newMaterial), state: StateCurrent}
	p.currentID = newID

	logger.Keys().Info().Str("newKeyId", newID).Msg("signing key rotated")
	return nil
}

// Sweep removes retired keys whose grace window has elapsed. Idempotent and
// safe to call periodically (see cmd/server's background ticker).
func (p *Provider) Sweep() {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, e := range p.byID {
		if e.state == StateRetired && now.After(e.retiredAt.Add(p.graceWindow)) {
			delete(p.byID, id)
			logger.Keys().Debug().Str("keyId", id).Msg("purged expired retired key")
		}
	}
}

// fingerprint derives a deterministic short key identifier from signing
// material so the same secret always yields the same id.
func fingerprint(material []byte) string {
	sum := sha256.Sum256(material)
	return hex.EncodeToString(sum[:])[:16]
}
