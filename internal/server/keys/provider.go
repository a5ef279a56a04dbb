package keys

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// Provider makes sure exactly one key pair exists in the backend and hands it
// out. Replicas starting together race on the backend lock; the loser finds
// the winner's keys on its re-check.
type Provider struct {
	backend Backend
	cfg     Config
	logger  logging.Logger

	mu   sync.RWMutex
	pair *KeyPair
}

func NewProvider(backend Backend, cfg Config, logger logging.Logger) *Provider {
	return &Provider{
		backend: backend,
		cfg:     cfg.withDefaults(),
		logger:  logger.With("module", "keys"),
	}
}

func (p *Provider) privateName() string { return p.cfg.KeyName + "-private.pem" }
func (p *Provider) publicName() string  { return p.cfg.KeyName + "-public.pem" }

// EnsureKeys loads the key pair, generating and persisting it under the
// backend lock if no replica has done so yet. Corrupt material is returned as
// an error and never overwritten.
func (p *Provider) EnsureKeys(ctx context.Context) (*KeyPair, error) {
	if p.cfg.Bits < MinBits {
		return nil, fmt.Errorf("%w: configured %d bits, minimum is %d", common.ErrKeyGenerate, p.cfg.Bits, MinBits)
	}

	pair, err := p.load(ctx)
	if err == nil {
		p.logger.Info(ctx, "using existing keys", "fingerprint", pair.Fingerprint)
		p.set(pair)
		return pair, nil
	}
	if !errors.Is(err, common.ErrKeyNotFound) {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, p.cfg.LockTimeout)
	defer cancel()

	unlock, err := p.backend.Lock(lockCtx, p.cfg.KeyName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			p.logger.Warn(ctx, "release key lock", "error", uerr)
		}
	}()

	pair, err = p.load(ctx)
	if err == nil {
		p.logger.Info(ctx, "using keys generated by another replica", "fingerprint", pair.Fingerprint)
		p.set(pair)
		return pair, nil
	}
	if !errors.Is(err, common.ErrKeyNotFound) {
		return nil, err
	}

	pair, err = p.generate(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info(ctx, "generated new key pair", "fingerprint", pair.Fingerprint, "bits", p.cfg.Bits)
	p.set(pair)
	return pair, nil
}

// PublicKeyPEM returns the PEM of the loaded public key, or nil before
// EnsureKeys has succeeded.
func (p *Provider) PublicKeyPEM() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pair == nil {
		return nil
	}
	return append([]byte(nil), p.pair.PublicPEM...)
}

// KeyPair returns the loaded pair, or nil before EnsureKeys has succeeded.
func (p *Provider) KeyPair() *KeyPair {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pair
}

func (p *Provider) set(pair *KeyPair) {
	p.mu.Lock()
	p.pair = pair
	p.mu.Unlock()
}

// load reads both halves. A private key without its public key is treated as
// corrupt: the public key is always written first.
func (p *Provider) load(ctx context.Context) (*KeyPair, error) {
	privBlob, err := p.backend.Get(ctx, p.privateName())
	if err != nil {
		return nil, err
	}

	pubPEM, err := p.backend.Get(ctx, p.publicName())
	if errors.Is(err, common.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: private key present, public key missing", common.ErrKeyCorrupt)
	}
	if err != nil {
		return nil, err
	}

	privPEM, err := p.unseal(privBlob)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(privPEM)

	return ParseKeyPair(privPEM, pubPEM)
}

func (p *Provider) generate(ctx context.Context) (*KeyPair, error) {
	pair, privPEM, err := GenerateKeyPair(p.cfg.Bits)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(privPEM)

	privBlob, err := p.seal(privPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrKeyPersist, err)
	}

	if err := p.backend.Put(ctx, p.publicName(), pair.PublicPEM); err != nil {
		return nil, fmt.Errorf("%w: public key: %v", common.ErrKeyPersist, err)
	}
	if err := p.backend.Put(ctx, p.privateName(), privBlob); err != nil {
		return nil, fmt.Errorf("%w: private key: %v", common.ErrKeyPersist, err)
	}
	return pair, nil
}

func (p *Provider) seal(privPEM []byte) ([]byte, error) {
	if len(p.cfg.Passphrase) == 0 {
		return append([]byte(nil), privPEM...), nil
	}
	return cryptox.Seal(privPEM, p.cfg.Passphrase)
}

func (p *Provider) unseal(blob []byte) ([]byte, error) {
	if len(p.cfg.Passphrase) == 0 {
		return blob, nil
	}
	out, err := cryptox.Open(blob, p.cfg.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot unseal private key: %v", common.ErrKeyCorrupt, err)
	}
	return out, nil
}
