package registry

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sealbid/internal/auction"
)

// Registry is an administrator-managed set of trusted certificate signers.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	admin   common.Address
	signers map[common.Address]string
}

// New creates an empty registry administered by admin.
func New(admin common.Address) *Registry {
	return &Registry{
		admin:   admin,
		signers: make(map[common.Address]string),
	}
}

// Admin returns the administrator address.
func (r *Registry) Admin() common.Address {
	return r.admin
}

// AddKey trusts signer. label is a human-readable name for the issuer and
// is stored NFC-normalized. Adding a known signer replaces its label.
func (r *Registry) AddKey(caller, signer common.Address, label string) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}
	if signer == (common.Address{}) {
		return errors.New("registry: the zero address cannot be a signer")
	}

	r.mu.Lock()
	r.signers[signer] = norm.NFC.String(label)
	r.mu.Unlock()

	slog.Info("signer added", "signer", signer.Hex(), "label", label)
	return nil
}

// RemoveKey stops trusting signer. Removing an unknown signer is a no-op.
// Certificates the signer already issued stop verifying immediately.
func (r *Registry) RemoveKey(caller, signer common.Address) error {
	if err := r.requireAdmin(caller); err != nil {
		return err
	}

	r.mu.Lock()
	_, known := r.signers[signer]
	delete(r.signers, signer)
	r.mu.Unlock()

	if known {
		slog.Info("signer removed", "signer", signer.Hex())
	}
	return nil
}

// IsAuthorized reports whether signer is currently trusted.
func (r *Registry) IsAuthorized(signer common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.signers[signer]
	return ok
}

// Label returns the label signer was registered with.
func (r *Registry) Label(signer common.Address) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	label, ok := r.signers[signer]
	return label, ok
}

// Signers returns the trusted signers in ascending address order.
func (r *Registry) Signers() []common.Address {
	r.mu.RLock()
	out := make([]common.Address, 0, len(r.signers))
	for s := range r.signers {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Cmp(out[j]) < 0
	})
	return out
}

func (r *Registry) requireAdmin(caller common.Address) error {
	if caller != r.admin {
		return &auction.Error{
			Code:    auction.ErrCodeUnauthorized,
			Message: "registry changes are restricted to " + r.admin.Hex(),
		}
	}
	return nil
}

// Open is a gate that trusts every signer. Replay uses it to re-apply
// submissions whose certificates were already checked when first seen.
type Open struct{}

// IsAuthorized always returns true.
func (Open) IsAuthorized(common.Address) bool { return true }

var (
	_ auction.Registry = (*Registry)(nil)
	_ auction.Registry = Open{}
)
