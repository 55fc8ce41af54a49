package resources

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotInitiated is returned by Get when accessed before Setup.
var ErrNotInitiated = errors.New("resources: not initiated")

// ErrAlreadyInitiated is returned by Setup when called a second time.
var ErrAlreadyInitiated = errors.New("resources: already initiated")

// Zone describes a logical partition of the remote account, surfaced
// only as metadata (§5 GLOSSARY: "Zone").
type Zone struct {
	ID   string
	Name string
}

// Resources is the process-wide Shared Resources component (§4.4): the
// resolved configuration, network/validator handles are owned by the
// caller (they are external collaborators per §1 and are not stored
// here), the event bus, the mutable trust token, and the resolved
// primary/shared zone descriptors.
//
// Resources is a plain value constructed explicitly and passed to each
// component — it is not reached through a package-level singleton.
// Setup/Get below preserve a one-shot setup contract (a second
// top-level Setup call fails, an access before the first Setup call
// fails) without forcing every caller through a global; tests call New
// directly to get independent instances.
type Resources struct {
	Config Config
	Events *EventBus

	mu              sync.Mutex
	trustToken      string
	primaryZone     *Zone
	sharedZone      *Zone
	metadataLimiter *rate.Limiter
}

// New constructs an independent Resources value from cfg, without
// touching the process-wide singleton slot. Tests use this to get
// isolated instances; Setup (below) is the one-shot production entry
// point built on top of it.
func New(cfg Config) (*Resources, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	doc, err := loadDocument(cfg.DataDir)
	if err != nil && !errors.Is(err, ErrInvalidResourceFile) {
		return nil, err
	}
	if err != nil {
		// InvalidResourceFile is fatal per §7's Configuration kind.
		return nil, err
	}

	trustToken := doc.TrustToken
	if cfg.RefreshToken {
		trustToken = ""
	}
	if cfg.TrustToken != "" {
		trustToken = cfg.TrustToken
	}

	r := &Resources{
		Config:     cfg,
		Events:     NewEventBus(),
		trustToken: trustToken,
		metadataLimiter: rate.NewLimiter(
			rate.Every(time.Duration(cfg.MetadataRate.IntervalMS)*time.Millisecond),
			cfg.MetadataRate.Count,
		),
	}

	// Persist library version / normalized trust token immediately so a
	// fresh data_dir gets a resource file even if nothing mutates the
	// token this run.
	if err := r.writeDocument(); err != nil {
		// Best-effort per §7 (resource-file write is a warning, not fatal).
		r.Events.Publish(Event{Label: EventError, Err: fmt.Errorf("initial resource file write: %w", err)})
	}

	return r, nil
}

var (
	singletonMu sync.Mutex
	singleton   *Resources
)

// Setup is the one-shot process-wide entry point (§4.4): it must be
// called exactly once before any call to Get. A second call returns
// ErrAlreadyInitiated.
func Setup(cfg Config) (*Resources, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singleton != nil {
		return nil, ErrAlreadyInitiated
	}

	r, err := New(cfg)
	if err != nil {
		return nil, err
	}
	singleton = r
	return r, nil
}

// Get returns the Resources constructed by Setup. It fails with
// ErrNotInitiated if Setup has not yet been called.
func Get() (*Resources, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singleton == nil {
		return nil, ErrNotInitiated
	}
	return singleton, nil
}

// ResetForTest clears the process-wide singleton slot. It exists only
// so package tests can call Setup more than once per test binary.
func ResetForTest() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singleton = nil
}

// TrustToken returns the current trust token.
func (r *Resources) TrustToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trustToken
}

// SetTrustToken mutates the trust token and triggers an immediate atomic
// rewrite of the resource file (§4.4: "Mutation of the trust token
// triggers an immediate atomic rewrite of the resource file"). A write
// failure is reported on the event bus as a warning, per §7's
// resource-file-write kind, and does not return an error to the caller
// (the in-memory token is still updated).
func (r *Resources) SetTrustToken(token string) {
	r.mu.Lock()
	r.trustToken = token
	r.mu.Unlock()

	if err := r.writeDocument(); err != nil {
		r.Events.Publish(Event{Label: EventError, Err: fmt.Errorf("trust token rewrite: %w", err)})
	}
}

func (r *Resources) writeDocument() error {
	r.mu.Lock()
	token := r.trustToken
	r.mu.Unlock()

	return saveDocument(r.Config.DataDir, document{
		LibraryVersion: currentLibraryVersion,
		TrustToken:     token,
	})
}

// SetZones records the resolved primary/shared zone descriptors
// (§4.4: "Mutation of zone descriptors is in-memory only"). shared may
// be nil if the account has no shared library.
func (r *Resources) SetZones(primary Zone, shared *Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := primary
	r.primaryZone = &p
	r.sharedZone = shared
}

// PrimaryZone returns the resolved primary zone, or an error if
// authentication has not yet resolved one (§7: NoPrimaryZone, fatal).
func (r *Resources) PrimaryZone() (Zone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.primaryZone == nil {
		return Zone{}, ErrNoPrimaryZone
	}
	return *r.primaryZone, nil
}

// SharedZoneAvailable reports whether a shared zone was resolved. Per
// §9's Open Question resolution, this reads Resources' own sharedZone
// field — never primaryZone, which is the source's documented bug.
func (r *Resources) SharedZoneAvailable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sharedZone != nil
}

// SharedZone returns the resolved shared zone, or ErrNoSharedZone if
// none is available. Absence is non-fatal (§7); callers should check
// SharedZoneAvailable first when they want to treat it as optional.
func (r *Resources) SharedZone() (Zone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sharedZone == nil {
		return Zone{}, ErrNoSharedZone
	}
	return *r.sharedZone, nil
}

// MetadataLimiter returns the shared token-bucket limiter pacing
// remote metadata-listing calls (§4.3).
func (r *Resources) MetadataLimiter() *rate.Limiter {
	return r.metadataLimiter
}

var (
	// ErrNoPrimaryZone is fatal (§7): a run cannot proceed without one.
	ErrNoPrimaryZone = errors.New("no primary zone resolved")
	// ErrNoSharedZone is non-fatal (§7): surfaced via SharedZoneAvailable.
	ErrNoSharedZone = errors.New("no shared zone resolved")
)
