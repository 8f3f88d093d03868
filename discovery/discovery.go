// Package discovery finds specifications to run.
//
// Specifications are found through explicit registration: authors register
// factories, or register a declaring type whose exported members produce
// specifications. Registration normally happens from init() against the
// process-scoped Default discoverer.
//
// Discovery never returns an error. A member that cannot produce its
// specifications is reported as a non-runnable entry carrying the reason and
// the raised error.
package discovery

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/ethereum-optimism/infra/op-specrun/spec"
	"github.com/ethereum-optimism/infra/op-specrun/types"
	"github.com/ethereum/go-ethereum/log"
)

// Initializer is implemented by declaring types that need setup after their
// zero value is constructed. An Init error is a discovery failure for every
// member of the type.
type Initializer interface {
	Init() error
}

// FactoryFunc produces specifications for a registered origin.
type FactoryFunc func() ([]*spec.Specification, error)

type source interface {
	discover() []types.SpecificationToRun
}

// Discoverer holds registered specification sources
type Discoverer struct {
	mu      sync.RWMutex
	sources []source
	log     log.Logger
}

// New creates an empty discoverer. A nil logger logs to the root logger.
func New(logger log.Logger) *Discoverer {
	return &Discoverer{log: logger}
}

// SetLogger replaces the discoverer's logger.
func (d *Discoverer) SetLogger(logger log.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = logger
}

// Default is the process-scoped discoverer used by the package-level functions.
var Default = New(nil)

// Register adds a factory that always succeeds.
func (d *Discoverer) Register(origin string, fn func() []*spec.Specification) {
	d.RegisterFactory(origin, func() ([]*spec.Specification, error) {
		return fn(), nil
	})
}

// RegisterFactory adds a factory source. The origin names the factory in
// results and plan selections.
func (d *Discoverer) RegisterFactory(origin string, fn FactoryFunc) {
	d.add(&factorySource{origin: origin, fn: fn})
}

// RegisterType adds a declaring type for member scanning. prototype may be a
// value or a pointer of the type; only its type is used.
func (d *Discoverer) RegisterType(prototype any) error {
	if prototype == nil {
		return errors.New("prototype cannot be nil")
	}
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	d.add(&typeSource{typ: t})
	return nil
}

func (d *Discoverer) add(s source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, s)
}

// Len returns the number of registered sources.
func (d *Discoverer) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sources)
}

// Discover builds every registered source and returns the entries found.
// Nothing is cached: each call constructs fresh instances and specifications.
func (d *Discoverer) Discover() []types.SpecificationToRun {
	d.mu.RLock()
	sources := make([]source, len(d.sources))
	copy(sources, d.sources)
	logger := d.log
	d.mu.RUnlock()
	if logger == nil {
		logger = log.Root()
	}

	var found []types.SpecificationToRun
	notRunnable := 0
	for _, s := range sources {
		for _, entry := range s.discover() {
			if !entry.Runnable {
				notRunnable++
				logger.Warn("Specification not runnable", "origin", entry.Origin.ID(), "reason", entry.Reason, "err", entry.Err)
			}
			found = append(found, entry)
		}
	}

	logger.Debug("Discovery complete", "sources", len(sources), "specifications", len(found), "notRunnable", notRunnable)
	return found
}

// Register adds a factory to the Default discoverer.
func Register(origin string, fn func() []*spec.Specification) {
	Default.Register(origin, fn)
}

// RegisterFactory adds a fallible factory to the Default discoverer.
func RegisterFactory(origin string, fn FactoryFunc) {
	Default.RegisterFactory(origin, fn)
}

// MustRegisterType adds a declaring type to the Default discoverer and panics
// if prototype is nil.
func MustRegisterType(prototype any) {
	if err := Default.RegisterType(prototype); err != nil {
		panic(fmt.Sprintf("discovery: %v", err))
	}
}

// Discover runs the Default discoverer.
func Discover() []types.SpecificationToRun {
	return Default.Discover()
}

// factorySource is a registered factory
type factorySource struct {
	origin string
	fn     FactoryFunc
}

func (s *factorySource) discover() (entries []types.SpecificationToRun) {
	origin := types.Origin{Member: s.origin, Kind: types.MemberFactory}
	reason := fmt.Sprintf("specification factory %s failed", s.origin)

	defer func() {
		if r := recover(); r != nil {
			entries = []types.SpecificationToRun{types.NotRunnable(origin, reason, types.CauseFromPanic(r))}
		}
	}()

	specs, err := s.fn()
	if err != nil {
		return []types.SpecificationToRun{types.NotRunnable(origin, reason, err)}
	}
	for _, sp := range specs {
		if sp != nil {
			entries = append(entries, types.Runnable(sp, origin))
		}
	}
	return entries
}
