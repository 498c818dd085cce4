package autoconfig

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ThreeDotsLabs/watermill-autoconfig"
)

// ErrAlreadyActivated is returned when an enabled activation set is activated for the second time.
var ErrAlreadyActivated = errors.New("already activated")

type activationState struct {
	activated bool
	lock      sync.Mutex
}

// begin marks the activator as activated. The activator is never re-entered,
// also when the first activation failed halfway.
func (s *activationState) begin() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.activated {
		return ErrAlreadyActivated
	}
	s.activated = true

	return nil
}

// ProviderActivator runs the provider initialization when the provider is enabled.
type ProviderActivator struct {
	init   ProviderInitializer
	logger watermill.LoggerAdapter

	state activationState
}

// NewProviderActivator creates a ProviderActivator. InitProvider is used when init is nil.
func NewProviderActivator(init ProviderInitializer, logger watermill.LoggerAdapter) *ProviderActivator {
	if init == nil {
		init = InitProvider
	}

	return &ProviderActivator{
		init:   init,
		logger: watermill.LoggerOrNop(logger),
	}
}

// Activate passes descriptor and admin to the provider initializer.
// A disabled descriptor is a no-op. Initializer errors are returned as they are.
func (p *ProviderActivator) Activate(descriptor ProviderActivationSet, admin AdminHandle) error {
	if !descriptor.Enabled {
		return nil
	}
	if err := p.state.begin(); err != nil {
		return err
	}

	if err := p.init(descriptor, admin); err != nil {
		return err
	}

	p.logger.Info("AMQP provider activated", watermill.LogFields{
		"description":   descriptor.Description,
		"activation_id": watermill.NewULID(),
	})

	return nil
}

// Activated reports whether Activate ran with an enabled descriptor.
func (p *ProviderActivator) Activated() bool {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	return p.state.activated
}
