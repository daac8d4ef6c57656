package interpreter

import (
	"fmt"

	"github.com/olereon/automaton/internal/config"
	"github.com/olereon/automaton/internal/models"
	"github.com/olereon/automaton/internal/registry"
	"github.com/olereon/automaton/internal/resolver"
)

// LOAD READS A CONFIGURATION FILE, RESOLVES ITS CONTROL-FLOW JUMP TABLE
// (§4.3), AND VALIDATES EVERY ACTION AGAINST ITS REGISTERED HANDLER BEFORE A
// SINGLE BROWSER IS LAUNCHED. THIS IS THE "validate" CLI SUBCOMMAND'S
// BACKBONE AND IS ALSO CALLED BY "run" BEFORE INTERPRETATION BEGINS.
func Load(path string) (*models.Configuration, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if err := resolver.Resolve(cfg.Actions); err != nil {
		return nil, fmt.Errorf("resolving control flow: %w", err)
	}

	if err := registry.ValidateAll(cfg.Actions); err != nil {
		return nil, fmt.Errorf("validating actions: %w", err)
	}

	return cfg, nil
}
