package sim

import "errors"

var (
	ErrUnknownProduct     = errors.New("unknown product")
	ErrUnknownSupplier    = errors.New("unknown supplier")
	ErrUnknownCompany     = errors.New("unknown company")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInsufficientBudget = errors.New("insufficient budget")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrSimulationRunning  = errors.New("simulation is running")
)
