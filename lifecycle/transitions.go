package lifecycle

import (
	"github.com/frostbean/freezedry-api/models"
)

// Transition defines a valid stage change
type Transition struct {
	From models.Stage
	To   models.Stage
}

// validTransitions is the authoritative state machine definition. The pipeline
// is linear; cancellation is only reachable while the coarse status is still
// pending or confirmed.
var validTransitions = buildTransitions()

var explicitTransitions = []Transition{
	// Admin confirms or rejects a new order
	{From: models.StagePendingConfirmation, To: models.StageAwaitingShipment},
	{From: models.StagePendingConfirmation, To: models.StageCancelled},
	// Client ships their coffee in
	{From: models.StageAwaitingShipment, To: models.StagePackageInTransit},
	{From: models.StageAwaitingShipment, To: models.StageCancelled},
	// Package arrives at the facility
	{From: models.StagePackageInTransit, To: models.StagePreFreezePrep},
	{From: models.StagePackageInTransit, To: models.StageCancelled},
	// Cancellation while the order is still confirmed
	{From: models.StagePreFreezePrep, To: models.StageCancelled},
	// Payment and return shipping, driven by checkout creation and webhooks
	{From: models.StageCompleted, To: models.StagePaymentPending},
	{From: models.StagePaymentPending, To: models.StagePaymentCompleted},
	{From: models.StagePaymentCompleted, To: models.StageShippedToCustomer},
}

// processingSequence is the ordered processing segment. Admins advance orders
// through it via the general-purpose status update and may skip forward (an
// operator who forgot to record intermediate stages can still complete an
// order), but never backward.
var processingSequence = []models.Stage{
	models.StagePreFreezePrep,
	models.StageFreezing,
	models.StagePostFreeze,
	models.StagePackaging,
	models.StageCompleted,
}

func buildTransitions() []Transition {
	transitions := append([]Transition(nil), explicitTransitions...)
	for i, from := range processingSequence {
		for _, to := range processingSequence[i+1:] {
			transitions = append(transitions, Transition{From: from, To: to})
		}
	}
	return transitions
}

// transitionKey is used to look up valid transitions quickly
type transitionKey struct {
	From models.Stage
	To   models.Stage
}

// Build a lookup map for O(1) validation
var transitionMap = func() map[transitionKey]bool {
	m := make(map[transitionKey]bool)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To}] = true
	}
	return m
}()

// CanTransition reports whether moving from one stage to another is allowed
func CanTransition(from, to models.Stage) bool {
	return transitionMap[transitionKey{From: from, To: to}]
}

// ValidTransitionsFrom returns all valid next stages from a given stage
func ValidTransitionsFrom(stage models.Stage) []models.Stage {
	var nexts []models.Stage
	for _, t := range validTransitions {
		if t.From == stage {
			nexts = append(nexts, t.To)
		}
	}
	return nexts
}

// Terminal reports whether a stage has no outgoing transitions
func Terminal(stage models.Stage) bool {
	return len(ValidTransitionsFrom(stage)) == 0
}
