package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/frostbean/freezedry-api/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.Stage
		to      models.Stage
		allowed bool
	}{
		{"confirm pending order", models.StagePendingConfirmation, models.StageAwaitingShipment, true},
		{"reject pending order", models.StagePendingConfirmation, models.StageCancelled, true},
		{"submit tracking", models.StageAwaitingShipment, models.StagePackageInTransit, true},
		{"receive package", models.StagePackageInTransit, models.StagePreFreezePrep, true},
		{"start freezing", models.StagePreFreezePrep, models.StageFreezing, true},
		{"finish freezing", models.StageFreezing, models.StagePostFreeze, true},
		{"start packaging", models.StagePostFreeze, models.StagePackaging, true},
		{"complete processing", models.StagePackaging, models.StageCompleted, true},
		{"create checkout", models.StageCompleted, models.StagePaymentPending, true},
		{"payment webhook", models.StagePaymentPending, models.StagePaymentCompleted, true},
		{"fulfillment webhook", models.StagePaymentCompleted, models.StageShippedToCustomer, true},

		{"cannot skip shipment", models.StagePendingConfirmation, models.StageFreezing, false},
		{"cannot go backwards", models.StageFreezing, models.StagePreFreezePrep, false},
		{"cannot cancel while freezing", models.StageFreezing, models.StageCancelled, false},
		{"cannot cancel completed order", models.StageCompleted, models.StageCancelled, false},
		{"cannot leave cancelled", models.StageCancelled, models.StageAwaitingShipment, false},
		{"cannot re-confirm", models.StageAwaitingShipment, models.StageAwaitingShipment, false},
		{"cannot skip payment", models.StageCompleted, models.StageShippedToCustomer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStages(t *testing.T) {
	assert.True(t, Terminal(models.StageShippedToCustomer))
	assert.True(t, Terminal(models.StageCancelled))
	assert.False(t, Terminal(models.StagePendingConfirmation))
	assert.False(t, Terminal(models.StagePaymentPending))
}

func TestValidTransitionsFrom(t *testing.T) {
	nexts := ValidTransitionsFrom(models.StagePendingConfirmation)
	assert.ElementsMatch(t, []models.Stage{models.StageAwaitingShipment, models.StageCancelled}, nexts)

	assert.Empty(t, ValidTransitionsFrom(models.StageCancelled))
}

func TestEveryStageInTransitionTableIsKnown(t *testing.T) {
	for _, tr := range validTransitions {
		assert.True(t, models.KnownStage(tr.From), "unknown stage %q", tr.From)
		assert.True(t, models.KnownStage(tr.To), "unknown stage %q", tr.To)
	}
}
