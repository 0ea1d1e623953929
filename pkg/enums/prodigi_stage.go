package enums

// ProdigiStage is the provider-side fulfillment stage string.
type ProdigiStage string

const (
	ProdigiStageOnHold     ProdigiStage = "OnHold"
	ProdigiStageInProgress ProdigiStage = "InProgress"
	ProdigiStageComplete   ProdigiStage = "Complete"
	ProdigiStageCancelled  ProdigiStage = "Cancelled"
)

// OrderStatus maps a stage to the local order status. Unknown stages map to
// PENDING with known=false so callers can warn.
func (s ProdigiStage) OrderStatus() (status OrderStatus, known bool) {
	switch s {
	case ProdigiStageInProgress:
		return OrderStatusPending, true
	case ProdigiStageComplete:
		return OrderStatusCompleted, true
	case ProdigiStageCancelled:
		return OrderStatusCanceled, true
	default:
		return OrderStatusPending, false
	}
}
