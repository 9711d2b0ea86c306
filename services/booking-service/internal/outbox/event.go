package outbox

// Topics published by the booking service. The Kafka topic equals the event type.
const (
	TopicBookingConfirmed = "booking.confirmed.v1"
	TopicBookingCancelled = "booking.cancelled.v1"
	TopicScheduleUpdated  = "trainer.schedule.updated.v1"
)

// Event is the envelope written to the outbox table in the same transaction as the
// state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
