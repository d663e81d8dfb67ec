package settlement

const (
	TopicItemSettled     = "settlement.item.settled"
	TopicEarningPosted   = "settlement.earning.posted"
	TopicEarningRejected = "settlement.earning.rejected"
)

// Partition key = order_id so every settlement event of one order keeps order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
