package orders

const TopicOrderPlaced = "order.placed"

// Partition key = order code, so all events of one order keep their order.
func PartitionKey(orderCode string) []byte { return []byte(orderCode) }
