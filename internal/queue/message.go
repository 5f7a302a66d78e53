package queue

// Message is a single delivery pulled from a queue.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
	ReceiveCount  int
}
