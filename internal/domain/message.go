package domain

// Entity is a resolved remote peer.
type Entity struct {
	ID     string
	Handle BotHandle
}

// Message is one entry of a chat history as returned by the messaging client.
type Message struct {
	SenderID string
	Body     string
}
