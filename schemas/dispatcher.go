package schemas

// DispatcherMessage is queued on the hub for delivery. An empty ReceiverIds
// means every connected player.
type DispatcherMessage struct {
	ReceiverIds []string
	Body        []byte
}
