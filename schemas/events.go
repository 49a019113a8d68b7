package schemas

import (
	"encoding/json"
)

// PublisherEvent is what goes out on the publisher channel. Content holds
// the JSON-encoded event body.
type PublisherEvent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func PlayerJoinedEvent(playerId string) (string, error) {
	type PlayerJoinedContent struct {
		PlayerId string `json:"playerId"`
	}

	return encode("PlayerJoined", PlayerJoinedContent{PlayerId: playerId})
}

func PlayerLeftEvent(playerId string) (string, error) {
	type PlayerLeftContent struct {
		PlayerId string `json:"playerId"`
	}

	return encode("PlayerLeft", PlayerLeftContent{PlayerId: playerId})
}

func CoinCollectedEvent(playerId, collectibleId string, value, score int) (string, error) {
	type CoinCollectedContent struct {
		PlayerId      string `json:"playerId"`
		CollectibleId string `json:"collectibleId"`
		Value         int    `json:"value"`
		Score         int    `json:"score"`
	}

	content := CoinCollectedContent{
		PlayerId:      playerId,
		CollectibleId: collectibleId,
		Value:         value,
		Score:         score,
	}

	return encode("CoinCollected", content)
}

func encode(eventType string, content any) (string, error) {
	message, err := json.Marshal(content)
	if err != nil {
		return "", err
	}

	event := PublisherEvent{
		Type:    eventType,
		Content: string(message),
	}

	e, err := json.Marshal(event)
	if err != nil {
		return "", err
	}

	return string(e), nil
}
