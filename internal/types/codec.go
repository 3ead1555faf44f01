package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptyFrame = errors.New("empty frame")
var ErrMalformed = errors.New("malformed message")
var ErrUnknownType = errors.New("unknown message type")

type envelope struct {
	Type string `json:"type"`
}

// Encode flattens the payload's fields next to the "type" discriminator, e.g.
// {"type":"join_game","gameId":"ABC123"}.
func Encode(m interface{ MessageType() string }) ([]byte, error) {
	t := m.MessageType()
	if t == "" {
		return nil, fmt.Errorf("encode %T: empty type", m)
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	head, _ := json.Marshal(envelope{Type: t})
	if len(body) <= 2 { // "{}"
		return head, nil
	}
	// head is {"type":"..."}; drop its closing brace and splice in the body fields
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}

func DecodeClient(b []byte) (ClientMessage, error) {
	t, err := peekType(b)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeCreateGame:
		return decodeAs[CreateGame](b)
	case TypeJoinGame:
		return decodeAs[JoinGame](b)
	case TypeStartGame:
		return decodeAs[StartGame](b)
	case TypePlayerState:
		return decodeAs[PlayerState](b)
	case TypeUpdateParams:
		return decodeAs[UpdateParams](b)
	case TypeRoundEnd:
		return decodeAs[RoundEnd](b)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func DecodeServer(b []byte) (ServerMessage, error) {
	t, err := peekType(b)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeGameCreated:
		return decodeAs[GameCreated](b)
	case TypePlayerJoined:
		return decodeAs[PlayerJoined](b)
	case TypeGameJoined:
		return decodeAs[GameJoined](b)
	case TypeGameNotFound:
		return decodeAs[GameNotFound](b)
	case TypeGameFull:
		return decodeAs[GameFull](b)
	case TypeStartGame:
		return decodeAs[StartSignal](b)
	case TypeUpdateParams:
		return decodeAs[ParamsUpdate](b)
	case TypeGameState:
		return decodeAs[GameState](b)
	case TypeRoundResult:
		return decodeAs[RoundResult](b)
	case TypeOpponentDisconnected:
		return decodeAs[OpponentDisconnected](b)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func peekType(b []byte) (string, error) {
	if len(b) == 0 {
		return "", ErrEmptyFrame
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env.Type, nil
}

func decodeAs[T any](b []byte) (T, error) {
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

func decodeRaw(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
