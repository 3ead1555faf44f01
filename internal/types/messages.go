package types

import "encoding/json"

// Wire type discriminators.
const (
	TypeCreateGame           = "create_game"
	TypeJoinGame             = "join_game"
	TypeStartGame            = "start_game"
	TypePlayerState          = "player_state"
	TypeUpdateParams         = "update_params"
	TypeRoundEnd             = "round_end"
	TypeGameCreated          = "game_created"
	TypePlayerJoined         = "player_joined"
	TypeGameJoined           = "game_joined"
	TypeGameNotFound         = "game_not_found"
	TypeGameFull             = "game_full"
	TypeGameState            = "game_state"
	TypeRoundResult          = "round_result"
	TypeOpponentDisconnected = "opponent_disconnected"
)

// EntitySnapshot is the network view of one entity. Cooldowns are in ticks.
type EntitySnapshot struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	VX            float64 `json:"vx"`
	VY            float64 `json:"vy"`
	DashCooldown  float64 `json:"dashCooldown"`
	IsDashing     bool    `json:"isDashing"`
	DashPower     float64 `json:"dashPower"`
	DashCharging  bool    `json:"dashCharging"`
	GhostActive   bool    `json:"ghostActive"`
	GhostCooldown float64 `json:"ghostCooldown"`
}

// RoundSummary is the host's verdict for a finished round.
type RoundSummary struct {
	BlueScore int    `json:"blueScore"`
	RedScore  int    `json:"redScore"`
	Message   string `json:"message"`
	NextRound int    `json:"nextRound"`
	GameOver  bool   `json:"gameOver"`
}

// ClientMessage is the closed set of messages a peer sends to the relay.
type ClientMessage interface {
	isClientMessage()
	MessageType() string
}

type CreateGame struct{}

type JoinGame struct {
	GameID string `json:"gameId"`
}

type StartGame struct {
	GameID string `json:"gameId"`
}

// PlayerState carries the sender's entity. Player stays raw so the relay can
// forward it byte for byte.
type PlayerState struct {
	GameID string          `json:"gameId"`
	Player json.RawMessage `json:"player"`
}

type UpdateParams struct {
	Params json.RawMessage `json:"params"`
}

type RoundEnd struct {
	GameID string `json:"gameId"`
	RoundSummary
}

func (CreateGame) isClientMessage()   {}
func (JoinGame) isClientMessage()     {}
func (StartGame) isClientMessage()    {}
func (PlayerState) isClientMessage()  {}
func (UpdateParams) isClientMessage() {}
func (RoundEnd) isClientMessage()     {}

func (CreateGame) MessageType() string   { return TypeCreateGame }
func (JoinGame) MessageType() string     { return TypeJoinGame }
func (StartGame) MessageType() string    { return TypeStartGame }
func (PlayerState) MessageType() string  { return TypePlayerState }
func (UpdateParams) MessageType() string { return TypeUpdateParams }
func (RoundEnd) MessageType() string     { return TypeRoundEnd }

// ServerMessage is the closed set of messages the relay sends to a peer.
type ServerMessage interface {
	isServerMessage()
	MessageType() string
}

type GameCreated struct {
	GameID string `json:"gameId"`
}

type PlayerJoined struct{}

type GameJoined struct {
	GameID string `json:"gameId"`
}

type GameNotFound struct{}

type GameFull struct{}

// StartSignal tells the second player to begin the countdown.
type StartSignal struct{}

type ParamsUpdate struct {
	Params json.RawMessage `json:"params"`
}

type GameState struct {
	Player json.RawMessage `json:"player"`
}

type RoundResult struct {
	RoundSummary
}

type OpponentDisconnected struct{}

func (GameCreated) isServerMessage()          {}
func (PlayerJoined) isServerMessage()         {}
func (GameJoined) isServerMessage()           {}
func (GameNotFound) isServerMessage()         {}
func (GameFull) isServerMessage()             {}
func (StartSignal) isServerMessage()          {}
func (ParamsUpdate) isServerMessage()         {}
func (GameState) isServerMessage()            {}
func (RoundResult) isServerMessage()          {}
func (OpponentDisconnected) isServerMessage() {}

func (GameCreated) MessageType() string          { return TypeGameCreated }
func (PlayerJoined) MessageType() string         { return TypePlayerJoined }
func (GameJoined) MessageType() string           { return TypeGameJoined }
func (GameNotFound) MessageType() string         { return TypeGameNotFound }
func (GameFull) MessageType() string             { return TypeGameFull }
func (StartSignal) MessageType() string          { return TypeStartGame }
func (ParamsUpdate) MessageType() string         { return TypeUpdateParams }
func (GameState) MessageType() string            { return TypeGameState }
func (RoundResult) MessageType() string          { return TypeRoundResult }
func (OpponentDisconnected) MessageType() string { return TypeOpponentDisconnected }

func NewPlayerState(gameID string, snap EntitySnapshot) (PlayerState, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return PlayerState{}, err
	}
	return PlayerState{GameID: gameID, Player: raw}, nil
}

func NewUpdateParams(params map[string]float64) (UpdateParams, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return UpdateParams{}, err
	}
	return UpdateParams{Params: raw}, nil
}

// Snapshot decodes the relayed entity.
func (m GameState) Snapshot() (EntitySnapshot, error) {
	var s EntitySnapshot
	if err := decodeRaw(m.Player, &s); err != nil {
		return EntitySnapshot{}, err
	}
	return s, nil
}

// Values decodes the relayed parameter map. Non-numeric entries are an error.
func (m ParamsUpdate) Values() (map[string]float64, error) {
	var v map[string]float64
	if err := decodeRaw(m.Params, &v); err != nil {
		return nil, err
	}
	return v, nil
}
