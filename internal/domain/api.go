package domain

import "time"

// Simulation run statuses.
const (
	RunRunning  = "RUNNING"
	RunComplete = "COMPLETE"
	RunFailed   = "FAILED"
)

// SimulationRequest is the payload that starts a simulation run. Zero
// numeric fields fall back to the simulator defaults.
type SimulationRequest struct {
	NumUsers    int     `json:"num_users"`
	NumBanks    int     `json:"num_banks"`
	Period      int64   `json:"period"`
	Iterations  int64   `json:"iterations"`
	BatchSize   int     `json:"batch_size"`
	Seed        int64   `json:"seed"`
	MinAmount   float64 `json:"min_amount"`
	MaxAmount   float64 `json:"max_amount"`
	Fraudulence float64 `json:"fraudulence"`
}

// SimulationRun is the persisted record of one simulation.
type SimulationRun struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Request      SimulationRequest `json:"request"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Transactions int               `json:"transactions"`
	Error        string            `json:"error,omitempty"`
}

// TransactionRequest is an externally-initiated transfer against live
// simulation accounts. Type is the leg applied to the holder; the
// counterparty receives the opposite leg.
type TransactionRequest struct {
	Holder      string  `json:"holder"`
	HolderBank  string  `json:"holder_bank"`
	Related     string  `json:"related"`
	RelatedBank string  `json:"related_bank"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Channel     string  `json:"channel"`
	Device      string  `json:"device"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// WebhookConfig registers an endpoint for fraud alerts. Threshold is the
// minimum fraud score that triggers a delivery.
type WebhookConfig struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Threshold float64   `json:"threshold"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
