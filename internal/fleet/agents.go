// Package fleet keeps lifecycle records for provisioned cloud agents.
//
// A CloudAgent record tracks one provisioned agent from spawn to
// termination. Shadow standbys carry extra fields binding them to their
// primary; their dormant-to-active promotion is guarded here so that the
// transition happens at most once.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"roost/internal/coord"
	"roost/internal/logging"
	"roost/internal/store"
)

const namespace = "cloud-agents"

// Agent lifecycle states.
const (
	StateProvisioning  = "provisioning"
	StateBooting       = "booting"
	StateReady         = "ready"
	StateWorking       = "working"
	StateIdle          = "idle"
	StateTerminated    = "terminated"
	StateError         = "error"
	StateShadowDormant = "shadow-dormant"
	StateShadowActive  = "shadow-active"
)

var knownStates = map[string]bool{
	StateProvisioning:  true,
	StateBooting:       true,
	StateReady:         true,
	StateWorking:       true,
	StateIdle:          true,
	StateTerminated:    true,
	StateError:         true,
	StateShadowDormant: true,
	StateShadowActive:  true,
}

// Agent is the lifecycle record for one provisioned agent.
type Agent struct {
	AgentID              string `json:"agentId"`
	Name                 string `json:"name,omitempty"`
	Status               string `json:"status"`
	CreatedAt            string `json:"createdAt"`
	ShadowMode           bool   `json:"shadowMode,omitempty"`
	ShadowFor            string `json:"shadowFor,omitempty"`
	StallThresholdMs     int64  `json:"stallThresholdMs,omitempty"`
	LastPrimaryHeartbeat string `json:"lastPrimaryHeartbeat,omitempty"`
	ActivatedAt          string `json:"activatedAt,omitempty"`
}

// Registry is the cloud-agent record store.
type Registry struct {
	store  store.Store
	logger *slog.Logger
}

// NewRegistry builds an agent registry on the given backend.
func NewRegistry(s store.Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:  s,
		logger: logging.WithComponent(logger, "fleet"),
	}
}

// Spawn creates a new agent record in provisioning state and returns it.
// The agent id is generated when not supplied.
func (r *Registry) Spawn(ctx context.Context, agentID, name string) (Agent, error) {
	if agentID == "" {
		agentID = "agent-" + uuid.NewString()
	}
	if _, ok, err := r.Get(ctx, agentID); err != nil {
		return Agent{}, err
	} else if ok {
		return Agent{}, coord.Wrap(coord.ErrConflict, "fleet", "spawn", fmt.Sprintf("agent %q already exists", agentID), nil)
	}

	agent := Agent{
		AgentID:   agentID,
		Name:      name,
		Status:    StateProvisioning,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.Put(ctx, agent); err != nil {
		return Agent{}, err
	}
	r.logger.Info("agent spawned",
		logging.String(logging.FieldAgent, agentID),
	)
	return agent, nil
}

// Get loads one agent record.
func (r *Registry) Get(ctx context.Context, agentID string) (Agent, bool, error) {
	if agentID == "" {
		return Agent{}, false, coord.Validationf("get requires an agent id")
	}
	value, ok, err := r.store.HGet(ctx, namespace, agentID)
	if err != nil {
		return Agent{}, false, coord.Wrap(nil, "fleet", "get", "read agent", err)
	}
	if !ok {
		return Agent{}, false, nil
	}
	var agent Agent
	if err := json.Unmarshal([]byte(value), &agent); err != nil {
		r.logger.Warn("malformed agent record, treating as absent",
			logging.String(logging.FieldAgent, agentID),
			logging.Error(err),
		)
		return Agent{}, false, nil
	}
	return agent, true, nil
}

// Put writes an agent record as-is.
func (r *Registry) Put(ctx context.Context, agent Agent) error {
	if agent.AgentID == "" {
		return coord.Validationf("agent record requires an agent id")
	}
	if !knownStates[agent.Status] {
		return coord.Validationf("unknown agent status %q", agent.Status)
	}
	payload, err := json.Marshal(agent)
	if err != nil {
		return coord.Wrap(nil, "fleet", "put", "encode agent", err)
	}
	if err := r.store.HSet(ctx, namespace, agent.AgentID, string(payload)); err != nil {
		return coord.Wrap(nil, "fleet", "put", "write agent", err)
	}
	return nil
}

// List returns all agent records sorted by agent id.
func (r *Registry) List(ctx context.Context) ([]Agent, error) {
	raw, err := r.store.HGetAll(ctx, namespace)
	if err != nil {
		return nil, coord.Wrap(nil, "fleet", "list", "read agents", err)
	}
	out := make([]Agent, 0, len(raw))
	for field, value := range raw {
		var agent Agent
		if err := json.Unmarshal([]byte(value), &agent); err != nil {
			r.logger.Warn("skipping malformed agent record",
				logging.String(logging.FieldAgent, field),
				logging.Error(err),
			)
			continue
		}
		out = append(out, agent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

// Transition moves an agent to a new state, enforcing lifecycle rules:
// terminated is terminal, any live state may move to terminated or error,
// and shadow-dormant to shadow-active is the only shadow promotion.
func (r *Registry) Transition(ctx context.Context, agentID, to string) (Agent, error) {
	if !knownStates[to] {
		return Agent{}, coord.Validationf("unknown agent status %q", to)
	}
	agent, ok, err := r.Get(ctx, agentID)
	if err != nil {
		return Agent{}, err
	}
	if !ok {
		return Agent{}, coord.Wrap(coord.ErrNotFound, "fleet", "transition", fmt.Sprintf("unknown agent %q", agentID), nil)
	}
	if err := checkTransition(agent.Status, to); err != nil {
		return Agent{}, err
	}

	agent.Status = to
	if to == StateShadowActive {
		agent.ActivatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if err := r.Put(ctx, agent); err != nil {
		return Agent{}, err
	}
	r.logger.Info("agent state changed",
		logging.String(logging.FieldAgent, agentID),
		logging.String("status", to),
	)
	return agent, nil
}

func checkTransition(from, to string) error {
	if from == StateTerminated {
		return coord.Wrap(coord.ErrIllegalTransition, "fleet", "transition",
			fmt.Sprintf("agent is terminated, cannot move to %q", to), nil)
	}
	// Every live state may fail or be torn down.
	if to == StateTerminated || to == StateError {
		return nil
	}
	if to == StateShadowActive {
		if from != StateShadowDormant {
			return coord.Wrap(coord.ErrIllegalTransition, "fleet", "transition",
				fmt.Sprintf("cannot activate shadow from %q", from), nil)
		}
		return nil
	}
	if from == StateShadowActive || from == StateShadowDormant {
		return coord.Wrap(coord.ErrIllegalTransition, "fleet", "transition",
			fmt.Sprintf("shadow agents cannot move to %q", to), nil)
	}
	return nil
}
