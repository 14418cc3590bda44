package hub

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// RegisterAgent adds a new agent to the registry. The agent starts idle
// with an empty message queue allocated (a queue may already exist if
// messages were sent to the id before registration; that queue is kept).
// Registration of an id that is already present fails with
// ErrDuplicateAgent; use UpsertAgent for the explicit overwrite path.
func (h *Hub) RegisterAgent(id, name, agentType string, capabilities []Capability, handler Handler) (*AgentProfile, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("agent id must not be empty")
	}

	h.mu.Lock()
	if _, exists := h.agents[id]; exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, id)
	}
	profile := h.storeProfile(id, name, agentType, capabilities, handler)
	h.mu.Unlock()

	h.logger.Info("agent registered",
		slog.String("hub", h.name),
		slog.String("agent_id", id),
		slog.String("agent_type", agentType),
		slog.Int("capabilities", len(capabilities)),
	)
	h.emit(EventAgentRegistered, map[string]any{
		"agent_id":   id,
		"agent_type": agentType,
	})

	return profile.clone(), nil
}

// UpsertAgent registers the agent, replacing any existing profile with the
// same id. The existing queue and registration order are preserved on
// replacement.
func (h *Hub) UpsertAgent(id, name, agentType string, capabilities []Capability, handler Handler) (*AgentProfile, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("agent id must not be empty")
	}

	h.mu.Lock()
	_, replaced := h.agents[id]
	profile := h.storeProfile(id, name, agentType, capabilities, handler)
	h.mu.Unlock()

	h.logger.Info("agent upserted",
		slog.String("hub", h.name),
		slog.String("agent_id", id),
		slog.Bool("replaced", replaced),
	)
	if !replaced {
		h.emit(EventAgentRegistered, map[string]any{
			"agent_id":   id,
			"agent_type": agentType,
		})
	}

	return profile.clone(), nil
}

// storeProfile writes the profile, handler, queue, and order index. Callers
// hold h.mu.
func (h *Hub) storeProfile(id, name, agentType string, capabilities []Capability, handler Handler) *AgentProfile {
	profile := &AgentProfile{
		ID:            id,
		Name:          name,
		Type:          agentType,
		Capabilities:  slices.Clone(capabilities),
		Status:        StatusIdle,
		LastHeartbeat: time.Now(),
		Metadata:      make(map[string]any),
	}
	h.agents[id] = profile
	if handler != nil {
		h.handlers[id] = handler
	} else {
		delete(h.handlers, id)
	}
	if _, ok := h.queues[id]; !ok {
		h.queues[id] = []*queuedMessage{}
	}
	if !slices.Contains(h.order, id) {
		h.order = append(h.order, id)
	}
	return profile
}

// UnregisterAgent removes the agent's profile and message queue together.
// Unknown ids fail with ErrAgentNotFound.
func (h *Hub) UnregisterAgent(id string) error {
	h.mu.Lock()
	if _, exists := h.agents[id]; !exists {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	delete(h.agents, id)
	delete(h.handlers, id)
	delete(h.queues, id)
	if i := slices.Index(h.order, id); i >= 0 {
		h.order = slices.Delete(h.order, i, i+1)
	}
	h.mu.Unlock()

	h.logger.Info("agent unregistered",
		slog.String("hub", h.name),
		slog.String("agent_id", id),
	)
	h.emit(EventAgentUnregistered, map[string]any{"agent_id": id})

	return nil
}

// GetAgent returns a copy of the agent's profile.
func (h *Hub) GetAgent(id string) (*AgentProfile, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	profile, exists := h.agents[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return profile.clone(), nil
}

// FindAgentsByCapability returns agents advertising the named capability,
// in registration order.
func (h *Hub) FindAgentsByCapability(name string) []*AgentProfile {
	return h.findAgents(func(p *AgentProfile) bool { return p.HasCapability(name) })
}

// FindAgentsByType returns agents of the given type tag, in registration
// order.
func (h *Hub) FindAgentsByType(agentType string) []*AgentProfile {
	return h.findAgents(func(p *AgentProfile) bool { return p.Type == agentType })
}

// AvailableAgents returns agents whose status is idle, in registration
// order.
func (h *Hub) AvailableAgents() []*AgentProfile {
	return h.findAgents(func(p *AgentProfile) bool { return p.Status == StatusIdle })
}

func (h *Hub) findAgents(match func(*AgentProfile) bool) []*AgentProfile {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var found []*AgentProfile
	for _, id := range h.order {
		if profile, ok := h.agents[id]; ok && match(profile) {
			found = append(found, profile.clone())
		}
	}
	return found
}

// Heartbeat stamps the agent's last-heartbeat time. An agent that was
// marked error or offline comes back as idle.
func (h *Hub) Heartbeat(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	profile, exists := h.agents[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	profile.LastHeartbeat = time.Now()
	if profile.Status == StatusError || profile.Status == StatusOffline {
		profile.Status = StatusIdle
	}
	return nil
}
