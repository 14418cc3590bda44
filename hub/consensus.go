package hub

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// ConsensusRequest describes one voting round.
type ConsensusRequest struct {
	// Requester is the agent asking the question. It never votes.
	Requester string

	// Question is the free-form prompt sent to every voter.
	Question string

	// Options are the valid answers, in priority order. Ties resolve to the
	// earlier option.
	Options []string

	// Voters are the agents polled. Empty means every currently idle agent
	// except the requester.
	Voters []string

	// Timeout bounds the whole round. Zero means DefaultConsensusTimeout.
	Timeout time.Duration
}

// ConsensusResult is the outcome of a voting round. ConsensusReached is
// true only when every polled voter answered before the timeout; a partial
// result still carries the votes that did arrive.
type ConsensusResult struct {
	Question         string            `json:"question"`
	Options          []string          `json:"options"`
	Votes            map[string]string `json:"votes"`
	Tally            map[string]int    `json:"tally"`
	Winner           string            `json:"winner"`
	ConsensusReached bool              `json:"consensus_reached"`
}

type ballot struct {
	voter  string
	option string
}

// RequestConsensus polls the voters with a consensus message each and
// blocks until every vote is in or the round times out. A voter answers by
// replying to its poll message with a "vote" content key; answers outside
// the option list count as responses but not as votes.
func (h *Hub) RequestConsensus(ctx context.Context, req ConsensusRequest) (*ConsensusResult, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if req.Question == "" {
		return nil, fmt.Errorf("consensus question must not be empty")
	}
	if len(req.Options) == 0 {
		return nil, fmt.Errorf("consensus needs at least one option")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultConsensusTimeout
	}

	voters := slices.Clone(req.Voters)
	if len(voters) == 0 {
		for _, p := range h.AvailableAgents() {
			if p.ID != req.Requester {
				voters = append(voters, p.ID)
			}
		}
	}

	ctx, span := h.tracing.startSpan(ctx, "hub.consensus")
	defer span.End()

	result := &ConsensusResult{
		Question: req.Question,
		Options:  slices.Clone(req.Options),
		Votes:    make(map[string]string),
		Tally:    make(map[string]int),
	}
	for _, opt := range req.Options {
		result.Tally[opt] = 0
	}

	ballots := make(chan ballot, len(voters))
	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, voter := range voters {
		msg := NewMessage(req.Requester, voter, map[string]any{
			"question": req.Question,
			"options":  slices.Clone(req.Options),
		}).
			Type(MessageTypeConsensus).
			Priority(PriorityHigh).
			RequiresResponse(true).
			Timeout(timeout).
			Build()

		replyCh := h.openPending(msg.ID)
		defer h.closePending(msg.ID)

		h.record(ctx, msg)
		h.deliver(ctx, msg)

		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			select {
			case reply := <-replyCh:
				vote, _ := reply.Content["vote"].(string)
				select {
				case ballots <- ballot{voter: voter, option: vote}:
				case <-done:
				}
			case <-done:
			case <-h.ctx.Done():
			}
		}(voter)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

collect:
	for len(result.Votes) < len(voters) {
		select {
		case b := <-ballots:
			result.Votes[b.voter] = b.option
			if slices.Contains(req.Options, b.option) {
				result.Tally[b.option]++
			}
		case <-timer.C:
			break collect
		case <-ctx.Done():
			close(done)
			wg.Wait()
			h.tracing.recordError(span, ctx.Err())
			return nil, ctx.Err()
		case <-h.ctx.Done():
			close(done)
			wg.Wait()
			return nil, ErrHubClosed
		}
	}
	close(done)
	wg.Wait()

	winner := req.Options[0]
	for _, opt := range req.Options[1:] {
		if result.Tally[opt] > result.Tally[winner] {
			winner = opt
		}
	}
	result.Winner = winner
	result.ConsensusReached = len(voters) > 0 && len(result.Votes) == len(voters)

	h.logger.InfoContext(ctx, "consensus round finished",
		slog.String("hub", h.name),
		slog.String("question", req.Question),
		slog.String("winner", winner),
		slog.Int("votes", len(result.Votes)),
		slog.Int("voters", len(voters)),
		slog.Bool("reached", result.ConsensusReached),
	)
	h.emit(EventConsensusReached, map[string]any{
		"question": req.Question,
		"winner":   winner,
		"reached":  result.ConsensusReached,
	})

	return result, nil
}
