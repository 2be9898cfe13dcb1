// internal/chat/chain.go
package chat

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teamsquare/guardian/internal/protocol"
	"github.com/teamsquare/guardian/internal/security"
	"github.com/teamsquare/guardian/internal/transport"
)

// BlockedMessage is returned without touching any transport while the
// system is blocked.
const BlockedMessage = "Le système est temporairement bloqué pour des raisons de sécurité. Veuillez contacter un administrateur."

// Tier is one candidate endpoint in the fallback chain. Payload adapts
// the request body to the tier's wire shape (the primary and secondary
// backends disagree on field names).
type Tier struct {
	Source  protocol.Source
	URL     string
	Payload func(text, sessionID string) any
}

// PrimaryTier targets the main agent backend's chat route
func PrimaryTier(base string) Tier {
	return Tier{
		Source: protocol.SourceBackend,
		URL:    joinRoute(base, "/chat"),
		Payload: func(text, sessionID string) any {
			return map[string]string{"message": text, "session_id": sessionID}
		},
	}
}

// SecondaryTier targets the fallback agent route, which speaks "query"
func SecondaryTier(base string) Tier {
	return Tier{
		Source: protocol.SourceFallback,
		URL:    joinRoute(base, "/query"),
		Payload: func(text, sessionID string) any {
			return map[string]string{"query": text, "session_id": sessionID}
		},
	}
}

func joinRoute(base, route string) string {
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + route
}

// Orchestrator walks the fallback chain for each send: primary first,
// then secondary, then local synthesis. Strictly sequential, first
// success wins. Every path ends in a displayable message.
type Orchestrator struct {
	tiers  []Tier
	client *transport.Client
	opts   transport.Options
	store  *security.Store
}

// NewOrchestrator builds a chain from the given tiers. Tiers with an
// empty URL are dropped. store may be nil (no block gating).
func NewOrchestrator(tiers []Tier, client *transport.Client, opts transport.Options, store *security.Store) *Orchestrator {
	var active []Tier
	for _, t := range tiers {
		if t.URL != "" {
			active = append(active, t)
		}
	}
	return &Orchestrator{tiers: active, client: client, opts: opts, store: store}
}

// Send runs text through the chain and always returns an assistant
// message. Transport failures degrade to the next tier; they are never
// surfaced to the caller.
func (o *Orchestrator) Send(ctx context.Context, text, sessionID string) protocol.ChatMessage {
	if o.store != nil {
		o.store.TouchActivity(sessionID, 0, false)
		if o.store.SessionBlocked(sessionID) {
			return assistantMessage(BlockedMessage, &protocol.ResponseMetadata{
				Source: protocol.SourceLocal,
				Error:  true,
			})
		}
	}

	for i, tier := range o.tiers {
		reply, err := o.client.Post(ctx, tier.URL, tier.Payload(text, sessionID), o.opts)
		if err != nil {
			log.Printf("Chat tier %d (%s) failed: %v, trying next", i+1, tier.Source, err)
			continue
		}

		content, err := reply.Text()
		if err != nil {
			log.Printf("Chat tier %d (%s) returned unusable body: %v, trying next", i+1, tier.Source, err)
			continue
		}

		if i > 0 {
			log.Printf("Chat fallback: tier %d (%s) succeeded after %d failures", i+1, tier.Source, i)
		}
		return assistantMessage(content, &protocol.ResponseMetadata{Source: tier.Source})
	}

	// All remote tiers exhausted: synthesize locally
	log.Printf("All chat tiers failed, synthesizing local reply")
	return assistantMessage(Synthesize(text), &protocol.ResponseMetadata{Source: protocol.SourceLocal})
}

func assistantMessage(content string, meta *protocol.ResponseMetadata) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    protocol.SenderAssistant,
		Timestamp: time.Now(),
		Metadata:  meta,
	}
}
