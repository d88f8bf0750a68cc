package event

import (
	"context"
	"fmt"
	"time"

	"github.com/DioGolang/FleetDispatch/pkg/logger"
)

// relayKey names what a relayed message carries: one version of one entity.
// Two messages for the same entity version are the same update no matter
// which instance or redelivery produced them. Messages from producers that
// predate the entity headers fall back to the event id.
func relayKey(headers map[string]interface{}) (string, bool) {
	entity, _ := headers[headerEntityKey].(string)
	if version, ok := headers[headerEntityVersion]; ok && entity != "" {
		return fmt.Sprintf("%s@%v", entity, version), true
	}
	if id, _ := headers[headerEventID].(string); id != "" {
		return "id:" + id, true
	}
	return "", false
}

// WrapRelayDedup lets each entity version through once per instance. Own
// messages skip the store entirely. A failed handler releases its claim so the
// redelivery can apply it. An unreachable store fails the message rather than
// risk fanning it out twice.
func WrapRelayDedup(log logger.Logger, store IdempotencyStore, instance string, ttl time.Duration, next MessageHandler) MessageHandler {
	return func(ctx context.Context, msg []byte, headers map[string]interface{}) error {
		if origin, _ := headers[headerOrigin].(string); origin == instance {
			return nil
		}
		key, ok := relayKey(headers)
		if !ok {
			// Nothing to dedup on; the hub still discards versions it has seen.
			return next(ctx, msg, headers)
		}
		claim := "relay:" + instance + ":" + key

		fresh, err := store.Claim(ctx, claim, ttl)
		if err != nil {
			log.Error(ctx, "relay dedup store unavailable", logger.String("key", key), logger.WithError(err))
			return fmt.Errorf("relay dedup store: %w", err)
		}
		if !fresh {
			log.Debug(ctx, "relayed entity version already applied", logger.String("key", key))
			return nil
		}

		if err := next(ctx, msg, headers); err != nil {
			if relErr := store.Release(ctx, claim); relErr != nil {
				log.Error(ctx, "failed to release relay claim", logger.String("key", key), logger.WithError(relErr))
			}
			return err
		}
		return nil
	}
}
