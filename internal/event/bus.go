// Package event resolves raised events to their subscribed actions.
package event

import (
	"context"
	"log"
	"time"

	"github.com/grabngo/loaner/internal/action"
	"github.com/grabngo/loaner/internal/apperr"
	"github.com/grabngo/loaner/internal/metrics"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/internal/repository"
	"github.com/grabngo/loaner/internal/search"
	"github.com/grabngo/loaner/internal/taskqueue"
)

// Publisher fans event notices out to live subscribers
type Publisher interface {
	Publish(ctx context.Context, n model.EventNotice) error
}

// Bus dispatches raised events. Callers raise only after their write has
// committed, so no task is ever queued for state that was rolled back.
type Bus struct {
	subs       *repository.SubscriptionRepository
	dispatcher *action.Dispatcher
	queue      taskqueue.Queue
	publisher  Publisher
	indexer    search.Indexer
	now        func() time.Time
}

// NewBus creates a bus; publisher and indexer may be nil
func NewBus(subs *repository.SubscriptionRepository, dispatcher *action.Dispatcher, queue taskqueue.Queue, publisher Publisher, indexer search.Indexer) *Bus {
	return &Bus{
		subs:       subs,
		dispatcher: dispatcher,
		queue:      queue,
		publisher:  publisher,
		indexer:    indexer,
		now:        time.Now,
	}
}

// Raise runs SYNC subscribers inline and queues ASYNC ones.
// Failures are logged; the transition that raised the event has already committed.
func (b *Bus) Raise(ctx context.Context, name string, args action.Args) {
	args.Event = name
	metrics.EventsRaised.WithLabelValues(name).Inc()
	b.notify(ctx, name, args)

	names, err := b.subs.ActionsFor(ctx, name)
	if err != nil {
		log.Printf("❌ Failed to load subscriptions for %s: %v", name, err)
		return
	}

	for _, n := range names {
		a, err := b.dispatcher.Registry().Get(n)
		if err != nil {
			log.Printf("⚠️  Event %s subscribes unknown action %s, skipping", name, n)
			continue
		}

		if a.Kind == action.Sync {
			if err := b.dispatcher.Run(ctx, n, args); err != nil {
				log.Printf("❌ Sync action %s for %s failed: %v", n, name, err)
			}
			continue
		}

		if err := b.enqueue(ctx, n, args, time.Time{}); err != nil {
			log.Printf("❌ %v", err)
		}
	}
}

// Schedule queues an action to run at a later time
func (b *Bus) Schedule(ctx context.Context, name string, args action.Args, at time.Time) error {
	if _, err := b.dispatcher.Registry().Get(name); err != nil {
		return err
	}
	return b.enqueue(ctx, name, args, at)
}

func (b *Bus) enqueue(ctx context.Context, name string, args action.Args, at time.Time) error {
	task, err := action.NewTask(name, args)
	if err != nil {
		return apperr.ErrEnqueue.Wrap(err)
	}
	if at.IsZero() {
		err = b.queue.Enqueue(ctx, task)
	} else {
		err = b.queue.EnqueueAt(ctx, task, at)
	}
	if err != nil {
		return apperr.ErrEnqueue.Withf("failed to enqueue %s", name).Wrap(err)
	}
	return nil
}

func (b *Bus) notify(ctx context.Context, name string, args action.Args) {
	notice := model.EventNotice{Event: name, Actor: args.ActingUser, At: b.now().UTC()}
	if args.Device != nil {
		id := args.Device.ID
		notice.DeviceID = &id
	}
	if args.Shelf != nil {
		id := args.Shelf.ID
		notice.ShelfID = &id
	}

	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, notice); err != nil {
			log.Printf("⚠️  Failed to publish %s: %v", name, err)
		}
	}
	if b.indexer != nil {
		if args.Device != nil {
			if err := b.indexer.IndexDevice(ctx, args.Device); err != nil {
				log.Printf("⚠️  %v", err)
			}
		}
		if args.Shelf != nil {
			if err := b.indexer.IndexShelf(ctx, args.Shelf); err != nil {
				log.Printf("⚠️  %v", err)
			}
		}
	}
}
