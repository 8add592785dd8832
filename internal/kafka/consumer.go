package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	defaultAttempts = 5
	defaultBackoff  = 200 * time.Millisecond
)

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *slog.Logger

	// Attempts and Backoff bound the retries of a failing handler; the delay
	// doubles after every attempt.
	Attempts int
	Backoff  time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{r: r, workers: workers, log: log, Attempts: defaultAttempts, Backoff: defaultBackoff}
}

// Start fetches messages and hands each partition to a single worker, so a
// partition is processed in offset order and offsets are committed in order.
// A failing handler is retried with exponential backoff; when every attempt
// fails Start stops without committing that offset or anything after it on
// the partition, and returns the error. The message is redelivered to the
// group after a restart. Start returns nil when ctx ends.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make([]chan kafka.Message, c.workers)
	errs := make(chan error, c.workers)

	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if err := retry(ctx, c.Attempts, c.Backoff, func() error { return h(ctx, m) }); err != nil {
					if ctx.Err() != nil {
						return
					}
					errs <- fmt.Errorf("partition %d offset %d: %w", m.Partition, m.Offset, err)
					cancel() // hentikan fetch loop
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					// commit berikutnya di partisi yang sama ikut menutup offset ini
					c.log.Warn("commit offset", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
				}
			}
		}(jobs[i])
	}
	defer func() {
		cancel()
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}()

	workerErr := func() error {
		select {
		case e := <-errs:
			return e
		default:
			return nil
		}
	}
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if e := workerErr(); e != nil {
				return e
			}
			// kecilkan noise saat shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[workerFor(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			return workerErr()
		}
	}
}

func workerFor(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

// retry runs fn up to attempts times, sleeping backoff, 2*backoff, ... between
// attempts. It gives up early when ctx ends.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(backoff << i):
		case <-ctx.Done():
			return err
		}
	}
	return err
}
